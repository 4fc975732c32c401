package models

// NameReservation marks a gateway name as in use. It is created with
// get-or-insert semantics: the first writer's mapping wins and every later
// attempt observes the original, which is how global name uniqueness is
// enforced without a cross-entity lock. A reservation must agree with the
// name field of the record its GatewayID points at.
type NameReservation struct {
	Name      string `json:"name"`
	GatewayID int64  `json:"g_id"`
}
