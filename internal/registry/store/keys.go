package store

import (
	"strconv"
	"strings"
)

// Key naming for the registry's entities. Names are flat strings because the
// store is a flat keyspace; prefixes group entities for ListPrefix scans.
const (
	gatewayPrefix     = "gateway:"
	reservationPrefix = "gatewayname:"
	scopePrefix       = "scope:"
)

// GatewayKey returns the record key for a gateway ID.
func GatewayKey(id int64) string {
	return gatewayPrefix + strconv.FormatInt(id, 10)
}

// GatewayPrefix returns the scan prefix covering all gateway records.
func GatewayPrefix() string { return gatewayPrefix }

// GatewayIDFromKey parses the ID back out of a gateway record key.
func GatewayIDFromKey(key string) (int64, bool) {
	raw, ok := strings.CutPrefix(key, gatewayPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ReservationKey returns the name-reservation key for a gateway name.
func ReservationKey(name string) string {
	return reservationPrefix + name
}

// ScopeKey returns the key of a certificate scope record.
func ScopeKey(name string) string {
	return scopePrefix + name
}

// NameMappingKey returns the cache-only key for a name-to-id mapping. It is
// never written to the durable store; only the read cache holds it.
func NameMappingKey(name string) string {
	return "name2id:" + name
}
