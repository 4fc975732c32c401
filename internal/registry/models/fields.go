package models

import (
	"encoding/json"
	"sort"

	"syndic/internal/registry/keys"
	dErrors "syndic/pkg/domain-errors"
)

// Field keys accepted by the update path. Updates arrive as loose key/value
// maps (the admin API is schemaless by design), so the allow-list and the
// per-field validators live here next to the record they protect.
const (
	FieldName           = "name"
	FieldHost           = "host"
	FieldPort           = "port"
	FieldConfig         = "config"
	FieldCertExpires    = "cert_expires"
	FieldSessionExpires = "session_expires"
	FieldSessionTimeout = "session_timeout"
)

// writeAllowed is the closed set of externally writable fields. Everything
// else on the record is owned by the registry itself (id, kind, owner, keys,
// session secrets, cert_version) and may only change through dedicated paths.
var writeAllowed = map[string]struct{}{
	FieldName:           {},
	FieldHost:           {},
	FieldPort:           {},
	FieldConfig:         {},
	FieldCertExpires:    {},
	FieldSessionExpires: {},
	FieldSessionTimeout: {},
}

// certRelevant marks fields whose change must be re-signed and
// re-distributed, and therefore bumps cert_version.
var certRelevant = map[string]struct{}{
	FieldName:        {},
	FieldHost:        {},
	FieldPort:        {},
	FieldConfig:      {},
	FieldCertExpires: {},
}

// CertRelevant reports whether a change to the named field requires a new
// certificate version.
func CertRelevant(field string) bool {
	_, ok := certRelevant[field]
	return ok
}

// ValidateWrite returns a read_only_field error naming every field in the
// update that is not externally writable.
func ValidateWrite(fields map[string]any) error {
	var readonly []string
	for k := range fields {
		if _, ok := writeAllowed[k]; !ok {
			readonly = append(readonly, k)
		}
	}
	if len(readonly) > 0 {
		sort.Strings(readonly)
		return dErrors.WithFields(dErrors.CodeReadOnlyField, "fields are not writable", readonly)
	}
	return nil
}

// ValidateFields returns an invalid_field error naming every field in the
// update whose value fails its validator. Unknown fields are ignored here;
// ValidateWrite catches them.
func ValidateFields(fields map[string]any) error {
	var invalid []string
	for k, v := range fields {
		if !validField(k, v) {
			invalid = append(invalid, k)
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return dErrors.WithFields(dErrors.CodeInvalidField, "fields have invalid values", invalid)
	}
	return nil
}

func validField(key string, v any) bool {
	switch key {
	case FieldName:
		s, ok := v.(string)
		return ok && ValidName(s)
	case FieldHost:
		s, ok := v.(string)
		return ok && s != ""
	case FieldPort:
		n, ok := asInt64(v)
		return ok && n > 0 && n <= 65535
	case FieldConfig:
		return configBytes(v) != nil || v == nil
	case FieldCertExpires, FieldSessionExpires:
		n, ok := asInt64(v)
		return ok && (n == NeverExpires || n >= 0)
	case FieldSessionTimeout:
		_, ok := asInt64(v)
		return ok
	}
	return true
}

// Apply assigns one validated field onto the record. Callers run
// ValidateWrite and ValidateFields first; an unknown key here is a
// programming error surfaced as an internal error.
func Apply(g *Gateway, key string, v any) error {
	switch key {
	case FieldName:
		g.Name = v.(string)
	case FieldHost:
		g.Host = v.(string)
	case FieldPort:
		n, _ := asInt64(v)
		g.Port = int(n)
	case FieldConfig:
		g.Config = configBytes(v)
	case FieldCertExpires:
		g.CertExpires, _ = asInt64(v)
	case FieldSessionExpires:
		g.SessionExpires, _ = asInt64(v)
	case FieldSessionTimeout:
		g.SessionTimeout, _ = asInt64(v)
	default:
		return dErrors.Newf(dErrors.CodeInternal, "no applier for field %q", key)
	}
	return nil
}

// WouldChange reports whether applying the field would alter the record.
// The version-bump rule depends on it: a cert-relevant key carrying the
// value the record already holds does not rotate the certificate.
func WouldChange(g *Gateway, key string, v any) bool {
	switch key {
	case FieldName:
		return g.Name != v.(string)
	case FieldHost:
		return g.Host != v.(string)
	case FieldPort:
		n, _ := asInt64(v)
		return g.Port != int(n)
	case FieldConfig:
		return string(g.Config) != string(configBytes(v))
	case FieldCertExpires:
		n, _ := asInt64(v)
		return g.CertExpires != n
	case FieldSessionExpires:
		n, _ := asInt64(v)
		return g.SessionExpires != n
	case FieldSessionTimeout:
		n, _ := asInt64(v)
		return g.SessionTimeout != n
	}
	return false
}

// asInt64 coerces the numeric representations that reach us: JSON decoding
// yields float64, Go callers pass int/int64.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func configBytes(v any) json.RawMessage {
	switch c := v.(type) {
	case nil:
		return nil
	case json.RawMessage:
		return c
	case []byte:
		return json.RawMessage(c)
	case string:
		return json.RawMessage(c)
	case map[string]any:
		raw, err := json.Marshal(c)
		if err != nil {
			return nil
		}
		return raw
	}
	return nil
}

// CreateParams carries caller-supplied attributes for a new gateway.
// OwnerID and Kind are deliberately absent: the registry forces them from
// the trusted principal and the creation endpoint, never from attributes.
type CreateParams struct {
	Name       string          `json:"name"`
	Host       string          `json:"host"`
	Port       int             `json:"port"`
	ControlKey string          `json:"control_key"`
	Caps       Caps            `json:"caps"`
	Config     json.RawMessage `json:"config,omitempty"`

	// Optional; zero means "apply defaults" (never expires, generated pair).
	CertExpires       int64  `json:"cert_expires,omitempty"`
	SessionExpires    int64  `json:"session_expires,omitempty"`
	SessionTimeout    int64  `json:"session_timeout,omitempty"`
	SessionPublicKey  string `json:"session_public_key,omitempty"`
	SessionPrivateKey string `json:"session_private_key,omitempty"`
}

// MissingFields names every required attribute that is unset.
func (p *CreateParams) MissingFields() []string {
	var missing []string
	if p.Name == "" {
		missing = append(missing, FieldName)
	}
	if p.Host == "" {
		missing = append(missing, FieldHost)
	}
	if p.Port == 0 {
		missing = append(missing, FieldPort)
	}
	if p.ControlKey == "" {
		missing = append(missing, "control_key")
	}
	return missing
}

// InvalidFields names every supplied attribute that fails validation.
// keyBits is the modulus size public keys must have.
func (p *CreateParams) InvalidFields(keyBits int) []string {
	var invalid []string
	if !ValidName(p.Name) {
		invalid = append(invalid, FieldName)
	}
	if p.Port < 0 || p.Port > 65535 {
		invalid = append(invalid, FieldPort)
	}
	if p.ControlKey != "" && !keys.IsValidKey(p.ControlKey, keyBits) {
		invalid = append(invalid, "control_key")
	}
	if p.SessionPublicKey != "" && !keys.IsValidKey(p.SessionPublicKey, keyBits) {
		invalid = append(invalid, "session_public_key")
	}
	return invalid
}
