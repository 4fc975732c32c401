package models

import (
	"encoding/json"
	"strconv"
)

// Kind identifies what role a gateway plays in the filesystem. The set is
// closed: capability policy is keyed on it and certificates encode it.
type Kind int

const (
	// KindUser is a user-facing gateway: mounts the filesystem, reads and
	// (if capable) writes metadata.
	KindUser Kind = 1
	// KindReplica is a storage-facing gateway: holds replicated blocks and
	// never touches metadata.
	KindReplica Kind = 2
	// KindAcquisition is an ingest-facing gateway: publishes datasets into
	// the filesystem and always writes metadata.
	KindAcquisition Kind = 3
)

// Valid reports whether k is one of the closed kind set.
func (k Kind) Valid() bool {
	switch k {
	case KindUser, KindReplica, KindAcquisition:
		return true
	}
	return false
}

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "UG"
	case KindReplica:
		return "RG"
	case KindAcquisition:
		return "AG"
	}
	return "unknown"
}

// ParseKind maps the short wire form ("UG", "RG", "AG") back to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "UG":
		return KindUser, true
	case "RG":
		return KindReplica, true
	case "AG":
		return KindAcquisition, true
	}
	return 0, false
}

// Caps is the capability bitmask stored on a gateway record.
type Caps uint64

const (
	CapReadData Caps = 1 << iota
	CapWriteData
	CapReadMetadata
	CapWriteMetadata
	CapCoordinate

	// CapsAll is every defined bit; caller-supplied masks are intersected
	// with it so unknown bits never persist.
	CapsAll = CapReadData | CapWriteData | CapReadMetadata | CapWriteMetadata | CapCoordinate
)

// ClampCaps applies the kind-fixed capability policy. Replica gateways get no
// capabilities, acquisition gateways always get exactly metadata-write, and
// user gateways keep the requested subset of defined bits. Every write path
// goes through this; requested bits are never trusted verbatim.
func ClampCaps(kind Kind, requested Caps) Caps {
	switch kind {
	case KindReplica:
		return 0
	case KindAcquisition:
		return CapWriteMetadata
	default:
		return requested & CapsAll
	}
}

// DefaultBlocksize returns the advertised blocksize for a kind.
// Only acquisition gateways advertise one.
func DefaultBlocksize(kind Kind) int64 {
	if kind == KindAcquisition {
		return 61440
	}
	return 0
}

// NeverExpires marks a session or certificate that does not expire.
const NeverExpires int64 = -1

// Gateway is the authoritative record for one registered participant.
//
// Invariants:
//   - ID is a random non-negative 63-bit integer, immutable once assigned,
//     globally unique.
//   - Name is globally unique and agrees with the name reservation that
//     points at this ID.
//   - Caps is always the output of ClampCaps for this record's kind.
//   - CertVersion starts at 1 and is non-decreasing; it increments by
//     exactly 1 on each mutation of certificate-relevant content.
type Gateway struct {
	ID      int64 `json:"id"`
	OwnerID int64 `json:"owner_id"`
	Kind    Kind  `json:"kind"`

	Name string `json:"name"`
	Host string `json:"host"`
	Port int    `json:"port"`

	// ControlKey is the PEM RSA public key that verifies messages sent by
	// this gateway. SessionKey is a server-held keypair: gateways hold the
	// public half to verify registry replies.
	ControlKey        string `json:"control_key"`
	SessionPublicKey  string `json:"session_public_key"`
	SessionPrivateKey string `json:"session_private_key"`

	Caps Caps `json:"caps"`

	SessionPasswordHash string `json:"session_password_hash"`
	SessionPasswordSalt string `json:"session_password_salt"`
	SessionTimeout      int64  `json:"session_timeout"` // seconds; <= 0 means no timeout
	SessionExpires      int64  `json:"session_expires"` // unix seconds; -1 never

	CertVersion int64 `json:"cert_version"`
	CertExpires int64 `json:"cert_expires"` // unix seconds; -1 never

	Config    json.RawMessage `json:"config,omitempty"`
	Blocksize int64           `json:"blocksize"`
}

// CheckCaps reports whether every bit of required is held by this gateway.
func (g *Gateway) CheckCaps(required Caps) bool {
	return g.Caps&required == required
}

// OwnedBy reports whether the given principal owns this gateway.
func (g *Gateway) OwnedBy(ownerID int64) bool {
	return g.OwnerID == ownerID
}

// ConfigText renders the config blob the way certificates carry it.
func (g *Gateway) ConfigText() string {
	if len(g.Config) == 0 {
		return ""
	}
	return string(g.Config)
}

// IsNumericName reports whether s parses as an integer. Numeric names are
// rejected so a name can never shadow an ID in name-or-id lookups.
func IsNumericName(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// ValidName reports whether the name uses the allowed charset and cannot be
// mistaken for an ID.
func ValidName(name string) bool {
	if name == "" || IsNumericName(name) {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.' || r == ':' || r == ' ':
		default:
			return false
		}
	}
	return true
}
