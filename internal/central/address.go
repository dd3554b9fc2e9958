package central

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Address identifies a peripheral within a session.
//
// Linux stacks report the 48-bit device address. CoreBluetooth never exposes it and
// hands out a per-host 128-bit identifier instead, so Address is wide enough for both.
// The zero value is not a valid address.
type Address struct {
	raw  [16]byte
	wide bool
}

// ParseAddress parses "AA:BB:CC:DD:EE:FF" style device addresses and
// "01234567-89AB-CDEF-0123-456789ABCDEF" style identifiers. Separators are optional
// and hex digits are case-insensitive.
func ParseAddress(s string) (Address, error) {
	clean := strings.NewReplacer(":", "", "-", "", "_", "").Replace(strings.TrimSpace(s))

	var a Address
	switch len(clean) {
	case 12:
		b, err := hex.DecodeString(clean)
		if err != nil {
			return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
		}
		copy(a.raw[10:], b)
	case 32:
		b, err := hex.DecodeString(clean)
		if err != nil {
			return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
		}
		copy(a.raw[:], b)
		a.wide = true
	default:
		return Address{}, fmt.Errorf("invalid address %q: expected 12 or 32 hex digits, got %d", s, len(clean))
	}
	return a, nil
}

// MustParseAddress is like ParseAddress but panics on error.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsZero reports whether a is the zero Address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// String renders device addresses as AA:BB:CC:DD:EE:FF and identifiers in UUID form.
func (a Address) String() string {
	if a.wide {
		h := strings.ToUpper(hex.EncodeToString(a.raw[:]))
		return h[0:8] + "-" + h[8:12] + "-" + h[12:16] + "-" + h[16:20] + "-" + h[20:32]
	}

	var sb strings.Builder
	for i, b := range a.raw[10:] {
		if i > 0 {
			sb.WriteByte(':')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

// MarshalText implements encoding.TextMarshaler so addresses render as strings in JSON.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
