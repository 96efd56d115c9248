package beacon

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Identifier is one field of a beacon's identity (proximity UUID, major,
// minor, Eddystone namespace...). The zero value is an empty identifier.
type Identifier struct {
	b []byte
}

// ParseIdentifier accepts a 0x-prefixed hex string, a decimal value in
// [0, 65535] or a UUID in any form github.com/google/uuid understands.
func ParseIdentifier(s string) (Identifier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Identifier{}, fmt.Errorf("unable to parse identifier %q", s)
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits := s[2:]
		if len(digits)%2 == 1 {
			digits = "0" + digits
		}
		b, err := hex.DecodeString(digits)
		if err != nil || len(b) == 0 {
			return Identifier{}, fmt.Errorf("unable to parse identifier %q", s)
		}
		return Identifier{b: b}, nil
	}

	if n, err := strconv.Atoi(s); err == nil {
		return IdentifierFromInt(n)
	}

	u, err := uuid.Parse(s)
	if err != nil {
		return Identifier{}, fmt.Errorf("unable to parse identifier %q", s)
	}
	return Identifier{b: u[:]}, nil
}

// MustParseIdentifier is ParseIdentifier for constants; it panics on error.
func MustParseIdentifier(s string) Identifier {
	id, err := ParseIdentifier(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IdentifierFromInt builds a two byte identifier (major/minor style).
func IdentifierFromInt(v int) (Identifier, error) {
	if v < 0 || v > 0xFFFF {
		return Identifier{}, fmt.Errorf("identifier value %d out of range [0, 65535]", v)
	}
	return Identifier{b: []byte{byte(v >> 8), byte(v)}}, nil
}

// IdentifierFromBytes copies b, reversing it when littleEndian is set.
func IdentifierFromBytes(b []byte, littleEndian bool) Identifier {
	cp := make([]byte, len(b))
	if littleEndian {
		for i := range b {
			cp[i] = b[len(b)-1-i]
		}
	} else {
		copy(cp, b)
	}
	return Identifier{b: cp}
}

// Bytes returns a copy of the raw identifier bytes.
func (id Identifier) Bytes() []byte {
	return append([]byte(nil), id.b...)
}

// Len returns the identifier length in bytes.
func (id Identifier) Len() int {
	return len(id.b)
}

// Int returns the big-endian unsigned value of the last 8 bytes.
func (id Identifier) Int() int {
	b := id.b
	if len(b) > 8 {
		b = b[len(b)-8:]
	}
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return int(v)
}

// String renders UUIDs in canonical form, two byte identifiers as decimal and
// everything else as 0x-prefixed hex.
func (id Identifier) String() string {
	switch len(id.b) {
	case 0:
		return ""
	case 2:
		return strconv.Itoa(id.Int())
	case 16:
		var u uuid.UUID
		copy(u[:], id.b)
		return u.String()
	default:
		return "0x" + hex.EncodeToString(id.b)
	}
}

// Equal compares identifier values, ignoring leading zero bytes so that
// "0x0001" equals "1".
func (id Identifier) Equal(other Identifier) bool {
	return bytes.Equal(trimLeadingZeros(id.b), trimLeadingZeros(other.b))
}

func trimLeadingZeros(b []byte) []byte {
	i := 0
	for i < len(b) && b[i] == 0 {
		i++
	}
	return b[i:]
}
