package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// IdentityPrefix is the prefix of the textual identity token form.
const IdentityPrefix = "snap-"

// IdentityToken is the index the persistence layer assigns to a snapshot
// once it is stored. The zero value means "not stored".
//
// Tokens are ULIDs, so they sort in assignment order.
// Format: snap-{ulid_lowercase}, 31 characters total.
type IdentityToken struct {
	id ulid.ULID
}

// NewIdentityToken generates a new identity token.
func NewIdentityToken() (IdentityToken, error) {
	return NewIdentityTokenAt(time.Now())
}

// NewIdentityTokenAt generates a new identity token with the given timestamp.
func NewIdentityTokenAt(t time.Time) (IdentityToken, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return IdentityToken{}, ErrStorageError.WithCause(err)
	}
	return IdentityToken{id: id}, nil
}

// ParseIdentityToken parses the textual form produced by String.
func ParseIdentityToken(s string) (IdentityToken, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(s, IdentityPrefix) || len(s) != len(IdentityPrefix)+ulid.EncodedSize {
		return IdentityToken{}, ErrInvalidArgument.WithDetailsf("malformed identity token %q", s)
	}
	id, err := ulid.Parse(strings.ToUpper(s[len(IdentityPrefix):]))
	if err != nil {
		return IdentityToken{}, ErrInvalidArgument.WithDetailsf("malformed identity token %q", s).WithCause(err)
	}
	return IdentityToken{id: id}, nil
}

// IsZero reports whether the token is unset.
func (t IdentityToken) IsZero() bool {
	return t.id == ulid.ULID{}
}

// Time returns the assignment timestamp encoded in the token.
func (t IdentityToken) Time() time.Time {
	return ulid.Time(t.id.Time())
}

// Compare orders tokens by assignment.
func (t IdentityToken) Compare(other IdentityToken) int {
	return t.id.Compare(other.id)
}

// String returns the textual form, or "" for the zero token.
func (t IdentityToken) String() string {
	if t.IsZero() {
		return ""
	}
	return IdentityPrefix + strings.ToLower(t.id.String())
}

// MarshalText implements encoding.TextMarshaler.
func (t IdentityToken) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input yields the zero token.
func (t *IdentityToken) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*t = IdentityToken{}
		return nil
	}
	parsed, err := ParseIdentityToken(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
