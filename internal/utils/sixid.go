package utils

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SixIDHookFunc defines the signature for the NewSixID test hook.
// It returns a SixID and a boolean indicating whether to override the default generation.
type SixIDHookFunc func() (id SixID, override bool)

// NewSixIDHook is a package-level variable that tests can set to override NewSixID behavior.
var NewSixIDHook SixIDHookFunc

// SixIDSubtype is the BSON binary subtype SixIDs are stored with.
const SixIDSubtype byte = 0x80

// sixIDTextLen is ceil(48/5).
const sixIDTextLen = 10

var crockford = base32.NewEncoding("0123456789ABCDEFGHJKMNPQRSTVWXYZ").WithPadding(base32.NoPadding)

// Confusable characters accepted on input.
var crockfordNormalizer = strings.NewReplacer("O", "0", "I", "1", "L", "1", "-", "", " ", "")

var ErrInvalidSixID = errors.New("invalid SixID")

// SixID is a 6-byte random identifier, rendered as 10 Crockford base32 characters.
type SixID [6]byte

// NewSixID creates a new SixID from crypto/rand.
func NewSixID() SixID {
	if NewSixIDHook != nil {
		if id, override := NewSixIDHook(); override {
			return id
		}
	}

	var id SixID
	if _, err := rand.Read(id[:]); err != nil {
		return SixID{}
	}
	return id
}

// ParseSixID parses the Crockford base32 form. Lowercase, hyphens and the
// letters O, I, L are tolerated.
func ParseSixID(s string) (SixID, error) {
	normalized := crockfordNormalizer.Replace(strings.ToUpper(s))
	if len(normalized) != sixIDTextLen {
		return SixID{}, fmt.Errorf("%w: %q must be %d characters", ErrInvalidSixID, s, sixIDTextLen)
	}
	decoded, err := crockford.DecodeString(normalized)
	if err != nil || len(decoded) != len(SixID{}) {
		return SixID{}, fmt.Errorf("%w: %q", ErrInvalidSixID, s)
	}
	var id SixID
	copy(id[:], decoded)
	// The last character carries two pad bits, which must be zero.
	if id.String() != normalized {
		return SixID{}, fmt.Errorf("%w: %q is not canonical", ErrInvalidSixID, s)
	}
	return id, nil
}

func (u SixID) String() string {
	return crockford.EncodeToString(u[:])
}

// IsZero lets `omitempty` skip unset ids.
func (u SixID) IsZero() bool {
	return u == SixID{}
}

// MarshalBSONValue stores the id as binary with SixIDSubtype.
func (u SixID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(primitive.Binary{Subtype: SixIDSubtype, Data: u[:]})
}

// UnmarshalBSONValue accepts null (zero id) or binary of the expected subtype and length.
func (u *SixID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	if t == bsontype.Null {
		*u = SixID{}
		return nil
	}
	raw := bson.RawValue{Type: t, Value: data}
	subtype, bin, ok := raw.BinaryOK()
	if !ok {
		return fmt.Errorf("%w: expected BSON binary, got %s", ErrInvalidSixID, t)
	}
	if subtype != SixIDSubtype || len(bin) != len(SixID{}) {
		return fmt.Errorf("%w: binary subtype %#x length %d", ErrInvalidSixID, subtype, len(bin))
	}
	copy(u[:], bin)
	return nil
}

func (u SixID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

func (u *SixID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseSixID(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
