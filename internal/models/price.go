package models

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Price is an exact money amount. It is a JSON number on the wire and a
// Decimal128 in storage.
type Price struct {
	value decimal.Decimal
}

func NewPrice(d decimal.Decimal) Price {
	return Price{value: d}
}

func ParsePrice(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, fmt.Errorf("invalid price %q: %w", s, err)
	}
	return Price{value: d}, nil
}

func (p Price) Decimal() decimal.Decimal {
	return p.value
}

func (p Price) String() string {
	return p.value.String()
}

func (p Price) IsPositive() bool {
	return p.value.IsPositive()
}

func (p Price) Equal(other Price) bool {
	return p.value.Equal(other.value)
}

func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(p.value.String()), nil
}

// UnmarshalJSON accepts a number or a numeric string.
func (p *Price) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	parsed, err := ParsePrice(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p Price) MarshalBSONValue() (bsontype.Type, []byte, error) {
	d128, err := primitive.ParseDecimal128(p.value.String())
	if err != nil {
		return 0, nil, fmt.Errorf("price %s does not fit decimal128: %w", p.value, err)
	}
	return bson.MarshalValue(d128)
}

// UnmarshalBSONValue also reads numeric types written by older clients.
func (p *Price) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Decimal128:
		return p.setString(raw.Decimal128().String())
	case bsontype.Double:
		p.value = decimal.NewFromFloat(raw.Double())
	case bsontype.Int32:
		p.value = decimal.NewFromInt32(raw.Int32())
	case bsontype.Int64:
		p.value = decimal.NewFromInt(raw.Int64())
	case bsontype.String:
		return p.setString(raw.StringValue())
	default:
		return fmt.Errorf("cannot decode BSON %s into Price", t)
	}
	return nil
}

func (p *Price) setString(s string) error {
	parsed, err := ParsePrice(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
