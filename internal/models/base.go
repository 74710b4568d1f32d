package models

import (
	"time"

	"github.com/Gopi7989/agri-connect/internal/utils"
)

type IBase interface {
	GenIDIfEmpty()
	GenID()
	Touch(now time.Time)
}

// Base carries the id and server-managed timestamps every stored document has.
type Base struct {
	ID        utils.SixID `bson:"_id,omitempty" json:"_id"`
	CreatedAt time.Time   `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time   `bson:"updated_at" json:"updatedAt"`
}

func (m *Base) GenIDIfEmpty() {
	if m.ID.IsZero() {
		m.GenID()
	}
}

func (m *Base) GenID() {
	m.ID = utils.NewSixID()
}

// Touch sets UpdatedAt, and CreatedAt on first save.
func (m *Base) Touch(now time.Time) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
}
