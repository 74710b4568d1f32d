package models

import (
	"time"

	"github.com/Gopi7989/agri-connect/internal/utils"
)

// BidStatus moves one way: pending to accepted or rejected.
type BidStatus string

const (
	BidPending  BidStatus = "pending"
	BidAccepted BidStatus = "accepted"
	BidRejected BidStatus = "rejected"
)

func (s BidStatus) Valid() bool {
	return s == BidPending || s == BidAccepted || s == BidRejected
}

// Terminal reports whether no further transition is allowed.
func (s BidStatus) Terminal() bool {
	return s == BidAccepted || s == BidRejected
}

// Inquiry is a buyer's message or bid about a listing. ToFarmer is always the
// listing owner at the time of sending.
type Inquiry struct {
	ID            utils.SixID `bson:"_id,omitempty" json:"_id"`
	Listing       utils.SixID `bson:"listing" json:"listing"`
	FromBuyer     utils.SixID `bson:"from_buyer" json:"from_buyer"`
	ToFarmer      utils.SixID `bson:"to_farmer" json:"to_farmer"`
	Message       string      `bson:"message,omitempty" json:"message,omitempty"`
	OfferPrice    *Price      `bson:"offer_price,omitempty" json:"offerPrice,omitempty"`
	OfferQuantity string      `bson:"offer_quantity,omitempty" json:"offerQuantity,omitempty"`
	BidStatus     BidStatus   `bson:"bid_status" json:"bidStatus"`
	IsRead        bool        `bson:"is_read" json:"isRead"`
	Notified      bool        `bson:"notified" json:"-"` // set by the notification worker
	CreatedAt     time.Time   `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time   `bson:"updated_at" json:"updatedAt"`
}

// InquiryView is an inquiry with listing and both parties populated.
type InquiryView struct {
	ID            utils.SixID `bson:"_id" json:"_id"`
	Listing       *ListingRef `bson:"listing,omitempty" json:"listing"`
	FromBuyer     *PartyRef   `bson:"from_buyer,omitempty" json:"from_buyer"`
	ToFarmer      *PartyRef   `bson:"to_farmer,omitempty" json:"to_farmer"`
	Message       string      `bson:"message,omitempty" json:"message,omitempty"`
	OfferPrice    *Price      `bson:"offer_price,omitempty" json:"offerPrice,omitempty"`
	OfferQuantity string      `bson:"offer_quantity,omitempty" json:"offerQuantity,omitempty"`
	BidStatus     BidStatus   `bson:"bid_status" json:"bidStatus"`
	IsRead        bool        `bson:"is_read" json:"isRead"`
	CreatedAt     time.Time   `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time   `bson:"updated_at" json:"updatedAt"`
}
