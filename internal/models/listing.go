package models

import (
	"time"

	"github.com/Gopi7989/agri-connect/internal/utils"
)

type ListingStatus string

const (
	ListingAvailableNow    ListingStatus = "Available Now"
	ListingExpectedHarvest ListingStatus = "Expected Harvest"

	DefaultListingStatus = ListingAvailableNow
)

func (s ListingStatus) Valid() bool {
	return s == ListingAvailableNow || s == ListingExpectedHarvest
}

// Listing is a farmer's produce offer. User and LocationDistrict are fixed at creation;
// the district is a snapshot of the owner's district and is never reconciled.
type Listing struct {
	ID               utils.SixID   `bson:"_id,omitempty" json:"_id"`
	User             utils.SixID   `bson:"user" json:"user"`
	CropName         string        `bson:"crop_name" json:"cropName"`
	Quantity         string        `bson:"quantity" json:"quantity"`
	Status           ListingStatus `bson:"status" json:"status"`
	HarvestDate      *time.Time    `bson:"harvest_date,omitempty" json:"harvestDate,omitempty"`
	LocationDistrict string        `bson:"location_district" json:"location_district"`
	CreatedAt        time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt        time.Time     `bson:"updated_at" json:"updatedAt"`
}

// ListingView is a listing with its owner populated. User is nil when the owner no longer exists.
type ListingView struct {
	ID               utils.SixID   `bson:"_id" json:"_id"`
	User             *PartyRef     `bson:"user,omitempty" json:"user"`
	CropName         string        `bson:"crop_name" json:"cropName"`
	Quantity         string        `bson:"quantity" json:"quantity"`
	Status           ListingStatus `bson:"status" json:"status"`
	HarvestDate      *time.Time    `bson:"harvest_date,omitempty" json:"harvestDate,omitempty"`
	LocationDistrict string        `bson:"location_district" json:"location_district"`
	CreatedAt        time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt        time.Time     `bson:"updated_at" json:"updatedAt"`
}

// ListingRef is the populated form of a listing reference inside an inquiry.
type ListingRef struct {
	ID       utils.SixID `bson:"_id" json:"_id"`
	CropName string      `bson:"crop_name" json:"cropName"`
}

// ListingFilter narrows a catalog page. Empty fields do not filter.
type ListingFilter struct {
	Crop     string
	District string
	Status   ListingStatus
}

// Pagination describes one page of a listing query.
type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

// NewPagination computes pages as ceil(total/limit).
func NewPagination(total int64, page, limit int) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{Total: total, Page: page, Limit: limit, Pages: pages}
}

type ListingPage struct {
	Data       []ListingView `json:"data"`
	Pagination Pagination    `json:"pagination"`
}
