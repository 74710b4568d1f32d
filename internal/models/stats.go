package models

// Stats are the landing page counters.
type Stats struct {
	Farmers   int64 `json:"farmers"`
	Listings  int64 `json:"listings"`
	Districts int64 `json:"districts"`
}

type DistrictCount struct {
	District string `bson:"_id" json:"district"`
	Listings int64  `bson:"listings" json:"listings"`
}
