package models

import (
	"github.com/Gopi7989/agri-connect/internal/utils"
)

// Role is fixed when the account is created.
type Role string

const (
	RoleFarmer Role = "farmer"
	RoleBuyer  Role = "buyer"
)

func (r Role) Valid() bool {
	return r == RoleFarmer || r == RoleBuyer
}

// User represents a marketplace participant. MobileNumber is the login handle.
type User struct {
	Base             `bson:",inline"`
	Name             string `bson:"name" json:"name"`
	MobileNumber     string `bson:"mobile_number" json:"mobileNumber"`
	PasswordHash     string `bson:"password,omitempty" json:"-"`
	Role             Role   `bson:"role" json:"role"`
	LocationDistrict string `bson:"location_district" json:"location_district"`
	LocationVillage  string `bson:"location_village,omitempty" json:"location_village,omitempty"`

	// Farmer only
	MainCrops []string `bson:"main_crops,omitempty" json:"mainCrops,omitempty"`
	LandSize  string   `bson:"land_size,omitempty" json:"landSize,omitempty"`

	// Buyer only
	CompanyName  string   `bson:"company_name,omitempty" json:"companyName,omitempty"`
	InterestedIn []string `bson:"interested_in,omitempty" json:"interestedIn,omitempty"`
}

// DropForeignRoleFields clears the profile fields that belong to the other role.
func (u *User) DropForeignRoleFields() {
	switch u.Role {
	case RoleFarmer:
		u.CompanyName = ""
		u.InterestedIn = nil
	case RoleBuyer:
		u.MainCrops = nil
		u.LandSize = ""
	}
}

// PublicIdentity is what the API returns for a user. It never contains the credential.
type PublicIdentity struct {
	ID               utils.SixID `json:"_id"`
	Name             string      `json:"name"`
	MobileNumber     string      `json:"mobileNumber"`
	Role             Role        `json:"role"`
	LocationDistrict string      `json:"location_district"`
	LocationVillage  string      `json:"location_village,omitempty"`
	MainCrops        []string    `json:"mainCrops,omitempty"`
	LandSize         string      `json:"landSize,omitempty"`
	CompanyName      string      `json:"companyName,omitempty"`
	InterestedIn     []string    `json:"interestedIn,omitempty"`
}

func (u *User) Public() PublicIdentity {
	return PublicIdentity{
		ID:               u.ID,
		Name:             u.Name,
		MobileNumber:     u.MobileNumber,
		Role:             u.Role,
		LocationDistrict: u.LocationDistrict,
		LocationVillage:  u.LocationVillage,
		MainCrops:        u.MainCrops,
		LandSize:         u.LandSize,
		CompanyName:      u.CompanyName,
		InterestedIn:     u.InterestedIn,
	}
}

// PartyRef is the populated form of a user reference.
type PartyRef struct {
	ID           utils.SixID `bson:"_id" json:"_id"`
	Name         string      `bson:"name" json:"name"`
	MobileNumber string      `bson:"mobile_number,omitempty" json:"mobileNumber,omitempty"`
}
