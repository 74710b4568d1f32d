package auth

import "github.com/Gopi7989/agri-connect/internal/models"

// Capability names an action that only some roles may perform.
type Capability string

const (
	CapCreateListing Capability = "listing:create"
	CapSendInquiry   Capability = "inquiry:send"
	CapDecideInquiry Capability = "inquiry:decide"
)

// Role checks live here and nowhere else; routes and services both consult this table.
var capabilities = map[Capability][]models.Role{
	CapCreateListing: {models.RoleFarmer},
	CapSendInquiry:   {models.RoleBuyer},
	CapDecideInquiry: {models.RoleFarmer},
}

var deniedMessages = map[Capability]string{
	CapCreateListing: "Only farmers can create listings",
	CapSendInquiry:   "Only buyers can send inquiries",
	CapDecideInquiry: "Only farmers can respond to inquiries",
}

// Allows reports whether role holds the capability.
func Allows(role models.Role, c Capability) bool {
	for _, r := range capabilities[c] {
		if r == role {
			return true
		}
	}
	return false
}

// DeniedMessage is the client message for a missing capability.
func DeniedMessage(c Capability) string {
	if msg, ok := deniedMessages[c]; ok {
		return msg
	}
	return "Not authorized"
}
