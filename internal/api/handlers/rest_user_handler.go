package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopi7989/agri-connect/internal/models"
	"github.com/Gopi7989/agri-connect/internal/services"
	"github.com/Gopi7989/agri-connect/internal/utils"
)

// RestUserHandler handles account requests.
type RestUserHandler struct {
	userService services.IUserService
}

func NewRestUserHandler(userService services.IUserService) *RestUserHandler {
	return &RestUserHandler{userService: userService}
}

type RegisterRequest struct {
	Name             string      `json:"name" binding:"required"`
	MobileNumber     string      `json:"mobileNumber" binding:"required,mobile"`
	Password         string      `json:"password" binding:"required,min=6"`
	Role             models.Role `json:"role" binding:"required,oneof=farmer buyer"`
	LocationDistrict string      `json:"location_district" binding:"required"`
	LocationVillage  string      `json:"location_village"`
	MainCrops        []string    `json:"mainCrops"`
	LandSize         string      `json:"landSize"`
	CompanyName      string      `json:"companyName"`
	InterestedIn     []string    `json:"interestedIn"`
}

type RegisterResponse struct {
	ID      utils.SixID `json:"_id"`
	Name    string      `json:"name"`
	Role    models.Role `json:"role"`
	Message string      `json:"message"`
}

// LoginRequest fields are optional; blanks fail as invalid credentials.
type LoginRequest struct {
	MobileNumber string `json:"mobileNumber"`
	Password     string `json:"password"`
}

type LoginResponse struct {
	ID           utils.SixID `json:"_id"`
	Name         string      `json:"name"`
	MobileNumber string      `json:"mobileNumber"`
	Role         models.Role `json:"role"`
	Token        string      `json:"token"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

// Register handles POST /api/users/register
func (h *RestUserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.Register(c.Request.Context(), services.RegisterInput{
		Name:             req.Name,
		MobileNumber:     req.MobileNumber,
		Password:         req.Password,
		Role:             req.Role,
		LocationDistrict: req.LocationDistrict,
		LocationVillage:  req.LocationVillage,
		MainCrops:        req.MainCrops,
		LandSize:         req.LandSize,
		CompanyName:      req.CompanyName,
		InterestedIn:     req.InterestedIn,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		ID:      user.ID,
		Name:    user.Name,
		Role:    user.Role,
		Message: "User registered successfully!",
	})
}

// Login handles POST /api/users/login
func (h *RestUserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, token, err := h.userService.Authenticate(c.Request.Context(), req.MobileNumber, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		ID:           user.ID,
		Name:         user.Name,
		MobileNumber: user.MobileNumber,
		Role:         user.Role,
		Token:        token,
	})
}

// Profile handles GET /api/users/profile
func (h *RestUserHandler) Profile(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user.Public())
}

// ChangePassword handles PUT /api/users/password
func (h *RestUserHandler) ChangePassword(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.userService.ChangePassword(c.Request.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}
