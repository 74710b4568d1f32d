package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"

	"github.com/Gopi7989/agri-connect/internal/api/handlers"
	"github.com/Gopi7989/agri-connect/internal/api/middleware"
	"github.com/Gopi7989/agri-connect/internal/models"
	"github.com/Gopi7989/agri-connect/internal/services"
	"github.com/Gopi7989/agri-connect/internal/utils"
)

// --- Mocks ---

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, in services.RegisterInput) (*models.User, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, mobileNumber, password string) (*models.User, string, error) {
	args := m.Called(ctx, mobileNumber, password)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*models.User), args.String(1), args.Error(2)
}

func (m *MockUserService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) ChangePassword(ctx context.Context, userID utils.SixID, currentPassword, newPassword string) error {
	return m.Called(ctx, userID, currentPassword, newPassword).Error(0)
}

type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) CreateListing(ctx context.Context, owner *models.User, in services.CreateListingInput) (*models.Listing, error) {
	args := m.Called(ctx, owner, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) ListListings(ctx context.Context, q services.ListingQuery) (*models.ListingPage, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ListingPage), args.Error(1)
}

func (m *MockListingService) FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) GetListingView(ctx context.Context, listingID utils.SixID) (*models.ListingView, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ListingView), args.Error(1)
}

type MockInquiryService struct {
	mock.Mock
}

func (m *MockInquiryService) SendInquiry(ctx context.Context, sender *models.User, in services.SendInquiryInput) (*models.Inquiry, error) {
	args := m.Called(ctx, sender, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) ListMine(ctx context.Context, userID utils.SixID) ([]models.InquiryView, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.InquiryView), args.Error(1)
}

func (m *MockInquiryService) DecideInquiry(ctx context.Context, actor *models.User, inquiryID utils.SixID, status models.BidStatus) (*models.Inquiry, error) {
	args := m.Called(ctx, actor, inquiryID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) MarkRead(ctx context.Context, actor *models.User, inquiryID utils.SixID) (*models.Inquiry, error) {
	args := m.Called(ctx, actor, inquiryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) FindInquiryView(ctx context.Context, inquiryID utils.SixID) (*models.InquiryView, error) {
	args := m.Called(ctx, inquiryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InquiryView), args.Error(1)
}

func (m *MockInquiryService) MarkNotified(ctx context.Context, inquiryID utils.SixID) error {
	return m.Called(ctx, inquiryID).Error(0)
}

type MockStatsService struct {
	mock.Mock
}

func (m *MockStatsService) Summary(ctx context.Context) (*models.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Stats), args.Error(1)
}

func (m *MockStatsService) Districts(ctx context.Context) ([]models.DistrictCount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DistrictCount), args.Error(1)
}

// --- Helpers ---

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	handlers.RegisterValidators()
	return gin.New()
}

// asUser stands in for AuthMiddleware.
func asUser(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, user.ID)
		c.Set(middleware.ContextKeyUser, user)
		c.Next()
	}
}

func testFarmer() *models.User {
	return &models.User{
		Base:             models.Base{ID: utils.NewSixID()},
		Name:             "Asha",
		MobileNumber:     "9000000001",
		Role:             models.RoleFarmer,
		LocationDistrict: "Kurnool",
		MainCrops:        []string{"Tomato"},
	}
}

func testBuyer() *models.User {
	return &models.User{
		Base:             models.Base{ID: utils.NewSixID()},
		Name:             "Ravi",
		MobileNumber:     "9000000002",
		Role:             models.RoleBuyer,
		LocationDistrict: "Guntur",
	}
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder, v interface{}) error {
	return json.Unmarshal(w.Body.Bytes(), v)
}
