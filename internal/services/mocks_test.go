package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/Gopi7989/agri-connect/internal/models"
	"github.com/Gopi7989/agri-connect/internal/utils"
)

func newMockMongo(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

// toDoc converts a model to the document a server would return for it.
func toDoc(t *testing.T, v interface{}) bson.D {
	raw, err := bson.Marshal(v)
	require.NoError(t, err)
	var d bson.D
	require.NoError(t, bson.Unmarshal(raw, &d))
	return d
}

func ns(mt *mtest.T, collection string) string {
	return mt.DB.Name() + "." + collection
}

func cursorOf(mt *mtest.T, collection string, docs ...bson.D) bson.D {
	return mtest.CreateCursorResponse(0, ns(mt, collection), mtest.FirstBatch, docs...)
}

func countOf(mt *mtest.T, collection string, n int32) bson.D {
	return cursorOf(mt, collection, bson.D{{Key: "n", Value: n}})
}

func findAndModifyOf(doc interface{}) bson.D {
	return bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: doc}}
}

func commandError() bson.D {
	return mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "store unavailable"})
}

func farmer(district string) *models.User {
	return &models.User{Base: models.Base{ID: utils.NewSixID()}, Name: "Asha", Role: models.RoleFarmer, LocationDistrict: district, MobileNumber: "9000000001"}
}

func buyer() *models.User {
	return &models.User{Base: models.Base{ID: utils.NewSixID()}, Name: "Ravi", Role: models.RoleBuyer, LocationDistrict: "Guntur", MobileNumber: "9000000002"}
}

type mockListingService struct {
	mock.Mock
}

func (m *mockListingService) CreateListing(ctx context.Context, owner *models.User, in CreateListingInput) (*models.Listing, error) {
	args := m.Called(ctx, owner, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *mockListingService) ListListings(ctx context.Context, q ListingQuery) (*models.ListingPage, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ListingPage), args.Error(1)
}

func (m *mockListingService) FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *mockListingService) GetListingView(ctx context.Context, listingID utils.SixID) (*models.ListingView, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ListingView), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) EnqueueInquiryNotification(ctx context.Context, inquiryID utils.SixID) error {
	args := m.Called(ctx, inquiryID)
	return args.Error(0)
}

type mockKeyDeleter struct {
	mock.Mock
}

func (m *mockKeyDeleter) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

// insertedDoc returns the first document of the first insert command sent.
func insertedDoc(t *testing.T, mt *mtest.T) bson.Raw {
	t.Helper()
	for _, evt := range mt.GetAllStartedEvents() {
		if evt.CommandName != "insert" {
			continue
		}
		docs, err := evt.Command.LookupErr("documents")
		require.NoError(t, err)
		values, err := docs.Array().Values()
		require.NoError(t, err)
		require.NotEmpty(t, values)
		return values[0].Document()
	}
	require.FailNow(t, "no insert command sent")
	return nil
}
