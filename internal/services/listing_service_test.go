package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/Gopi7989/agri-connect/internal/apperr"
	"github.com/Gopi7989/agri-connect/internal/config"
	"github.com/Gopi7989/agri-connect/internal/db"
	"github.com/Gopi7989/agri-connect/internal/models"
	"github.com/Gopi7989/agri-connect/internal/utils"
)

var testPaging = &config.Config{DefaultPageSize: 12, MaxPageSize: 100}

func TestListingService_CreateListing(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("farmer listing copies district and defaults status", func(mt *mtest.T) {
		svc := NewListingService(mt.DB, testPaging, nil)
		owner := farmer("Kurnool")
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		harvest := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
		listing, err := svc.CreateListing(context.Background(), owner, CreateListingInput{
			CropName:    " Tomato ",
			Quantity:    "500kg",
			HarvestDate: &harvest,
		})
		require.NoError(t, err)
		assert.False(t, listing.ID.IsZero())
		assert.Equal(t, owner.ID, listing.User)
		assert.Equal(t, "Tomato", listing.CropName)
		assert.Equal(t, "Kurnool", listing.LocationDistrict)
		assert.Equal(t, models.ListingAvailableNow, listing.Status)
		assert.Nil(t, listing.HarvestDate)
	})

	mt.Run("expected harvest keeps the date", func(mt *mtest.T) {
		svc := NewListingService(mt.DB, testPaging, nil)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		harvest := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
		listing, err := svc.CreateListing(context.Background(), farmer("Guntur"), CreateListingInput{
			CropName:    "Chilli",
			Quantity:    "10 quintals",
			Status:      models.ListingExpectedHarvest,
			HarvestDate: &harvest,
		})
		require.NoError(t, err)
		require.NotNil(t, listing.HarvestDate)
		assert.True(t, harvest.Equal(*listing.HarvestDate))
	})

	mt.Run("buyers cannot list", func(mt *mtest.T) {
		svc := NewListingService(mt.DB, testPaging, nil)

		_, err := svc.CreateListing(context.Background(), buyer(), CreateListingInput{CropName: "Tomato", Quantity: "1kg"})
		assert.True(t, apperr.Is(err, apperr.KindForbidden))
	})

	mt.Run("invalid input", func(mt *mtest.T) {
		svc := NewListingService(mt.DB, testPaging, nil)
		owner := farmer("Kurnool")

		_, err := svc.CreateListing(context.Background(), owner, CreateListingInput{Quantity: "1kg"})
		assert.True(t, apperr.Is(err, apperr.KindValidation))

		_, err = svc.CreateListing(context.Background(), owner, CreateListingInput{CropName: "Tomato"})
		assert.True(t, apperr.Is(err, apperr.KindValidation))

		_, err = svc.CreateListing(context.Background(), owner, CreateListingInput{CropName: "Tomato", Quantity: "1kg", Status: "Sold"})
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	mt.Run("store failure", func(mt *mtest.T) {
		svc := NewListingService(mt.DB, testPaging, nil)
		mt.AddMockResponses(commandError())

		_, err := svc.CreateListing(context.Background(), farmer("Kurnool"), CreateListingInput{CropName: "Tomato", Quantity: "1kg"})
		assert.True(t, apperr.Is(err, apperr.KindInternal))
	})
}

func TestListingService_CreateListingDropsCachedStats(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("summary key deleted after insert", func(mt *mtest.T) {
		statsCache := new(mockKeyDeleter)
		statsCache.On("Delete", mock.Anything, []string{statsSummaryKey}).Return(nil).Once()
		svc := NewListingService(mt.DB, testPaging, statsCache)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		_, err := svc.CreateListing(context.Background(), farmer("Kurnool"), CreateListingInput{CropName: "Tomato", Quantity: "1kg"})
		require.NoError(t, err)
		statsCache.AssertExpectations(t)
	})

	mt.Run("cache failure does not fail the create", func(mt *mtest.T) {
		statsCache := new(mockKeyDeleter)
		statsCache.On("Delete", mock.Anything, []string{statsSummaryKey}).Return(errors.New("redis down")).Once()
		svc := NewListingService(mt.DB, testPaging, statsCache)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		listing, err := svc.CreateListing(context.Background(), farmer("Kurnool"), CreateListingInput{CropName: "Tomato", Quantity: "1kg"})
		require.NoError(t, err)
		assert.Equal(t, "Tomato", listing.CropName)
		statsCache.AssertExpectations(t)
	})

	mt.Run("failed insert keeps the cache", func(mt *mtest.T) {
		statsCache := new(mockKeyDeleter)
		svc := NewListingService(mt.DB, testPaging, statsCache)
		mt.AddMockResponses(commandError())

		_, err := svc.CreateListing(context.Background(), farmer("Kurnool"), CreateListingInput{CropName: "Tomato", Quantity: "1kg"})
		require.Error(t, err)
		statsCache.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestListingService_ListListings(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("returns a page with owner names", func(mt *mtest.T) {
		svc := NewListingService(mt.DB, testPaging, nil)
		owner := farmer("Kurnool")
		views := []models.ListingView{
			{ID: utils.NewSixID(), User: &models.PartyRef{ID: owner.ID, Name: "Asha"}, CropName: "Tomato", Quantity: "500kg", Status: models.ListingAvailableNow, LocationDistrict: "Kurnool"},
			{ID: utils.NewSixID(), CropName: "Onion", Quantity: "2 tons", Status: models.ListingAvailableNow, LocationDistrict: "Kurnool"},
		}
		mt.AddMockResponses(
			countOf(mt, db.ListingsCollection, 14),
			cursorOf(mt, db.ListingsCollection, toDoc(t, views[0]), toDoc(t, views[1])),
		)

		page, err := svc.ListListings(context.Background(), ListingQuery{Page: 2})
		require.NoError(t, err)
		require.Len(t, page.Data, 2)
		require.NotNil(t, page.Data[0].User)
		assert.Equal(t, "Asha", page.Data[0].User.Name)
		assert.Nil(t, page.Data[1].User)
		assert.Equal(t, models.Pagination{Total: 14, Page: 2, Limit: 12, Pages: 2}, page.Pagination)
	})

	mt.Run("empty catalog", func(mt *mtest.T) {
		svc := NewListingService(mt.DB, testPaging, nil)
		mt.AddMockResponses(
			cursorOf(mt, db.ListingsCollection),
			cursorOf(mt, db.ListingsCollection),
		)

		page, err := svc.ListListings(context.Background(), ListingQuery{})
		require.NoError(t, err)
		assert.NotNil(t, page.Data)
		assert.Empty(t, page.Data)
		assert.Equal(t, models.Pagination{Total: 0, Page: 1, Limit: 12, Pages: 0}, page.Pagination)
	})

	mt.Run("sorts newest first with id tiebreak and skips whole pages", func(mt *mtest.T) {
		svc := NewListingService(mt.DB, testPaging, nil)
		mt.AddMockResponses(
			countOf(mt, db.ListingsCollection, 40),
			cursorOf(mt, db.ListingsCollection),
		)

		_, err := svc.ListListings(context.Background(), ListingQuery{Page: 2, Limit: 12})
		require.NoError(t, err)

		pipeline := aggregatePipeline(t, mt)
		require.GreaterOrEqual(t, len(pipeline), 4)
		assert.Equal(t, bson.E{Key: "$sort", Value: bson.D{{Key: "created_at", Value: int32(-1)}, {Key: "_id", Value: int32(-1)}}}, pipeline[1][0])
		assert.Equal(t, bson.E{Key: "$skip", Value: int64(12)}, pipeline[2][0])
		assert.Equal(t, bson.E{Key: "$limit", Value: int64(12)}, pipeline[3][0])
	})

	mt.Run("huge page keeps a non-negative skip", func(mt *mtest.T) {
		svc := NewListingService(mt.DB, testPaging, nil)
		mt.AddMockResponses(
			countOf(mt, db.ListingsCollection, 3),
			cursorOf(mt, db.ListingsCollection),
		)

		page, err := svc.ListListings(context.Background(), ListingQuery{Page: 1537228672809129302, Limit: 12})
		require.NoError(t, err)
		assert.Empty(t, page.Data)

		pipeline := aggregatePipeline(t, mt)
		require.GreaterOrEqual(t, len(pipeline), 3)
		skip, ok := pipeline[2][0].Value.(int64)
		require.True(t, ok)
		assert.GreaterOrEqual(t, skip, int64(0))
	})

	mt.Run("rejects an unknown status filter", func(mt *mtest.T) {
		svc := NewListingService(mt.DB, testPaging, nil)

		_, err := svc.ListListings(context.Background(), ListingQuery{Filter: models.ListingFilter{Status: "Sold"}})
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})
}

func TestListingService_normalizePage(t *testing.T) {
	svc := &listingService{cfg: testPaging}

	tests := []struct {
		name                string
		page, limit         int
		wantPage, wantLimit int
	}{
		{"defaults", 0, 0, 1, 12},
		{"negative", -3, -1, 1, 12},
		{"explicit", 3, 20, 3, 20},
		{"capped", 1, 500, 1, 100},
		{"huge page", 1537228672809129302, 12, math.MaxInt / 12, 12},
		{"max int page", math.MaxInt, 0, math.MaxInt / 12, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, limit := svc.normalizePage(tt.page, tt.limit)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantLimit, limit)
			assert.GreaterOrEqual(t, skipFor(page, limit), int64(0))
		})
	}
}

// aggregatePipeline returns the stages of the last aggregate command sent.
func aggregatePipeline(t *testing.T, mt *mtest.T) []bson.D {
	t.Helper()
	var pipeline []bson.D
	for _, evt := range mt.GetAllStartedEvents() {
		if evt.CommandName != "aggregate" {
			continue
		}
		var cmd struct {
			Pipeline []bson.D `bson:"pipeline"`
		}
		require.NoError(t, bson.Unmarshal(evt.Command, &cmd))
		pipeline = cmd.Pipeline
	}
	require.NotNil(t, pipeline, "no aggregate command sent")
	return pipeline
}

func TestListingMatch(t *testing.T) {
	match, err := listingMatch(models.ListingFilter{Crop: "to.mato", District: "kurnool", Status: models.ListingExpectedHarvest})
	require.NoError(t, err)

	assert.Equal(t, primitive.Regex{Pattern: `to\.mato`, Options: "i"}, match["crop_name"])
	assert.Equal(t, primitive.Regex{Pattern: "^kurnool$", Options: "i"}, match["location_district"])
	assert.Equal(t, models.ListingExpectedHarvest, match["status"])

	empty, err := listingMatch(models.ListingFilter{Crop: "  "})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestListingService_Lookups(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("find by id", func(mt *mtest.T) {
		svc := NewListingService(mt.DB, testPaging, nil)
		stored := models.Listing{ID: utils.NewSixID(), User: utils.NewSixID(), CropName: "Tomato", Quantity: "500kg", Status: models.ListingAvailableNow}
		mt.AddMockResponses(cursorOf(mt, db.ListingsCollection, toDoc(t, stored)))

		listing, err := svc.FindListingByID(context.Background(), stored.ID)
		require.NoError(t, err)
		assert.Equal(t, stored.User, listing.User)
	})

	mt.Run("find missing", func(mt *mtest.T) {
		svc := NewListingService(mt.DB, testPaging, nil)
		mt.AddMockResponses(cursorOf(mt, db.ListingsCollection))

		_, err := svc.FindListingByID(context.Background(), utils.NewSixID())
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
		assert.Equal(t, "Listing not found", apperr.From(err).Message)
	})

	mt.Run("view missing", func(mt *mtest.T) {
		svc := NewListingService(mt.DB, testPaging, nil)
		mt.AddMockResponses(cursorOf(mt, db.ListingsCollection))

		_, err := svc.GetListingView(context.Background(), utils.NewSixID())
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})
}
