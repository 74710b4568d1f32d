package services

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/Gopi7989/agri-connect/internal/apperr"
	"github.com/Gopi7989/agri-connect/internal/auth"
	"github.com/Gopi7989/agri-connect/internal/config"
	"github.com/Gopi7989/agri-connect/internal/db"
	"github.com/Gopi7989/agri-connect/internal/logger"
	"github.com/Gopi7989/agri-connect/internal/metrics"
	"github.com/Gopi7989/agri-connect/internal/models"
	"github.com/Gopi7989/agri-connect/internal/utils"
)

// IListingService is the listing catalog.
type IListingService interface {
	CreateListing(ctx context.Context, owner *models.User, in CreateListingInput) (*models.Listing, error)
	ListListings(ctx context.Context, q ListingQuery) (*models.ListingPage, error)
	FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error)
	GetListingView(ctx context.Context, listingID utils.SixID) (*models.ListingView, error)
}

type CreateListingInput struct {
	CropName    string
	Quantity    string
	Status      models.ListingStatus
	HarvestDate *time.Time
}

// ListingQuery selects one page. Page and Limit below 1 fall back to defaults.
type ListingQuery struct {
	Page   int
	Limit  int
	Filter models.ListingFilter
}

// KeyDeleter drops cached entries. *cache.JSONCache satisfies it.
type KeyDeleter interface {
	Delete(ctx context.Context, keys ...string) error
}

type listingService struct {
	db         *mongo.Database
	cfg        *config.Config
	statsCache KeyDeleter
}

// NewListingService creates the catalog. statsCache may be nil; otherwise the
// cached stats summary is dropped whenever a listing is created.
func NewListingService(db *mongo.Database, cfg *config.Config, statsCache KeyDeleter) IListingService {
	return &listingService{db: db, cfg: cfg, statsCache: statsCache}
}

// CreateListing stores a listing owned by owner, copying the owner's district.
func (s *listingService) CreateListing(ctx context.Context, owner *models.User, in CreateListingInput) (*models.Listing, error) {
	if !auth.Allows(owner.Role, auth.CapCreateListing) {
		return nil, apperr.Forbidden(auth.DeniedMessage(auth.CapCreateListing))
	}

	listing := &models.Listing{
		User:             owner.ID,
		CropName:         strings.TrimSpace(in.CropName),
		Quantity:         strings.TrimSpace(in.Quantity),
		Status:           in.Status,
		LocationDistrict: owner.LocationDistrict,
	}
	if listing.CropName == "" {
		return nil, apperr.Validation("Please enter the crop name")
	}
	if listing.Quantity == "" {
		return nil, apperr.Validation("Please enter the quantity (e.g., 500kg, 10 quintals)")
	}
	if listing.Status == "" {
		listing.Status = models.DefaultListingStatus
	}
	if !listing.Status.Valid() {
		return nil, apperr.Validation("Status must be 'Available Now' or 'Expected Harvest'")
	}
	// A harvest date only means something for a future harvest.
	if listing.Status == models.ListingExpectedHarvest && in.HarvestDate != nil {
		hd := in.HarvestDate.UTC()
		listing.HarvestDate = &hd
	}

	now := time.Now().UTC()
	listing.CreatedAt = now
	listing.UpdatedAt = now

	collection := s.db.Collection(db.ListingsCollection)
	err := db.Try(func() error {
		listing.ID = utils.NewSixID()
		_, insertErr := collection.InsertOne(ctx, listing)
		return insertErr
	})
	if err != nil {
		logger.Error("[CreateListing] insert failed",
			zap.String("user_id", owner.ID.String()),
			zap.String("listing_id", listing.ID.String()),
			zap.Error(err))
		return nil, apperr.Internal(err)
	}

	metrics.ListingsCreated.Inc()
	if s.statsCache != nil {
		if err := s.statsCache.Delete(ctx, statsSummaryKey); err != nil {
			logger.Warn("[CreateListing] stats cache invalidation failed", zap.Error(err))
		}
	}
	return listing, nil
}

// ListListings returns the newest listings first with owner names and pagination totals.
func (s *listingService) ListListings(ctx context.Context, q ListingQuery) (*models.ListingPage, error) {
	page, limit := s.normalizePage(q.Page, q.Limit)
	match, err := listingMatch(q.Filter)
	if err != nil {
		return nil, err
	}

	collection := s.db.Collection(db.ListingsCollection)
	total, err := collection.CountDocuments(ctx, match)
	if err != nil {
		logger.Error("[ListListings] count failed", zap.Error(err))
		return nil, apperr.Internal(err)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$skip", Value: skipFor(page, limit)}},
		{{Key: "$limit", Value: int64(limit)}},
	}
	pipeline = append(pipeline, ownerLookup()...)

	cursor, err := collection.Aggregate(ctx, pipeline)
	if err != nil {
		logger.Error("[ListListings] aggregate failed", zap.Error(err))
		return nil, apperr.Internal(err)
	}
	var data []models.ListingView
	if err := cursor.All(ctx, &data); err != nil {
		return nil, apperr.Internal(err)
	}
	if data == nil {
		data = []models.ListingView{}
	}

	return &models.ListingPage{
		Data:       data,
		Pagination: models.NewPagination(total, page, limit),
	}, nil
}

func (s *listingService) normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.cfg.DefaultPageSize
	}
	if limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}
	// (page-1)*limit must fit the $skip stage.
	if maxPage := math.MaxInt / limit; page > maxPage {
		page = maxPage
	}
	return page, limit
}

func skipFor(page, limit int) int64 {
	return int64(page-1) * int64(limit)
}

// listingMatch builds the $match stage. Crop matches a case-insensitive substring,
// district a case-insensitive exact value.
func listingMatch(f models.ListingFilter) (bson.M, error) {
	match := bson.M{}
	if crop := strings.TrimSpace(f.Crop); crop != "" {
		match["crop_name"] = primitive.Regex{Pattern: regexp.QuoteMeta(crop), Options: "i"}
	}
	if district := strings.TrimSpace(f.District); district != "" {
		match["location_district"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(district) + "$", Options: "i"}
	}
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, apperr.Validation("Status must be 'Available Now' or 'Expected Harvest'")
		}
		match["status"] = f.Status
	}
	return match, nil
}

// ownerLookup replaces the owner id with {_id, name}. A missing owner leaves user unset.
func ownerLookup() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: db.UsersCollection},
			{Key: "localField", Value: "user"},
			{Key: "foreignField", Value: "_id"},
			{Key: "pipeline", Value: bson.A{bson.D{{Key: "$project", Value: bson.D{{Key: "name", Value: 1}}}}}},
			{Key: "as", Value: "user"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$user"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
	}
}

// FindListingByID returns the stored listing.
func (s *listingService) FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	var listing models.Listing
	err := s.db.Collection(db.ListingsCollection).FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("Listing not found")
		}
		return nil, apperr.Internal(err)
	}
	return &listing, nil
}

// GetListingView returns one listing with its owner populated.
func (s *listingService) GetListingView(ctx context.Context, listingID utils.SixID) (*models.ListingView, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": listingID}}},
		{{Key: "$limit", Value: int64(1)}},
	}
	pipeline = append(pipeline, ownerLookup()...)

	cursor, err := s.db.Collection(db.ListingsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	var views []models.ListingView
	if err := cursor.All(ctx, &views); err != nil {
		return nil, apperr.Internal(err)
	}
	if len(views) == 0 {
		return nil, apperr.NotFound("Listing not found")
	}
	return &views[0], nil
}
