package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/Gopi7989/agri-connect/internal/apperr"
	"github.com/Gopi7989/agri-connect/internal/cache"
	"github.com/Gopi7989/agri-connect/internal/db"
	"github.com/Gopi7989/agri-connect/internal/logger"
	"github.com/Gopi7989/agri-connect/internal/metrics"
	"github.com/Gopi7989/agri-connect/internal/models"
)

// IStatsService derives read-only counters from users and listings.
type IStatsService interface {
	Summary(ctx context.Context) (*models.Stats, error)
	Districts(ctx context.Context) ([]models.DistrictCount, error)
}

const statsSummaryKey = "summary"

type statsService struct {
	db    *mongo.Database
	cache *cache.JSONCache
	ttl   time.Duration
}

// NewStatsService creates the aggregator. Results are cached for ttl; a cache
// without a Redis client disables caching.
func NewStatsService(db *mongo.Database, statsCache *cache.JSONCache, ttl time.Duration) IStatsService {
	return &statsService{db: db, cache: statsCache, ttl: ttl}
}

// Summary counts farmers, listings and the distinct districts that have listings.
func (s *statsService) Summary(ctx context.Context) (*models.Stats, error) {
	var cached models.Stats
	found, err := s.cache.Get(ctx, statsSummaryKey, &cached)
	if err != nil {
		logger.Warn("[Stats] cache read failed", zap.Error(err))
	}
	if found {
		metrics.StatsCacheLookups.WithLabelValues("hit").Inc()
		return &cached, nil
	}
	metrics.StatsCacheLookups.WithLabelValues("miss").Inc()

	farmers, err := s.db.Collection(db.UsersCollection).CountDocuments(ctx, bson.M{"role": models.RoleFarmer})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	listings := s.db.Collection(db.ListingsCollection)
	listingCount, err := listings.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	districts, err := listings.Distinct(ctx, "location_district", bson.M{})
	if err != nil {
		return nil, apperr.Internal(err)
	}

	stats := &models.Stats{
		Farmers:   farmers,
		Listings:  listingCount,
		Districts: int64(len(districts)),
	}
	if err := s.cache.Set(ctx, statsSummaryKey, stats, s.ttl); err != nil {
		logger.Warn("[Stats] cache write failed", zap.Error(err))
	}
	return stats, nil
}

// Districts returns listing counts per district, largest first.
func (s *statsService) Districts(ctx context.Context) ([]models.DistrictCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$location_district"},
			{Key: "listings", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "listings", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	cursor, err := s.db.Collection(db.ListingsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	var counts []models.DistrictCount
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, apperr.Internal(err)
	}
	if counts == nil {
		counts = []models.DistrictCount{}
	}
	return counts, nil
}
