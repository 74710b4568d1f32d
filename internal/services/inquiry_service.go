package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/Gopi7989/agri-connect/internal/apperr"
	"github.com/Gopi7989/agri-connect/internal/auth"
	"github.com/Gopi7989/agri-connect/internal/db"
	"github.com/Gopi7989/agri-connect/internal/logger"
	"github.com/Gopi7989/agri-connect/internal/metrics"
	"github.com/Gopi7989/agri-connect/internal/models"
	"github.com/Gopi7989/agri-connect/internal/utils"
)

// IInquiryService is the inquiry and bid ledger.
type IInquiryService interface {
	SendInquiry(ctx context.Context, sender *models.User, in SendInquiryInput) (*models.Inquiry, error)
	ListMine(ctx context.Context, userID utils.SixID) ([]models.InquiryView, error)
	DecideInquiry(ctx context.Context, actor *models.User, inquiryID utils.SixID, status models.BidStatus) (*models.Inquiry, error)
	MarkRead(ctx context.Context, actor *models.User, inquiryID utils.SixID) (*models.Inquiry, error)
	FindInquiryView(ctx context.Context, inquiryID utils.SixID) (*models.InquiryView, error)
	MarkNotified(ctx context.Context, inquiryID utils.SixID) error
}

// InquiryNotifier schedules the farmer notification for a new inquiry.
type InquiryNotifier interface {
	EnqueueInquiryNotification(ctx context.Context, inquiryID utils.SixID) error
}

type SendInquiryInput struct {
	ListingID     utils.SixID
	Message       string
	OfferPrice    *models.Price
	OfferQuantity string
}

type inquiryService struct {
	db       *mongo.Database
	listings IListingService
	notifier InquiryNotifier
}

// NewInquiryService creates the ledger. notifier may be nil.
func NewInquiryService(db *mongo.Database, listings IListingService, notifier InquiryNotifier) IInquiryService {
	return &inquiryService{db: db, listings: listings, notifier: notifier}
}

// SendInquiry records a pending, unread inquiry from a buyer to the listing's owner.
// The receiver always comes from the stored listing.
func (s *inquiryService) SendInquiry(ctx context.Context, sender *models.User, in SendInquiryInput) (*models.Inquiry, error) {
	if !auth.Allows(sender.Role, auth.CapSendInquiry) {
		return nil, apperr.Forbidden(auth.DeniedMessage(auth.CapSendInquiry))
	}

	message := strings.TrimSpace(in.Message)
	offerQuantity := strings.TrimSpace(in.OfferQuantity)
	if message == "" && in.OfferPrice == nil && offerQuantity == "" {
		return nil, apperr.Validation("An inquiry needs a message or an offer")
	}
	if in.OfferPrice != nil && !in.OfferPrice.IsPositive() {
		return nil, apperr.Validation("Offer price must be greater than zero")
	}

	listing, err := s.listings.FindListingByID(ctx, in.ListingID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	inquiry := &models.Inquiry{
		Listing:       listing.ID,
		FromBuyer:     sender.ID,
		ToFarmer:      listing.User,
		Message:       message,
		OfferPrice:    in.OfferPrice,
		OfferQuantity: offerQuantity,
		BidStatus:     models.BidPending,
		IsRead:        false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	collection := s.db.Collection(db.InquiriesCollection)
	err = db.Try(func() error {
		inquiry.ID = utils.NewSixID()
		_, insertErr := collection.InsertOne(ctx, inquiry)
		return insertErr
	})
	if err != nil {
		logger.Error("[SendInquiry] insert failed",
			zap.String("listing_id", listing.ID.String()),
			zap.String("buyer_id", sender.ID.String()),
			zap.Error(err))
		return nil, apperr.Internal(err)
	}
	metrics.InquiriesSent.Inc()

	if s.notifier != nil {
		if err := s.notifier.EnqueueInquiryNotification(ctx, inquiry.ID); err != nil {
			// The inquiry is stored; the farmer still sees it in the inbox.
			logger.Warn("[SendInquiry] failed to enqueue notification",
				zap.String("inquiry_id", inquiry.ID.String()), zap.Error(err))
		}
	}

	return inquiry, nil
}

// ListMine returns every inquiry the user sent or received, newest first.
func (s *inquiryService) ListMine(ctx context.Context, userID utils.SixID) ([]models.InquiryView, error) {
	match := bson.M{"$or": bson.A{
		bson.M{"from_buyer": userID},
		bson.M{"to_farmer": userID},
	}}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
	}
	pipeline = append(pipeline, inquiryLookups()...)

	views, err := s.aggregateViews(ctx, pipeline)
	if err != nil {
		logger.Error("[ListMine] aggregate failed", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, apperr.Internal(err)
	}
	return views, nil
}

// FindInquiryView returns one inquiry with its listing and parties populated.
func (s *inquiryService) FindInquiryView(ctx context.Context, inquiryID utils.SixID) (*models.InquiryView, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": inquiryID}}},
		{{Key: "$limit", Value: int64(1)}},
	}
	pipeline = append(pipeline, inquiryLookups()...)

	views, err := s.aggregateViews(ctx, pipeline)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if len(views) == 0 {
		return nil, apperr.NotFound("Inquiry not found")
	}
	return &views[0], nil
}

func (s *inquiryService) aggregateViews(ctx context.Context, pipeline mongo.Pipeline) ([]models.InquiryView, error) {
	cursor, err := s.db.Collection(db.InquiriesCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var views []models.InquiryView
	if err := cursor.All(ctx, &views); err != nil {
		return nil, err
	}
	if views == nil {
		views = []models.InquiryView{}
	}
	return views, nil
}

func inquiryLookups() mongo.Pipeline {
	party := bson.A{bson.D{{Key: "$project", Value: bson.D{{Key: "name", Value: 1}, {Key: "mobile_number", Value: 1}}}}}
	crop := bson.A{bson.D{{Key: "$project", Value: bson.D{{Key: "crop_name", Value: 1}}}}}
	return mongo.Pipeline{
		lookupStage(db.ListingsCollection, "listing", crop),
		unwindStage("listing"),
		lookupStage(db.UsersCollection, "from_buyer", party),
		unwindStage("from_buyer"),
		lookupStage(db.UsersCollection, "to_farmer", party),
		unwindStage("to_farmer"),
	}
}

// lookupStage joins field against _id of from and writes the match back into field.
func lookupStage(from, field string, project bson.A) bson.D {
	return bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: from},
		{Key: "localField", Value: field},
		{Key: "foreignField", Value: "_id"},
		{Key: "pipeline", Value: project},
		{Key: "as", Value: field},
	}}}
}

func unwindStage(field string) bson.D {
	return bson.D{{Key: "$unwind", Value: bson.D{
		{Key: "path", Value: "$" + field},
		{Key: "preserveNullAndEmptyArrays", Value: true},
	}}}
}

// DecideInquiry moves a pending inquiry to accepted or rejected. Only the receiving
// farmer may do it, and only once; the conditional update makes concurrent
// decisions race safely.
func (s *inquiryService) DecideInquiry(ctx context.Context, actor *models.User, inquiryID utils.SixID, status models.BidStatus) (*models.Inquiry, error) {
	if !auth.Allows(actor.Role, auth.CapDecideInquiry) {
		return nil, apperr.Forbidden(auth.DeniedMessage(auth.CapDecideInquiry))
	}
	if !status.Terminal() {
		return nil, apperr.Validation("Status must be 'accepted' or 'rejected'")
	}

	filter := bson.M{
		"_id":        inquiryID,
		"to_farmer":  actor.ID,
		"bid_status": models.BidPending,
	}
	update := bson.M{"$set": bson.M{
		"bid_status": status,
		"is_read":    true,
		"updated_at": time.Now().UTC(),
	}}

	updated, err := s.findOneAndUpdate(ctx, filter, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, s.explainMiss(ctx, inquiryID, actor.ID)
	}
	if err != nil {
		logger.Error("[DecideInquiry] update failed", zap.String("inquiry_id", inquiryID.String()), zap.Error(err))
		return nil, apperr.Internal(err)
	}

	metrics.BidDecisions.WithLabelValues(string(status)).Inc()
	return updated, nil
}

// MarkRead flags an inquiry as seen by its receiving farmer. Repeating it is harmless.
func (s *inquiryService) MarkRead(ctx context.Context, actor *models.User, inquiryID utils.SixID) (*models.Inquiry, error) {
	filter := bson.M{"_id": inquiryID, "to_farmer": actor.ID}
	update := bson.M{"$set": bson.M{"is_read": true}}

	updated, err := s.findOneAndUpdate(ctx, filter, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, s.explainMiss(ctx, inquiryID, actor.ID)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return updated, nil
}

func (s *inquiryService) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*models.Inquiry, error) {
	var inquiry models.Inquiry
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.db.Collection(db.InquiriesCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&inquiry)
	if err != nil {
		return nil, err
	}
	return &inquiry, nil
}

// explainMiss classifies a conditional update that matched nothing.
func (s *inquiryService) explainMiss(ctx context.Context, inquiryID, actorID utils.SixID) error {
	var current models.Inquiry
	err := s.db.Collection(db.InquiriesCollection).FindOne(ctx, bson.M{"_id": inquiryID}).Decode(&current)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.NotFound("Inquiry not found")
	}
	if err != nil {
		return apperr.Internal(err)
	}
	if current.ToFarmer != actorID {
		return apperr.Forbidden("Only the receiving farmer can manage this inquiry")
	}
	return apperr.Conflict(fmt.Sprintf("Inquiry already %s", current.BidStatus))
}

// MarkNotified records that the farmer notification went out.
func (s *inquiryService) MarkNotified(ctx context.Context, inquiryID utils.SixID) error {
	res, err := s.db.Collection(db.InquiriesCollection).UpdateOne(ctx,
		bson.M{"_id": inquiryID},
		bson.M{"$set": bson.M{"notified": true}},
	)
	if err != nil {
		return apperr.Internal(err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("Inquiry not found")
	}
	return nil
}
