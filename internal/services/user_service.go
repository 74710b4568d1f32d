package services

import (
	"context"
	"errors"
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

// IUserService is the credential store: accounts, login and profile lookup.
type IUserService interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	Authenticate(ctx context.Context, mobileNumber, password string) (*models.User, string, error)
	FindByID(ctx context.Context, userID utils.SixID) (*models.User, error)
	ChangePassword(ctx context.Context, userID utils.SixID, currentPassword, newPassword string) error
}

// RegisterInput is a new account. Fields of the other role are discarded.
type RegisterInput struct {
	Name             string
	MobileNumber     string
	Password         string
	Role             models.Role
	LocationDistrict string
	LocationVillage  string
	MainCrops        []string
	LandSize         string
	CompanyName      string
	InterestedIn     []string
}

// Projection that keeps the credential out of every lookup except login.
var withoutCredential = bson.D{{Key: "password", Value: 0}}

type userService struct {
	db     *mongo.Database
	hasher *auth.PasswordHasher
	tokens *auth.TokenService
}

func NewUserService(db *mongo.Database, hasher *auth.PasswordHasher, tokens *auth.TokenService) IUserService {
	return &userService{db: db, hasher: hasher, tokens: tokens}
}

// Register creates an account. A taken mobile number is a DuplicateHandle error,
// whether found by the pre-check or by the unique index on a concurrent insert.
func (s *userService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	user := &models.User{
		Name:             strings.TrimSpace(in.Name),
		MobileNumber:     strings.TrimSpace(in.MobileNumber),
		Role:             in.Role,
		LocationDistrict: strings.TrimSpace(in.LocationDistrict),
		LocationVillage:  strings.TrimSpace(in.LocationVillage),
		MainCrops:        in.MainCrops,
		LandSize:         in.LandSize,
		CompanyName:      in.CompanyName,
		InterestedIn:     in.InterestedIn,
	}
	if err := validateRegistration(user, in.Password); err != nil {
		return nil, err
	}
	user.DropForeignRoleFields()

	collection := s.db.Collection(db.UsersCollection)

	err := collection.FindOne(ctx, bson.M{"mobile_number": user.MobileNumber}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == nil {
		return nil, apperr.New(apperr.KindDuplicateHandle, "")
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		logger.Error("[Register] lookup failed", zap.Error(err))
		return nil, apperr.Internal(err)
	}

	hash, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	user.PasswordHash = hash
	user.Touch(time.Now().UTC())

	err = db.Try(func() error {
		user.GenID()
		_, insertErr := collection.InsertOne(ctx, user)
		return insertErr
	})
	if err != nil {
		if db.IsDuplicateKeyOn(err, "mobile_number") {
			return nil, apperr.New(apperr.KindDuplicateHandle, "")
		}
		logger.Error("[Register] insert failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		return nil, apperr.Internal(err)
	}

	metrics.UsersRegistered.WithLabelValues(string(user.Role)).Inc()
	logger.Info("User registered", zap.String("user_id", user.ID.String()), zap.String("role", string(user.Role)))

	user.PasswordHash = ""
	return user, nil
}

func validateRegistration(u *models.User, password string) error {
	switch {
	case u.Name == "":
		return apperr.Validation("Please provide your name")
	case u.MobileNumber == "":
		return apperr.Validation("Please provide your mobile number")
	case len(password) < auth.MinPasswordLength:
		return apperr.Validation("Password must be at least 6 characters")
	case !u.Role.Valid():
		return apperr.Validation("Please specify your role (farmer or buyer)")
	case u.LocationDistrict == "":
		return apperr.Validation("Please provide your district")
	}
	return nil
}

// Authenticate returns the user and a fresh token. Unknown handle and wrong
// password produce the same error after the same amount of hashing work.
func (s *userService) Authenticate(ctx context.Context, mobileNumber, password string) (*models.User, string, error) {
	mobileNumber = strings.TrimSpace(mobileNumber)
	if mobileNumber == "" || password == "" {
		s.hasher.BurnCompare(password)
		metrics.LoginFailures.Inc()
		return nil, "", apperr.New(apperr.KindInvalidCredentials, "")
	}

	var user models.User
	err := s.db.Collection(db.UsersCollection).FindOne(ctx, bson.M{"mobile_number": mobileNumber}).Decode(&user)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			logger.Error("[Authenticate] lookup failed", zap.Error(err))
			return nil, "", apperr.Internal(err)
		}
		s.hasher.BurnCompare(password)
		metrics.LoginFailures.Inc()
		return nil, "", apperr.New(apperr.KindInvalidCredentials, "")
	}

	if !s.hasher.CheckPasswordHash(password, user.PasswordHash) {
		metrics.LoginFailures.Inc()
		return nil, "", apperr.New(apperr.KindInvalidCredentials, "")
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", apperr.Internal(err)
	}

	user.PasswordHash = ""
	return &user, token, nil
}

// FindByID returns the user without the credential.
func (s *userService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	var user models.User
	opts := options.FindOne().SetProjection(withoutCredential)
	err := s.db.Collection(db.UsersCollection).FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Internal(err)
	}
	return &user, nil
}

// ChangePassword re-hashes the credential after checking the current one.
func (s *userService) ChangePassword(ctx context.Context, userID utils.SixID, currentPassword, newPassword string) error {
	if len(newPassword) < auth.MinPasswordLength {
		return apperr.Validation("Password must be at least 6 characters")
	}

	collection := s.db.Collection(db.UsersCollection)
	var user models.User
	err := collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.NotFound("User not found")
		}
		return apperr.Internal(err)
	}
	if !s.hasher.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return apperr.New(apperr.KindInvalidCredentials, "Current password is incorrect")
	}

	hash, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		return apperr.Internal(err)
	}
	_, err = collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"password": hash, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		logger.Error("[ChangePassword] update failed", zap.String("user_id", userID.String()), zap.Error(err))
		return apperr.Internal(err)
	}
	logger.Info("Password changed", zap.String("user_id", userID.String()))
	return nil
}
