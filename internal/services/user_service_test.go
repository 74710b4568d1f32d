package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/Gopi7989/agri-connect/internal/apperr"
	"github.com/Gopi7989/agri-connect/internal/auth"
	"github.com/Gopi7989/agri-connect/internal/db"
	"github.com/Gopi7989/agri-connect/internal/models"
	"github.com/Gopi7989/agri-connect/internal/utils"
)

func newTestUserService(t *testing.T, mt *mtest.T) (IUserService, *auth.PasswordHasher, *auth.TokenService) {
	hasher, err := auth.NewPasswordHasher(4)
	require.NoError(t, err)
	tokens := auth.NewTokenService("test-secret", time.Hour)
	return NewUserService(mt.DB, hasher, tokens), hasher, tokens
}

func farmerRegistration() RegisterInput {
	return RegisterInput{
		Name:             "Asha",
		MobileNumber:     "9000000001",
		Password:         "secret6",
		Role:             models.RoleFarmer,
		LocationDistrict: "Kurnool",
		MainCrops:        []string{"Tomato"},
		CompanyName:      "should be dropped",
	}
}

func storedUser(t *testing.T, hasher *auth.PasswordHasher, password string) models.User {
	hash, err := hasher.HashPassword(password)
	require.NoError(t, err)
	return models.User{
		Base:             models.Base{ID: utils.NewSixID()},
		Name:             "Asha",
		MobileNumber:     "9000000001",
		PasswordHash:     hash,
		Role:             models.RoleFarmer,
		LocationDistrict: "Kurnool",
	}
}

func TestUserService_Register(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("creates farmer and drops buyer fields", func(mt *mtest.T) {
		svc, _, _ := newTestUserService(t, mt)
		mt.AddMockResponses(
			cursorOf(mt, db.UsersCollection),
			mtest.CreateSuccessResponse(),
		)

		user, err := svc.Register(context.Background(), farmerRegistration())
		require.NoError(t, err)
		assert.False(t, user.ID.IsZero())
		assert.Equal(t, models.RoleFarmer, user.Role)
		assert.Equal(t, []string{"Tomato"}, user.MainCrops)
		assert.Empty(t, user.CompanyName)
		assert.Empty(t, user.PasswordHash)
		assert.False(t, user.CreatedAt.IsZero())
	})

	mt.Run("existing handle", func(mt *mtest.T) {
		svc, _, _ := newTestUserService(t, mt)
		mt.AddMockResponses(cursorOf(mt, db.UsersCollection, bson.D{{Key: "_id", Value: utils.NewSixID()}}))

		_, err := svc.Register(context.Background(), farmerRegistration())
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindDuplicateHandle))
		assert.Equal(t, "User already exists", apperr.From(err).Message)
	})

	mt.Run("concurrent registration loses on unique index", func(mt *mtest.T) {
		svc, _, _ := newTestUserService(t, mt)
		mt.AddMockResponses(
			cursorOf(mt, db.UsersCollection),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{
				Index:   0,
				Code:    11000,
				Message: `E11000 duplicate key error collection: agriconnect.users index: mobile_number_unique dup key: { mobile_number: "9000000001" }`,
			}),
		)

		_, err := svc.Register(context.Background(), farmerRegistration())
		assert.True(t, apperr.Is(err, apperr.KindDuplicateHandle))
	})

	mt.Run("retries id collision", func(mt *mtest.T) {
		svc, _, _ := newTestUserService(t, mt)
		mt.AddMockResponses(
			cursorOf(mt, db.UsersCollection),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{
				Index:   0,
				Code:    11000,
				Message: "E11000 duplicate key error collection: agriconnect.users index: _id_ dup key: { _id: BinData(128, 010203040506) }",
			}),
			mtest.CreateSuccessResponse(),
		)

		user, err := svc.Register(context.Background(), farmerRegistration())
		require.NoError(t, err)
		assert.False(t, user.ID.IsZero())
	})

	mt.Run("rejects invalid input without touching the store", func(mt *mtest.T) {
		svc, _, _ := newTestUserService(t, mt)

		in := farmerRegistration()
		in.Password = "12345"
		_, err := svc.Register(context.Background(), in)
		assert.True(t, apperr.Is(err, apperr.KindValidation))

		in = farmerRegistration()
		in.Role = "admin"
		_, err = svc.Register(context.Background(), in)
		assert.True(t, apperr.Is(err, apperr.KindValidation))

		in = farmerRegistration()
		in.LocationDistrict = "  "
		_, err = svc.Register(context.Background(), in)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	mt.Run("store failure is internal", func(mt *mtest.T) {
		svc, _, _ := newTestUserService(t, mt)
		mt.AddMockResponses(commandError())

		_, err := svc.Register(context.Background(), farmerRegistration())
		assert.True(t, apperr.Is(err, apperr.KindInternal))
	})
}

func TestUserService_Authenticate(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("valid credentials issue a token for the user", func(mt *mtest.T) {
		svc, hasher, tokens := newTestUserService(t, mt)
		stored := storedUser(t, hasher, "secret6")
		mt.AddMockResponses(cursorOf(mt, db.UsersCollection, toDoc(t, stored)))

		user, token, err := svc.Authenticate(context.Background(), "9000000001", "secret6")
		require.NoError(t, err)
		assert.Equal(t, stored.ID, user.ID)
		assert.Empty(t, user.PasswordHash)

		subject, err := tokens.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, stored.ID, subject)
	})

	mt.Run("wrong password and unknown handle fail the same way", func(mt *mtest.T) {
		svc, hasher, _ := newTestUserService(t, mt)
		stored := storedUser(t, hasher, "secret6")
		mt.AddMockResponses(
			cursorOf(mt, db.UsersCollection, toDoc(t, stored)),
			cursorOf(mt, db.UsersCollection),
		)

		_, _, wrongPassword := svc.Authenticate(context.Background(), "9000000001", "nope")
		_, _, unknown := svc.Authenticate(context.Background(), "9999999999", "secret6")

		assert.True(t, apperr.Is(wrongPassword, apperr.KindInvalidCredentials))
		assert.True(t, apperr.Is(unknown, apperr.KindInvalidCredentials))
		assert.Equal(t, wrongPassword.Error(), unknown.Error())
	})

	mt.Run("blank fields fail without a lookup", func(mt *mtest.T) {
		svc, _, _ := newTestUserService(t, mt)

		_, _, noMobile := svc.Authenticate(context.Background(), "  ", "secret6")
		_, _, noPassword := svc.Authenticate(context.Background(), "9000000001", "")

		assert.True(t, apperr.Is(noMobile, apperr.KindInvalidCredentials))
		assert.True(t, apperr.Is(noPassword, apperr.KindInvalidCredentials))
		assert.Empty(t, mt.GetAllStartedEvents())
	})

	mt.Run("store failure", func(mt *mtest.T) {
		svc, _, _ := newTestUserService(t, mt)
		mt.AddMockResponses(commandError())

		_, _, err := svc.Authenticate(context.Background(), "9000000001", "secret6")
		assert.True(t, apperr.Is(err, apperr.KindInternal))
	})
}

func TestUserService_FindByID(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("found", func(mt *mtest.T) {
		svc, _, _ := newTestUserService(t, mt)
		stored := models.User{Base: models.Base{ID: utils.NewSixID()}, Name: "Ravi", Role: models.RoleBuyer, LocationDistrict: "Guntur"}
		mt.AddMockResponses(cursorOf(mt, db.UsersCollection, toDoc(t, stored)))

		user, err := svc.FindByID(context.Background(), stored.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ravi", user.Name)
		assert.Equal(t, models.RoleBuyer, user.Role)
	})

	mt.Run("missing", func(mt *mtest.T) {
		svc, _, _ := newTestUserService(t, mt)
		mt.AddMockResponses(cursorOf(mt, db.UsersCollection))

		_, err := svc.FindByID(context.Background(), utils.NewSixID())
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})
}

func TestUserService_ChangePassword(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("re-hashes the new password", func(mt *mtest.T) {
		svc, hasher, _ := newTestUserService(t, mt)
		stored := storedUser(t, hasher, "secret6")
		mt.AddMockResponses(
			cursorOf(mt, db.UsersCollection, toDoc(t, stored)),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		err := svc.ChangePassword(context.Background(), stored.ID, "secret6", "newsecret")
		assert.NoError(t, err)
	})

	mt.Run("wrong current password", func(mt *mtest.T) {
		svc, hasher, _ := newTestUserService(t, mt)
		stored := storedUser(t, hasher, "secret6")
		mt.AddMockResponses(cursorOf(mt, db.UsersCollection, toDoc(t, stored)))

		err := svc.ChangePassword(context.Background(), stored.ID, "guess", "newsecret")
		assert.True(t, apperr.Is(err, apperr.KindInvalidCredentials))
	})

	mt.Run("new password too short", func(mt *mtest.T) {
		svc, _, _ := newTestUserService(t, mt)

		err := svc.ChangePassword(context.Background(), utils.NewSixID(), "secret6", "abc")
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})
}
