package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Gopi7989/agri-connect/internal/api/middleware"
	"github.com/Gopi7989/agri-connect/internal/apperr"
	"github.com/Gopi7989/agri-connect/internal/logger"
	"github.com/Gopi7989/agri-connect/internal/models"
)

var mobilePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

var registerOnce sync.Once

// RegisterValidators installs the custom binding rules on gin's validator.
// It is safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		err := v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
			return mobilePattern.MatchString(fl.Field().String())
		})
		if err != nil {
			panic(fmt.Sprintf("register mobile validator: %v", err))
		}
	})
}

// bindJSON decodes the body into req and reports a 400 on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, apperr.Validation(validationMessage(err)))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fmt.Sprintf("Please provide %s", fe.Field())
		case "min":
			return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
		case "max":
			return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		case "mobile":
			return "Please enter a valid mobile number"
		case "oneof":
			return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
		default:
			return fmt.Sprintf("%s is invalid", fe.Field())
		}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		return "Invalid JSON body"
	case errors.As(err, &typeErr):
		return fmt.Sprintf("%s has the wrong type", typeErr.Field)
	}
	return "Invalid request body"
}

// respondError writes the error body for err. Internal errors are logged at
// error level, client errors at debug.
func respondError(c *gin.Context, err error) {
	appErr := apperr.From(err)
	fields := []zap.Field{
		zap.String("request_id", c.GetString(middleware.ContextKeyRequestID)),
		zap.String("path", c.FullPath()),
		zap.String("code", appErr.Code()),
		zap.Error(err),
	}
	if appErr.Kind == apperr.KindInternal {
		logger.Error("request failed", fields...)
	} else {
		logger.Debug("request rejected", fields...)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(appErr.HTTPCode(), appErr.Body())
}

// mustUser returns the authenticated user; routes using it sit behind AuthMiddleware.
func mustUser(c *gin.Context) (*models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apperr.New(apperr.KindUnauthorized, "Not authorized, no token"))
		return nil, false
	}
	return user, true
}
