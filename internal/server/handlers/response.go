package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkmatrix/internal/apperr"
	"github.com/mamadbah2/milkmatrix/internal/auth"
	"github.com/mamadbah2/milkmatrix/internal/domain/models"
)

// Envelope is the body of every API response.
type Envelope struct {
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Kind     apperr.Kind            `json:"kind"`
	Message  string                 `json:"message"`
	Fields   map[string]string      `json:"fields,omitempty"`
	Existing *models.ExistingRecord `json:"existing,omitempty"`
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation:      http.StatusBadRequest,
	apperr.KindUnauthorized:    http.StatusUnauthorized,
	apperr.KindNotFound:        http.StatusNotFound,
	apperr.KindDuplicateRecord: http.StatusConflict,
	apperr.KindLookupFailed:    http.StatusBadGateway,
	apperr.KindNetwork:         http.StatusServiceUnavailable,
	apperr.KindUnknown:         http.StatusInternalServerError,
}

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(kind apperr.Kind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Data: data})
}

func fail(c *gin.Context, logger *zap.Logger, err error) {
	appErr := apperr.From(err)
	status := StatusFor(appErr.Kind)

	fields := []zap.Field{
		zap.String("path", c.FullPath()),
		zap.String("kind", string(appErr.Kind)),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", fields...)
	} else {
		logger.Debug("request rejected", fields...)
	}

	c.AbortWithStatusJSON(status, Envelope{Error: &ErrorBody{
		Kind:     appErr.Kind,
		Message:  appErr.Message,
		Fields:   appErr.Fields,
		Existing: appErr.Existing,
	}})
}

func bind(c *gin.Context, logger *zap.Logger, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		logger.Debug("invalid request body", zap.Error(err))
		fail(c, logger, apperr.Invalid("Invalid request body"))
		return false
	}
	return true
}

func confirmed(c *gin.Context, logger *zap.Logger) bool {
	if c.Query("confirm") != "true" {
		fail(c, logger, apperr.Invalid("Deleting a record must be confirmed with confirm=true"))
		return false
	}
	return true
}

func sessionFrom(c *gin.Context, logger *zap.Logger) (auth.Session, bool) {
	session, ok := auth.FromContext(c.Request.Context())
	if !ok {
		fail(c, logger, apperr.Unauthorized("Authentication required", nil))
	}
	return session, ok
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
