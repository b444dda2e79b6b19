package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkmatrix/internal/service/health"
)

// HealthHandler serves health event endpoints.
type HealthHandler struct {
	svc    *health.Service
	logger *zap.Logger
}

// NewHealthHandler constructs the HTTP handler adapter.
func NewHealthHandler(svc *health.Service, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{svc: svc, logger: logger}
}

// Create records an event performed by the signed in user unless the form
// names someone else.
func (h *HealthHandler) Create(c *gin.Context) {
	session, ok := sessionFrom(c, h.logger)
	if !ok {
		return
	}
	var in health.Input
	if !bind(c, h.logger, &in) {
		return
	}
	record, err := h.svc.Create(c.Request.Context(), session, in)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, record)
}

func (h *HealthHandler) Update(c *gin.Context) {
	var in health.Input
	if !bind(c, h.logger, &in) {
		return
	}
	record, err := h.svc.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, record)
}

func (h *HealthHandler) Delete(c *gin.Context) {
	if !confirmed(c, h.logger) {
		return
	}
	record, err := h.svc.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, record)
}

func (h *HealthHandler) Recent(c *gin.Context) {
	records, err := h.svc.Recent(c.Request.Context())
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, records)
}

func (h *HealthHandler) Alerts(c *gin.Context) {
	records, err := h.svc.Alerts(c.Request.Context())
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, records)
}

func (h *HealthHandler) ByCow(c *gin.Context) {
	records, err := h.svc.ByCow(c.Request.Context(), c.Param("cowId"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, records)
}
