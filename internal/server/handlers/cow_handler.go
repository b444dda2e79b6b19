package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkmatrix/internal/service/cows"
)

// CowHandler serves cow lookups and tag scans.
type CowHandler struct {
	svc    *cows.Service
	logger *zap.Logger
}

// NewCowHandler constructs the HTTP handler adapter.
func NewCowHandler(svc *cows.Service, logger *zap.Logger) *CowHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CowHandler{svc: svc, logger: logger}
}

type scanRequest struct {
	Payload string `json:"payload"`
}

func (h *CowHandler) List(c *gin.Context) {
	list, err := h.svc.All(c.Request.Context())
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, list)
}

func (h *CowHandler) Search(c *gin.Context) {
	list, err := h.svc.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, list)
}

func (h *CowHandler) Get(c *gin.Context) {
	cow, err := h.svc.ByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, cow)
}

func (h *CowHandler) ByTag(c *gin.Context) {
	cow, err := h.svc.ByTag(c.Request.Context(), c.Param("tag"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, cow)
}

// Records returns the cow with its latest milk and health records.
func (h *CowHandler) Records(c *gin.Context) {
	out, err := h.svc.WithRecentRecords(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, out)
}

// Scan resolves a raw tag payload to its cow.
func (h *CowHandler) Scan(c *gin.Context) {
	var req scanRequest
	if !bind(c, h.logger, &req) {
		return
	}
	cow, err := h.svc.ResolveScan(c.Request.Context(), req.Payload)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, cow)
}
