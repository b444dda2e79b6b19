package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkmatrix/internal/apperr"
	"github.com/mamadbah2/milkmatrix/internal/domain/models"
	"github.com/mamadbah2/milkmatrix/internal/grading"
	"github.com/mamadbah2/milkmatrix/internal/service/milk"
	"github.com/mamadbah2/milkmatrix/internal/service/reporting"
)

const (
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	defaultWindowDays = 7
)

// MilkHandler serves milk record endpoints.
type MilkHandler struct {
	svc     *milk.Service
	reports *reporting.Service
	loc     *time.Location
	logger  *zap.Logger
	now     func() time.Time
}

// NewMilkHandler constructs the HTTP handler adapter. Query dates are read in loc.
func NewMilkHandler(svc *milk.Service, reports *reporting.Service, loc *time.Location, logger *zap.Logger) *MilkHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &MilkHandler{svc: svc, reports: reports, loc: loc, logger: logger, now: time.Now}
}

func (h *MilkHandler) Create(c *gin.Context) {
	var in milk.Input
	if !bind(c, h.logger, &in) {
		return
	}
	record, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, record)
}

func (h *MilkHandler) Update(c *gin.Context) {
	var in milk.Input
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

func (h *MilkHandler) Delete(c *gin.Context) {
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

func (h *MilkHandler) Today(c *gin.Context) {
	records, err := h.svc.Today(c.Request.Context())
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, records)
}

// ByCow lists a cow's records, newest first. limit is optional.
func (h *MilkHandler) ByCow(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fail(c, h.logger, apperr.Invalid("limit must be a positive number"))
			return
		}
		limit = n
	}

	records, err := h.svc.ByCow(c.Request.Context(), c.Param("cowId"), limit)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, records)
}

func (h *MilkHandler) Summary(c *gin.Context) {
	start, end, err := h.window(c)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	summary, err := h.svc.Summary(c.Request.Context(), start, end)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, summary)
}

func (h *MilkHandler) Standards(c *gin.Context) {
	respond(c, http.StatusOK, h.svc.Standards())
}

// Grade previews the grade of composition values without storing them.
func (h *MilkHandler) Grade(c *gin.Context) {
	var params grading.Params
	if !bind(c, h.logger, &params) {
		return
	}
	result, err := h.svc.Preview(params)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, result)
}

// Export streams the records of the window as an XLSX workbook.
func (h *MilkHandler) Export(c *gin.Context) {
	start, end, err := h.window(c)
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	var buf bytes.Buffer
	if err := h.reports.ExportMilkRecords(c.Request.Context(), start, end, &buf); err != nil {
		fail(c, h.logger, err)
		return
	}

	filename := fmt.Sprintf("milk-%s-%s.xlsx", start.Format(models.DateLayout), end.AddDate(0, 0, -1).Format(models.DateLayout))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// Reports returns the daily reports published to the sheet for the window.
func (h *MilkHandler) Reports(c *gin.Context) {
	start, end, err := h.window(c)
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	// Sheet dates carry no zone.
	from := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := end.AddDate(0, 0, -1)
	to := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)

	reports, err := h.reports.History(c.Request.Context(), from, to)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, reports)
}

// window reads the inclusive start and end dates of a report. The returned end
// is midnight after the last day. Both default to the last seven days.
func (h *MilkHandler) window(c *gin.Context) (time.Time, time.Time, error) {
	local := h.now().In(h.loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, h.loc)

	end := today
	if raw := c.Query("end"); raw != "" {
		parsed, err := time.ParseInLocation(models.DateLayout, raw, h.loc)
		if err != nil {
			return time.Time{}, time.Time{}, apperr.Validation(map[string]string{"end": "End date must use the YYYY-MM-DD format"})
		}
		end = parsed
	}

	start := end.AddDate(0, 0, -(defaultWindowDays - 1))
	if raw := c.Query("start"); raw != "" {
		parsed, err := time.ParseInLocation(models.DateLayout, raw, h.loc)
		if err != nil {
			return time.Time{}, time.Time{}, apperr.Validation(map[string]string{"start": "Start date must use the YYYY-MM-DD format"})
		}
		start = parsed
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, apperr.Validation(map[string]string{"end": "End date must not be before the start date"})
	}
	return start, end.AddDate(0, 0, 1), nil
}
