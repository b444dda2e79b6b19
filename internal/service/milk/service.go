package milk

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/milkmatrix/internal/apperr"
	"github.com/mamadbah2/milkmatrix/internal/domain/models"
	"github.com/mamadbah2/milkmatrix/internal/grading"
	"github.com/mamadbah2/milkmatrix/internal/repository"
)

const defaultListLimit = 50

// Input is the milk record form as submitted by a worker. Numeric fields are
// pointers so that omitted values stay distinguishable from zero.
type Input struct {
	CowID            string   `json:"cow_id"`
	Date             string   `json:"date"`
	Shift            string   `json:"shift"`
	Amount           *float64 `json:"amount"`
	Quality          string   `json:"quality"`
	Fat              *float64 `json:"fat"`
	Protein          *float64 `json:"protein"`
	Lactose          *float64 `json:"lactose"`
	SomaticCellCount *float64 `json:"somatic_cell_count"`
	BacteriaCount    *float64 `json:"bacteria_count"`
	Notes            string   `json:"notes"`
}

// Service implements the milk record operations.
type Service struct {
	repo   repository.MilkRepository
	engine *grading.Engine
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires a milk service. loc decides where "today" starts.
func NewService(repo repository.MilkRepository, engine *grading.Engine, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = grading.NewEngine(grading.DefaultStandards)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:   repo,
		engine: engine,
		loc:    loc,
		logger: logger,
		now:    time.Now,
	}
}

// FindConflict returns the record already stored for the triple, or nil.
// A failed lookup is reported as lookup_failed with the store's diagnostic.
func (s *Service) FindConflict(ctx context.Context, cowID, date string, shift models.Shift) (*models.MilkRecord, error) {
	existing, err := s.repo.FindMilkRecord(ctx, cowID, date, shift)
	if err != nil {
		s.logger.Error("duplicate check failed",
			zap.String("cow_id", cowID), zap.String("date", date), zap.String("shift", string(shift)), zap.Error(err))
		return nil, apperr.LookupFailed(err)
	}
	return existing, nil
}

// Create validates, checks for a duplicate, grades and stores a milk record.
// The duplicate check and the insert are not atomic.
func (s *Service) Create(ctx context.Context, in Input) (*models.MilkRecord, error) {
	record, verr := s.build(in)
	if verr != nil {
		return nil, verr
	}

	existing, err := s.FindConflict(ctx, record.CowID, record.Date, record.Shift)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Info("duplicate milk record rejected",
			zap.String("cow_id", record.CowID), zap.String("existing_id", existing.ID))
		return nil, apperr.Duplicate(existing.Existing(), nil)
	}

	created, err := s.repo.InsertMilkRecord(ctx, record)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, s.lostRace(ctx, record, err)
		}
		s.logger.Error("insert milk record failed", zap.String("cow_id", record.CowID), zap.Error(err))
		return nil, apperr.From(err)
	}

	s.logger.Info("milk record created",
		zap.String("id", created.ID),
		zap.String("cow_id", created.CowID),
		zap.String("shift", string(created.Shift)),
		zap.Float64("amount", created.Amount),
		zap.String("quality_grade", string(created.QualityGrade)))
	return created, nil
}

// Update overwrites the record identified by id with in.
func (s *Service) Update(ctx context.Context, id string, in Input) (*models.MilkRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Invalid("Milk record ID is required")
	}

	record, verr := s.build(in)
	if verr != nil {
		return nil, verr
	}

	existing, err := s.FindConflict(ctx, record.CowID, record.Date, record.Shift)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ID != id {
		if _, err := s.repo.GetMilkRecord(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperr.NotFound("No milk record found with ID: %s", id)
			}
			return nil, apperr.From(err)
		}
		return nil, apperr.Duplicate(existing.Existing(), nil)
	}

	updated, err := s.repo.UpdateMilkRecord(ctx, id, record)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.NotFound("No milk record found with ID: %s", id)
	case errors.Is(err, repository.ErrConflict):
		return nil, s.lostRace(ctx, record, err)
	case err != nil:
		s.logger.Error("update milk record failed", zap.String("id", id), zap.Error(err))
		return nil, apperr.From(err)
	}

	s.logger.Info("milk record updated", zap.String("id", id))
	return updated, nil
}

// Delete removes the record and returns it as it was.
func (s *Service) Delete(ctx context.Context, id string) (*models.MilkRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Invalid("Milk record ID is required")
	}

	deleted, err := s.repo.DeleteMilkRecord(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.NotFound("No milk record found with ID: %s", id)
	case err != nil:
		s.logger.Error("delete milk record failed", zap.String("id", id), zap.Error(err))
		return nil, apperr.From(err)
	}

	s.logger.Info("milk record deleted", zap.String("id", id))
	return deleted, nil
}

// Today lists the records created since local midnight, newest first.
func (s *Service) Today(ctx context.Context) ([]models.MilkRecord, error) {
	start := startOfDay(s.now(), s.loc)
	return s.list(ctx, repository.MilkQuery{CreatedFrom: start, CreatedTo: start.AddDate(0, 0, 1)})
}

// ByCow lists a cow's records, newest first. limit <= 0 selects the default.
func (s *Service) ByCow(ctx context.Context, cowID string, limit int) ([]models.MilkRecord, error) {
	if strings.TrimSpace(cowID) == "" {
		return nil, apperr.Validation(map[string]string{"cow_id": "Please select a cow"})
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.list(ctx, repository.MilkQuery{CowID: cowID, Limit: limit})
}

// Between lists records created in [start, end).
func (s *Service) Between(ctx context.Context, start, end time.Time) ([]models.MilkRecord, error) {
	if !end.After(start) {
		return nil, apperr.Invalid("End date must be after start date")
	}
	return s.list(ctx, repository.MilkQuery{CreatedFrom: start, CreatedTo: end})
}

// Summary aggregates the records created in [start, end). Averages only count
// records that carry the measurement.
func (s *Service) Summary(ctx context.Context, start, end time.Time) (*models.MilkSummary, error) {
	records, err := s.Between(ctx, start, end)
	if err != nil {
		return nil, err
	}
	summary := Summarize(records)
	summary.Start, summary.End = start, end
	return &summary, nil
}

// Summarize folds records into a MilkSummary without a time window.
func Summarize(records []models.MilkRecord) models.MilkSummary {
	var summary models.MilkSummary
	var fatSum, proteinSum float64
	var fatN, proteinN int

	for _, r := range records {
		summary.TotalQuantity += r.Amount
		if r.Fat != nil {
			fatSum += *r.Fat
			fatN++
		}
		if r.Protein != nil {
			proteinSum += *r.Protein
			proteinN++
		}
	}

	summary.RecordCount = len(records)
	if fatN > 0 {
		summary.AverageFat = fatSum / float64(fatN)
	}
	if proteinN > 0 {
		summary.AverageProtein = proteinSum / float64(proteinN)
	}
	return summary
}

// Standards returns the quality reference table.
func (s *Service) Standards() grading.Standards {
	return s.engine.Standards()
}

// Preview grades composition values without storing anything.
func (s *Service) Preview(p grading.Params) (grading.Result, error) {
	fields := map[string]string{}
	checkOptional(fields, "fat", p.Fat, "Please enter a valid fat content")
	checkOptional(fields, "protein", p.Protein, "Please enter a valid protein content")
	checkOptional(fields, "somatic_cell_count", p.SomaticCellCount, "Please enter a valid somatic cell count")
	checkOptional(fields, "bacteria_count", p.BacteriaCount, "Please enter a valid bacteria count")
	if len(fields) > 0 {
		return grading.Result{}, apperr.Validation(fields)
	}
	return s.engine.Evaluate(p), nil
}

func (s *Service) list(ctx context.Context, q repository.MilkQuery) ([]models.MilkRecord, error) {
	records, err := s.repo.ListMilkRecords(ctx, q)
	if err != nil {
		s.logger.Error("list milk records failed", zap.String("cow_id", q.CowID), zap.Error(err))
		return nil, apperr.From(err)
	}
	return records, nil
}

// lostRace maps a store level uniqueness violation back to a duplicate error,
// attaching the winning record when it can be read.
func (s *Service) lostRace(ctx context.Context, record models.MilkRecord, cause error) error {
	s.logger.Warn("milk record insert hit uniqueness constraint", zap.String("cow_id", record.CowID), zap.Error(cause))

	winner, err := s.repo.FindMilkRecord(ctx, record.CowID, record.Date, record.Shift)
	if err != nil || winner == nil {
		return apperr.Duplicate(&models.ExistingRecord{Date: record.Date, Shift: record.Shift}, cause)
	}
	return apperr.Duplicate(winner.Existing(), cause)
}

// build validates in and composes the record to store.
func (s *Service) build(in Input) (models.MilkRecord, *apperr.Error) {
	fields := map[string]string{}

	cowID := strings.TrimSpace(in.CowID)
	if cowID == "" {
		fields["cow_id"] = "Please select a cow"
	}

	date := strings.TrimSpace(in.Date)
	if date == "" {
		fields["date"] = "Date is required"
	} else if _, err := time.Parse(models.DateLayout, date); err != nil {
		fields["date"] = "Date must use the YYYY-MM-DD format"
	}

	shift, ok := models.ParseShift(in.Shift)
	if !ok {
		fields["shift"] = "Shift must be Morning or Evening"
	}

	if in.Amount == nil {
		fields["amount"] = "Quantity is required"
	} else if !finite(*in.Amount) || *in.Amount <= 0 {
		fields["amount"] = "Please enter a valid quantity"
	}

	quality := models.GradeGood
	if strings.TrimSpace(in.Quality) != "" {
		g, ok := models.ParseGrade(in.Quality)
		if !ok {
			fields["quality"] = "Quality must be Poor, Fair, Good or Excellent"
		}
		quality = g
	}

	checkOptional(fields, "fat", in.Fat, "Please enter a valid fat content")
	checkOptional(fields, "protein", in.Protein, "Please enter a valid protein content")
	checkOptional(fields, "lactose", in.Lactose, "Please enter a valid lactose content")
	checkCount(fields, "somatic_cell_count", in.SomaticCellCount, "Please enter a valid somatic cell count")
	checkCount(fields, "bacteria_count", in.BacteriaCount, "Please enter a valid bacteria count")

	if len(fields) > 0 {
		return models.MilkRecord{}, apperr.Validation(fields)
	}

	record := models.MilkRecord{
		CowID:            cowID,
		Date:             date,
		Shift:            shift,
		Amount:           *in.Amount,
		Quality:          quality,
		Fat:              in.Fat,
		Protein:          in.Protein,
		Lactose:          in.Lactose,
		SomaticCellCount: wholeCount(in.SomaticCellCount),
		BacteriaCount:    wholeCount(in.BacteriaCount),
		Notes:            strings.TrimSpace(in.Notes),
	}

	params := grading.Params{
		Fat:              in.Fat,
		Protein:          in.Protein,
		SomaticCellCount: truncated(in.SomaticCellCount),
		BacteriaCount:    truncated(in.BacteriaCount),
	}
	if params.Any() {
		record.QualityGrade = s.engine.Grade(params)
	} else {
		record.QualityGrade = quality
	}

	return record, nil
}

func checkOptional(fields map[string]string, key string, v *float64, msg string) {
	if v != nil && (!finite(*v) || *v < 0) {
		fields[key] = msg
	}
}

// checkCount also rejects counts too large to store as int64.
func checkCount(fields map[string]string, key string, v *float64, msg string) {
	checkOptional(fields, key, v, msg)
	if _, bad := fields[key]; !bad && v != nil && *v >= maxCount {
		fields[key] = msg
	}
}

func truncated(v *float64) *float64 {
	if v == nil {
		return nil
	}
	t := math.Trunc(*v)
	return &t
}

func wholeCount(v *float64) *int64 {
	if v == nil {
		return nil
	}
	n := int64(math.Trunc(*v))
	return &n
}

// maxCount is 2^63, the first float64 outside the int64 range.
const maxCount = float64(math.MaxInt64)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
