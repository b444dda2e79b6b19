// Package supabase stores records through the hosted PostgREST API, the
// backend the mobile app used directly.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/milkmatrix/internal/domain/models"
	"github.com/mamadbah2/milkmatrix/internal/repository"
	client "github.com/mamadbah2/milkmatrix/pkg/clients/supabase"
)

const (
	tableCows    = "cows"
	tableMilk    = "milk_production"
	tableHealth  = "health_events"
	tableProfile = "profiles"

	milkSelect    = "*,cow:cows(tag_number,name,breed)"
	healthSelect  = "*,cow:cows(tag_number,name)"
	profileSelect = "id,first_name,last_name,display_name,email,role,updated_at"
)

// API is the subset of the Supabase client used by the store.
type API interface {
	Select(ctx context.Context, table string, query url.Values, out any) error
	Insert(ctx context.Context, table string, row any, query url.Values, out any) error
	Update(ctx context.Context, table string, query url.Values, patch any, out any) error
	Delete(ctx context.Context, table string, query url.Values, out any) error
}

// Store implements repository.Store on top of PostgREST.
type Store struct {
	api    API
	logger *zap.Logger
	now    func() time.Time
}

var _ repository.Store = (*Store)(nil)

// NewStore wires a PostgREST backed store.
func NewStore(api API, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{api: api, logger: logger, now: time.Now}
}

// Close is a no-op; the HTTP client holds no connections worth releasing.
func (s *Store) Close(context.Context) error { return nil }

// milkRow is the writable column set of milk_production.
type milkRow struct {
	CowID            string       `json:"cow_id"`
	Date             string       `json:"date"`
	Shift            models.Shift `json:"shift"`
	Amount           float64      `json:"amount"`
	Quality          models.Grade `json:"quality"`
	QualityGrade     models.Grade `json:"quality_grade"`
	Fat              *float64     `json:"fat"`
	Protein          *float64     `json:"protein"`
	Lactose          *float64     `json:"lactose"`
	SomaticCellCount *int64       `json:"somatic_cell_count"`
	BacteriaCount    *int64       `json:"bacteria_count"`
	Notes            string       `json:"notes"`
	UpdatedAt        *time.Time   `json:"updated_at,omitempty"`
}

func toMilkRow(r models.MilkRecord) milkRow {
	return milkRow{
		CowID:            r.CowID,
		Date:             r.Date,
		Shift:            r.Shift,
		Amount:           r.Amount,
		Quality:          r.Quality,
		QualityGrade:     r.QualityGrade,
		Fat:              r.Fat,
		Protein:          r.Protein,
		Lactose:          r.Lactose,
		SomaticCellCount: r.SomaticCellCount,
		BacteriaCount:    r.BacteriaCount,
		Notes:            r.Notes,
	}
}

// healthRow is the writable column set of health_events.
type healthRow struct {
	CowID       string              `json:"cow_id"`
	EventType   models.EventType    `json:"event_type"`
	EventDate   string              `json:"event_date"`
	Status      models.HealthStatus `json:"status"`
	Description string              `json:"description"`
	Medications []models.Medication `json:"medications"`
	PerformedBy string              `json:"performed_by"`
	Notes       string              `json:"notes"`
	UpdatedAt   *time.Time          `json:"updated_at,omitempty"`
}

func toHealthRow(r models.HealthRecord) healthRow {
	meds := r.Medications
	if meds == nil {
		meds = []models.Medication{}
	}
	return healthRow{
		CowID:       r.CowID,
		EventType:   r.EventType,
		EventDate:   r.EventDate,
		Status:      r.Status,
		Description: r.Description,
		Medications: meds,
		PerformedBy: r.PerformedBy,
		Notes:       r.Notes,
	}
}

// ---- cows ----

func (s *Store) GetCow(ctx context.Context, id string) (*models.Cow, error) {
	return s.oneCow(ctx, url.Values{"id": {eq(id)}})
}

func (s *Store) GetCowByTag(ctx context.Context, tag string) (*models.Cow, error) {
	return s.oneCow(ctx, url.Values{"tag_number": {eq(tag)}})
}

func (s *Store) oneCow(ctx context.Context, q url.Values) (*models.Cow, error) {
	q.Set("select", "*")
	q.Set("limit", "1")

	var rows []models.Cow
	if err := s.api.Select(ctx, tableCows, q, &rows); err != nil {
		return nil, s.mapErr("select cow", err)
	}
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	return &rows[0], nil
}

func (s *Store) ListCows(ctx context.Context) ([]models.Cow, error) {
	q := url.Values{"select": {"*"}, "order": {"tag_number"}}

	rows := []models.Cow{}
	if err := s.api.Select(ctx, tableCows, q, &rows); err != nil {
		return nil, s.mapErr("list cows", err)
	}
	return rows, nil
}

func (s *Store) SearchCows(ctx context.Context, term string) ([]models.Cow, error) {
	pattern := quote("*" + term + "*")
	q := url.Values{
		"select": {"*"},
		"or":     {fmt.Sprintf("(name.ilike.%s,tag_number.ilike.%s)", pattern, pattern)},
		"order":  {"tag_number"},
	}

	rows := []models.Cow{}
	if err := s.api.Select(ctx, tableCows, q, &rows); err != nil {
		return nil, s.mapErr("search cows", err)
	}
	return rows, nil
}

func (s *Store) InsertCows(ctx context.Context, cows []models.Cow) ([]models.Cow, error) {
	rows := make([]map[string]any, 0, len(cows))
	for _, c := range cows {
		row := map[string]any{
			"tag_number": c.TagNumber,
			"name":       c.Name,
			"breed":      c.Breed,
			"is_calf":    c.IsCalf,
		}
		if c.ID != "" {
			row["id"] = c.ID
		}
		if c.DateOfBirth != "" {
			row["date_of_birth"] = c.DateOfBirth
		}
		if c.Notes != "" {
			row["notes"] = c.Notes
		}
		rows = append(rows, row)
	}

	out := []models.Cow{}
	if err := s.api.Insert(ctx, tableCows, rows, nil, &out); err != nil {
		return nil, s.mapErr("insert cows", err)
	}
	return out, nil
}

// ---- milk ----

func (s *Store) FindMilkRecord(ctx context.Context, cowID, date string, shift models.Shift) (*models.MilkRecord, error) {
	q := url.Values{
		"select": {"id,cow_id,date,shift,amount,created_at"},
		"cow_id": {eq(cowID)},
		"date":   {eq(date)},
		"shift":  {eq(string(shift))},
		"limit":  {"1"},
	}

	var rows []models.MilkRecord
	if err := s.api.Select(ctx, tableMilk, q, &rows); err != nil {
		return nil, s.mapErr("find milk record", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *Store) GetMilkRecord(ctx context.Context, id string) (*models.MilkRecord, error) {
	q := url.Values{"select": {milkSelect}, "id": {eq(id)}, "limit": {"1"}}

	var rows []models.MilkRecord
	if err := s.api.Select(ctx, tableMilk, q, &rows); err != nil {
		return nil, s.mapErr("get milk record", err)
	}
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	return &rows[0], nil
}

func (s *Store) InsertMilkRecord(ctx context.Context, record models.MilkRecord) (*models.MilkRecord, error) {
	var rows []models.MilkRecord
	q := url.Values{"select": {milkSelect}}
	if err := s.api.Insert(ctx, tableMilk, toMilkRow(record), q, &rows); err != nil {
		return nil, s.mapErr("insert milk record", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert milk record: empty representation")
	}
	return &rows[0], nil
}

func (s *Store) UpdateMilkRecord(ctx context.Context, id string, record models.MilkRecord) (*models.MilkRecord, error) {
	row := toMilkRow(record)
	now := s.now().UTC()
	row.UpdatedAt = &now

	var rows []models.MilkRecord
	q := url.Values{"id": {eq(id)}, "select": {milkSelect}}
	if err := s.api.Update(ctx, tableMilk, q, row, &rows); err != nil {
		return nil, s.mapErr("update milk record", err)
	}
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	return &rows[0], nil
}

func (s *Store) DeleteMilkRecord(ctx context.Context, id string) (*models.MilkRecord, error) {
	var rows []models.MilkRecord
	if err := s.api.Delete(ctx, tableMilk, url.Values{"id": {eq(id)}}, &rows); err != nil {
		return nil, s.mapErr("delete milk record", err)
	}
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	return &rows[0], nil
}

func (s *Store) ListMilkRecords(ctx context.Context, mq repository.MilkQuery) ([]models.MilkRecord, error) {
	q := url.Values{"select": {milkSelect}, "order": {"created_at.desc"}}
	if mq.CowID != "" {
		q.Set("cow_id", eq(mq.CowID))
	}
	if !mq.CreatedFrom.IsZero() {
		q.Add("created_at", "gte."+mq.CreatedFrom.UTC().Format(time.RFC3339))
	}
	if !mq.CreatedTo.IsZero() {
		q.Add("created_at", "lt."+mq.CreatedTo.UTC().Format(time.RFC3339))
	}
	if mq.Limit > 0 {
		q.Set("limit", strconv.Itoa(mq.Limit))
	}

	rows := []models.MilkRecord{}
	if err := s.api.Select(ctx, tableMilk, q, &rows); err != nil {
		return nil, s.mapErr("list milk records", err)
	}
	return rows, nil
}

// ---- health ----

func (s *Store) InsertHealthRecord(ctx context.Context, record models.HealthRecord) (*models.HealthRecord, error) {
	var rows []models.HealthRecord
	q := url.Values{"select": {healthSelect}}
	if err := s.api.Insert(ctx, tableHealth, toHealthRow(record), q, &rows); err != nil {
		return nil, s.mapErr("insert health record", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert health record: empty representation")
	}
	return &rows[0], nil
}

func (s *Store) UpdateHealthRecord(ctx context.Context, id string, record models.HealthRecord) (*models.HealthRecord, error) {
	row := toHealthRow(record)
	now := s.now().UTC()
	row.UpdatedAt = &now

	var rows []models.HealthRecord
	q := url.Values{"id": {eq(id)}, "select": {healthSelect}}
	if err := s.api.Update(ctx, tableHealth, q, row, &rows); err != nil {
		return nil, s.mapErr("update health record", err)
	}
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	return &rows[0], nil
}

func (s *Store) DeleteHealthRecord(ctx context.Context, id string) (*models.HealthRecord, error) {
	var rows []models.HealthRecord
	if err := s.api.Delete(ctx, tableHealth, url.Values{"id": {eq(id)}}, &rows); err != nil {
		return nil, s.mapErr("delete health record", err)
	}
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	return &rows[0], nil
}

func (s *Store) ListHealthRecords(ctx context.Context, hq repository.HealthQuery) ([]models.HealthRecord, error) {
	q := url.Values{"select": {healthSelect}, "order": {"created_at.desc"}}
	if hq.CowID != "" {
		q.Set("cow_id", eq(hq.CowID))
	}
	if len(hq.Statuses) > 0 {
		statuses := make([]string, 0, len(hq.Statuses))
		for _, st := range hq.Statuses {
			statuses = append(statuses, string(st))
		}
		q.Set("status", "in.("+strings.Join(statuses, ",")+")")
	}
	if hq.Limit > 0 {
		q.Set("limit", strconv.Itoa(hq.Limit))
	}

	rows := []models.HealthRecord{}
	if err := s.api.Select(ctx, tableHealth, q, &rows); err != nil {
		return nil, s.mapErr("list health records", err)
	}
	return rows, nil
}

// ---- profiles ----

func (s *Store) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	q := url.Values{"select": {profileSelect}, "id": {eq(userID)}, "limit": {"1"}}

	var rows []models.Profile
	if err := s.api.Select(ctx, tableProfile, q, &rows); err != nil {
		return nil, s.mapErr("get profile", err)
	}
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	return &rows[0], nil
}

func (s *Store) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.Profile, error) {
	patch := map[string]any{"updated_at": s.now().UTC()}
	if update.FirstName != nil {
		patch["first_name"] = *update.FirstName
	}
	if update.LastName != nil {
		patch["last_name"] = *update.LastName
	}
	if update.DisplayName != nil {
		patch["display_name"] = *update.DisplayName
	}

	var rows []models.Profile
	q := url.Values{"id": {eq(userID)}, "select": {profileSelect}}
	if err := s.api.Update(ctx, tableProfile, q, patch, &rows); err != nil {
		return nil, s.mapErr("update profile", err)
	}
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	return &rows[0], nil
}

// mapErr translates client failures into repository sentinels. PostgREST
// payload errors keep their message; anything else is a transport failure.
func (s *Store) mapErr(op string, err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		if apiErr.UniqueViolation() {
			return fmt.Errorf("%s: %w: %v", op, repository.ErrConflict, apiErr)
		}
		s.logger.Debug("postgrest error", zap.String("op", op), zap.String("code", apiErr.Code), zap.Int("status", apiErr.Status))
		return apiErr
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, repository.ErrUnavailable, err)
}

func eq(v string) string {
	return "eq." + v
}

// quote wraps a filter value in double quotes so reserved characters in user
// input do not break the or=() expression.
func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}
