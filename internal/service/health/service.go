package health

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/milkmatrix/internal/apperr"
	"github.com/mamadbah2/milkmatrix/internal/auth"
	"github.com/mamadbah2/milkmatrix/internal/domain/models"
	"github.com/mamadbah2/milkmatrix/internal/repository"
)

const (
	RecentLimit = 20
	ByCowLimit  = 50
)

// Input is a health event as entered on the record form.
type Input struct {
	CowID       string   `json:"cow_id"`
	EventType   string   `json:"event_type"`
	EventDate   string   `json:"event_date"`
	Status      string   `json:"status"`
	Description string   `json:"description"`
	Medications []string `json:"medications"`
	PerformedBy string   `json:"performed_by"`
	Notes       string   `json:"notes"`
}

// Service implements the health event operations.
type Service struct {
	repo   repository.HealthRepository
	logger *zap.Logger
}

// NewService wires a health service.
func NewService(repo repository.HealthRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// Create stores a new event. The performer defaults to the session's display name.
func (s *Service) Create(ctx context.Context, session auth.Session, in Input) (*models.HealthRecord, error) {
	if strings.TrimSpace(in.PerformedBy) == "" {
		in.PerformedBy = session.DisplayName
	}

	record, verr := build(in)
	if verr != nil {
		return nil, verr
	}

	created, err := s.repo.InsertHealthRecord(ctx, record)
	if err != nil {
		s.logger.Error("insert health record failed", zap.String("cow_id", record.CowID), zap.Error(err))
		return nil, apperr.From(err)
	}

	s.logger.Info("health record created",
		zap.String("id", created.ID),
		zap.String("cow_id", created.CowID),
		zap.String("event_type", string(created.EventType)),
		zap.String("status", string(created.Status)),
		zap.String("user_id", session.UserID))
	return created, nil
}

// Update overwrites the event identified by id.
func (s *Service) Update(ctx context.Context, id string, in Input) (*models.HealthRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Invalid("Health record ID is required")
	}

	record, verr := build(in)
	if verr != nil {
		return nil, verr
	}

	updated, err := s.repo.UpdateHealthRecord(ctx, id, record)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.NotFound("No health record found with ID: %s", id)
	case err != nil:
		s.logger.Error("update health record failed", zap.String("id", id), zap.Error(err))
		return nil, apperr.From(err)
	}

	s.logger.Info("health record updated", zap.String("id", id))
	return updated, nil
}

// Delete removes the event and returns it as it was.
func (s *Service) Delete(ctx context.Context, id string) (*models.HealthRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Invalid("Health record ID is required")
	}

	deleted, err := s.repo.DeleteHealthRecord(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.NotFound("No health record found with ID: %s", id)
	case err != nil:
		s.logger.Error("delete health record failed", zap.String("id", id), zap.Error(err))
		return nil, apperr.From(err)
	}

	s.logger.Info("health record deleted", zap.String("id", id))
	return deleted, nil
}

// Recent lists the latest events across the herd.
func (s *Service) Recent(ctx context.Context) ([]models.HealthRecord, error) {
	return s.list(ctx, repository.HealthQuery{Limit: RecentLimit})
}

// Alerts lists pending and urgent events, newest first.
func (s *Service) Alerts(ctx context.Context) ([]models.HealthRecord, error) {
	return s.list(ctx, repository.HealthQuery{Statuses: models.AlertStatuses})
}

// ByCow lists a cow's events, newest first.
func (s *Service) ByCow(ctx context.Context, cowID string) ([]models.HealthRecord, error) {
	if strings.TrimSpace(cowID) == "" {
		return nil, apperr.Validation(map[string]string{"cow_id": "Please select a cow"})
	}
	return s.list(ctx, repository.HealthQuery{CowID: cowID, Limit: ByCowLimit})
}

func (s *Service) list(ctx context.Context, q repository.HealthQuery) ([]models.HealthRecord, error) {
	records, err := s.repo.ListHealthRecords(ctx, q)
	if err != nil {
		s.logger.Error("list health records failed", zap.String("cow_id", q.CowID), zap.Error(err))
		return nil, apperr.From(err)
	}
	return records, nil
}

func build(in Input) (models.HealthRecord, *apperr.Error) {
	fields := map[string]string{}

	cowID := strings.TrimSpace(in.CowID)
	if cowID == "" {
		fields["cow_id"] = "Please select a cow"
	}

	eventType, ok := models.ParseEventType(in.EventType)
	if !ok {
		fields["event_type"] = "Please select an event type"
	}

	eventDate := strings.TrimSpace(in.EventDate)
	if eventDate == "" {
		fields["event_date"] = "Event date is required"
	} else if _, err := time.Parse(models.DateLayout, eventDate); err != nil {
		fields["event_date"] = "Event date must use the YYYY-MM-DD format"
	}

	status := models.StatusPending
	if strings.TrimSpace(in.Status) != "" {
		st, ok := models.ParseHealthStatus(in.Status)
		if !ok {
			fields["status"] = "Status must be pending, completed, urgent or cancelled"
		}
		status = st
	}

	description := strings.TrimSpace(in.Description)
	if description == "" {
		fields["description"] = "Please enter a description"
	}

	if len(fields) > 0 {
		return models.HealthRecord{}, apperr.Validation(fields)
	}

	return models.HealthRecord{
		CowID:       cowID,
		EventType:   eventType,
		EventDate:   eventDate,
		Status:      status,
		Description: description,
		Medications: medications(in.Medications),
		PerformedBy: strings.TrimSpace(in.PerformedBy),
		Notes:       strings.TrimSpace(in.Notes),
	}, nil
}

func medications(names []string) []models.Medication {
	out := make([]models.Medication, 0, len(names))
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, models.Medication{Name: name})
		}
	}
	return out
}
