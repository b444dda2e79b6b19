package cows

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/milkmatrix/internal/apperr"
	"github.com/mamadbah2/milkmatrix/internal/domain/models"
	"github.com/mamadbah2/milkmatrix/internal/qrcode"
	"github.com/mamadbah2/milkmatrix/internal/repository"
)

// RecentLimit bounds each record list returned by WithRecentRecords.
const RecentLimit = 5

// Service reads the cow registry.
type Service struct {
	cows   repository.CowRepository
	milk   repository.MilkRepository
	health repository.HealthRepository
	logger *zap.Logger
}

// NewService wires a cow service.
func NewService(cows repository.CowRepository, milk repository.MilkRepository, health repository.HealthRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cows: cows, milk: milk, health: health, logger: logger}
}

// ByID returns the cow with the given primary key.
func (s *Service) ByID(ctx context.Context, id string) (*models.Cow, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Invalid("Invalid QR code: no cow ID provided")
	}

	cow, err := s.cows.GetCow(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.NotFound("No cow found with ID: %s", id)
	case err != nil:
		s.logger.Error("get cow failed", zap.String("id", id), zap.Error(err))
		return nil, apperr.From(err)
	}
	return cow, nil
}

// ByTag returns the cow wearing the given tag number.
func (s *Service) ByTag(ctx context.Context, tag string) (*models.Cow, error) {
	normalized := strings.TrimSpace(tag)
	if normalized == "" {
		return nil, apperr.Invalid("Invalid QR code: no tag number provided")
	}

	cow, err := s.cows.GetCowByTag(ctx, normalized)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.NotFound("No cow found with tag number: %s", normalized)
	case err != nil:
		s.logger.Error("get cow by tag failed", zap.String("tag", normalized), zap.Error(err))
		return nil, apperr.From(err)
	}
	return cow, nil
}

// All lists the herd ordered by tag number.
func (s *Service) All(ctx context.Context) ([]models.Cow, error) {
	cows, err := s.cows.ListCows(ctx)
	if err != nil {
		s.logger.Error("list cows failed", zap.Error(err))
		return nil, apperr.From(err)
	}
	return cows, nil
}

// Search matches term against name and tag number, ignoring case. An empty
// term lists the whole herd.
func (s *Service) Search(ctx context.Context, term string) ([]models.Cow, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.All(ctx)
	}

	cows, err := s.cows.SearchCows(ctx, term)
	if err != nil {
		s.logger.Error("search cows failed", zap.String("term", term), zap.Error(err))
		return nil, apperr.From(err)
	}
	return cows, nil
}

// WithRecentRecords returns the cow with its latest milk and health records.
// Failures loading either record list leave that list empty.
func (s *Service) WithRecentRecords(ctx context.Context, id string) (*models.CowWithRecords, error) {
	cow, err := s.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	out := &models.CowWithRecords{
		Cow:           *cow,
		MilkRecords:   []models.MilkRecord{},
		HealthRecords: []models.HealthRecord{},
	}

	milk, err := s.milk.ListMilkRecords(ctx, repository.MilkQuery{CowID: cow.ID, Limit: RecentLimit})
	if err != nil {
		s.logger.Warn("recent milk records unavailable", zap.String("cow_id", cow.ID), zap.Error(err))
	} else {
		out.MilkRecords = milk
	}

	health, err := s.health.ListHealthRecords(ctx, repository.HealthQuery{CowID: cow.ID, Limit: RecentLimit})
	if err != nil {
		s.logger.Warn("recent health records unavailable", zap.String("cow_id", cow.ID), zap.Error(err))
	} else {
		out.HealthRecords = health
	}

	return out, nil
}

// ResolveScan looks up the cow behind a scanned tag payload.
func (s *Service) ResolveScan(ctx context.Context, payload string) (*models.Cow, error) {
	id := qrcode.ExtractID(payload)
	s.logger.Debug("tag scanned", zap.String("id", id))
	return s.ByID(ctx, id)
}
