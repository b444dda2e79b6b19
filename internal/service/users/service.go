package users

import (
	"context"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mamadbah2/milkmatrix/internal/apperr"
	"github.com/mamadbah2/milkmatrix/internal/domain/models"
	"github.com/mamadbah2/milkmatrix/internal/repository"
)

// FallbackName is used when no better display name can be derived.
const FallbackName = "Mobile App User"

// Service reads and edits user profiles.
type Service struct {
	repo   repository.ProfileRepository
	logger *zap.Logger
}

// NewService wires a user service.
func NewService(repo repository.ProfileRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// Profile returns the profile row for userID.
func (s *Service) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Invalid("User ID is required")
	}

	profile, err := s.repo.GetProfile(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.NotFound("No profile found for user: %s", userID)
	case err != nil:
		s.logger.Error("get profile failed", zap.String("user_id", userID), zap.Error(err))
		return nil, apperr.From(err)
	}
	return profile, nil
}

// DisplayName derives the name shown on records. It never fails: lookup errors
// fall back to the account e-mail or FallbackName.
func (s *Service) DisplayName(ctx context.Context, userID, email string) string {
	profile, err := s.Profile(ctx, userID)
	if err != nil {
		s.logger.Warn("could not fetch user profile, using fallback name", zap.String("user_id", userID), zap.Error(err))
		if name := fromEmail(email); name != "" {
			return name
		}
		return FallbackName
	}

	if profile.Email == "" {
		profile.Email = email
	}
	return NameFor(*profile)
}

// NameFor applies the display name rules to p.
func NameFor(p models.Profile) string {
	if name := strings.TrimSpace(p.DisplayName); name != "" {
		return name
	}

	first := strings.TrimSpace(p.FirstName)
	last := strings.TrimSpace(p.LastName)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	}

	if name := fromEmail(p.Email); name != "" {
		return name
	}
	return FallbackName
}

// UpdateProfile edits the caller's name fields.
func (s *Service) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Invalid("User ID is required")
	}
	if update.FirstName == nil && update.LastName == nil && update.DisplayName == nil {
		return nil, apperr.Invalid("Nothing to update")
	}

	profile, err := s.repo.UpdateProfile(ctx, userID, update)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.NotFound("No profile found for user: %s", userID)
	case err != nil:
		s.logger.Error("update profile failed", zap.String("user_id", userID), zap.Error(err))
		return nil, apperr.From(err)
	}

	s.logger.Info("profile updated", zap.String("user_id", userID))
	return profile, nil
}

func fromEmail(email string) string {
	prefix, _, _ := strings.Cut(strings.TrimSpace(email), "@")
	if prefix == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(prefix)
	return string(unicode.ToUpper(r)) + prefix[size:]
}
