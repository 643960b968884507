package service

import (
	"context"
	stderrors "errors"
	"strings"

	"go.uber.org/zap"

	"github.com/pestofarm/storefront/internal/domain"
	"github.com/pestofarm/storefront/internal/repository"
	"github.com/pestofarm/storefront/pkg/errors"
)

// ProfileService reads and saves the customer profile, mirroring the last
// known copy under profile_<email>
type ProfileService struct {
	backend ProfileBackend
	mirror  repository.SnapshotStore
	logger  *zap.Logger
}

func NewProfileService(profileBackend ProfileBackend, mirror repository.SnapshotStore, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{
		backend: profileBackend,
		mirror:  mirror,
		logger:  logger,
	}
}

// Get returns the backend profile, else the mirrored one, else a default
// profile carrying only the e-mail. A rejected token is returned as an error.
func (s *ProfileService) Get(ctx context.Context, caller Caller) (*domain.Profile, error) {
	if caller.Token != "" {
		p, err := s.backend.GetProfile(ctx, caller.Token)
		if err == nil {
			if p.Email == "" {
				p.Email = caller.Email
			}
			p.SyncStatus = domain.SyncStatusSynced
			s.writeMirror(ctx, caller.Email, *p)
			return p, nil
		}
		if authRejected(err) {
			return nil, err
		}
		s.logger.Warn("Failed to load profile from backend, falling back to mirror",
			zap.String("email", caller.Email), zap.Error(err))
	}

	var p domain.Profile
	found, err := repository.ReadJSON(ctx, s.mirror, repository.ProfileKey(caller.Email), &p)
	if err != nil {
		s.logger.Warn("Failed to read profile mirror", zap.String("email", caller.Email), zap.Error(err))
	}
	if !found || err != nil {
		p = domain.Profile{Email: caller.Email}
	}
	p.SyncStatus = domain.SyncStatusLocalOnly
	return &p, nil
}

// Update saves the profile. The e-mail always comes from the caller's
// identity. A backend rejection is returned; an unreachable backend keeps
// the change in the mirror as local_only.
func (s *ProfileService) Update(ctx context.Context, caller Caller, p domain.Profile) (*domain.Profile, error) {
	p.FullName = strings.TrimSpace(p.FullName)
	if p.FullName == "" {
		return nil, &errors.ErrValidation{
			Message: "full name is required",
			Fields:  map[string]string{"fullName": "required"},
		}
	}
	if p.Mobile != "" {
		p.Mobile = stripSpaces(p.Mobile)
		if !phonePattern.MatchString(p.Mobile) {
			return nil, &errors.ErrValidation{
				Message: "invalid mobile number",
				Fields:  map[string]string{"mobile": "must be a 10-digit number starting with 6-9"},
			}
		}
	}
	p.Email = caller.Email

	if caller.Token != "" {
		saved, err := s.backend.UpdateProfile(ctx, caller.Token, p)
		if err == nil {
			saved.SyncStatus = domain.SyncStatusSynced
			s.writeMirror(ctx, caller.Email, *saved)
			return saved, nil
		}
		if authRejected(err) {
			return nil, err
		}
		var rejected *errors.ErrBackend
		if stderrors.As(err, &rejected) {
			return nil, rejected
		}
		s.logger.Warn("Backend profile update failed, keeping local copy",
			zap.String("email", caller.Email), zap.Error(err))
	}

	p.SyncStatus = domain.SyncStatusLocalOnly
	s.writeMirror(ctx, caller.Email, p)
	return &p, nil
}

func (s *ProfileService) writeMirror(ctx context.Context, email string, p domain.Profile) {
	if err := repository.WriteJSON(ctx, s.mirror, repository.ProfileKey(email), p); err != nil {
		s.logger.Warn("Failed to mirror profile", zap.String("email", email), zap.Error(err))
	}
}
