package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/pubdesk-api/internal/models"
	appErrors "github.com/noah-isme/pubdesk-api/pkg/errors"
)

// ReviewerPoolFilter narrows the reviewer pool by specialization or
// institution substring, case-insensitively.
type ReviewerPoolFilter struct {
	Specialization string
	Institution    string
}

// ReviewerService exposes the reviewer pool for admin routing decisions.
type ReviewerService struct {
	users  adminDirectory
	logger *zap.Logger
}

// NewReviewerService constructs a ReviewerService.
func NewReviewerService(users adminDirectory, logger *zap.Logger) *ReviewerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewerService{users: users, logger: logger}
}

// Pool returns active reviewers matching the filter.
func (s *ReviewerService) Pool(ctx context.Context, filter ReviewerPoolFilter) ([]models.User, error) {
	reviewers, err := s.users.FindByRole(ctx, models.RoleReviewer)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reviewer pool")
	}

	spec := strings.ToLower(strings.TrimSpace(filter.Specialization))
	inst := strings.ToLower(strings.TrimSpace(filter.Institution))
	if spec == "" && inst == "" {
		return reviewers, nil
	}

	matched := make([]models.User, 0, len(reviewers))
	for _, reviewer := range reviewers {
		if spec != "" {
			if reviewer.Specialization == nil || !strings.Contains(strings.ToLower(*reviewer.Specialization), spec) {
				continue
			}
		}
		if inst != "" && !strings.Contains(strings.ToLower(reviewer.Institution), inst) {
			continue
		}
		matched = append(matched, reviewer)
	}
	return matched, nil
}
