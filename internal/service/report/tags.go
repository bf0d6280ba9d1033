package report

import (
	"context"

	"govreport/internal/domain"
)

// CreateTag defines a new tag.
func (s *Service) CreateTag(ctx context.Context, principal, name string) (*domain.Tag, error) {
	t, err := s.tags.Create(ctx, &domain.Tag{Name: name, CreatedBy: principal})
	if err != nil {
		return nil, err
	}
	s.logger.Info("tag created", "tag", t.Name, "principal", principal)
	return t, nil
}

// ListTags returns a page of tags ordered by name.
func (s *Service) ListTags(ctx context.Context, page domain.PageRequest) ([]domain.Tag, int64, error) {
	return s.tags.List(ctx, page)
}
