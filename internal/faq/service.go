package faq

import "context"

// feedSize is the number of entries served on the public feed.
const feedSize = 5

// RepositoryPort abstracts FAQ persistence.
type RepositoryPort interface {
	ListNewest(ctx context.Context, limit int) ([]Entry, error)
}

// Service exposes the public FAQ feed.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Feed returns the newest entries, capped at the feed size. The feed is the
// platform's only unauthenticated read.
func (s *Service) Feed(ctx context.Context) ([]Entry, error) {
	return s.repo.ListNewest(ctx, feedSize)
}
