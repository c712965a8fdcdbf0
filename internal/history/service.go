package history

import (
	"context"
	"log/slog"

	"github.com/a-essam23/go-relay/internal/store"
)

// DefaultLimit caps history replies when the caller does not say otherwise.
const DefaultLimit = 50

// Service builds bounded, ordered history queries over the message store.
// It is read-only: an empty conversation yields an empty slice, not an error.
type Service struct {
	store  store.Store
	limit  int
	logger *slog.Logger
}

func NewService(logger *slog.Logger, st store.Store, limit int) *Service {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Service{
		store:  st,
		limit:  limit,
		logger: logger.With(slog.String("component", "history_service")),
	}
}

// Limit returns the configured default cap.
func (s *Service) Limit() int {
	return s.limit
}

// Public returns the public feed, oldest-first, capped at limit (or the
// configured default when limit <= 0). The most recent window is retained.
func (s *Service) Public(ctx context.Context, limit int) ([]store.Message, error) {
	return s.store.PublicHistory(ctx, s.cap(limit))
}

// Private returns the two-party thread between userA and userB, oldest-first,
// capped. Symmetric regardless of which participant asks.
func (s *Service) Private(ctx context.Context, userA, userB string, limit int) ([]store.Message, error) {
	return s.store.PrivateHistory(ctx, userA, userB, s.cap(limit))
}

func (s *Service) cap(limit int) int {
	if limit <= 0 || limit > s.limit {
		return s.limit
	}
	return limit
}
