package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/visitmgr/visitmgr/internal/platform/auth"
	"github.com/visitmgr/visitmgr/internal/platform/middleware"
)

// Recorder is what domain services use to leave an audit trail. Recording
// never fails the calling operation.
type Recorder interface {
	Record(ctx context.Context, format string, args ...interface{})
}

// Nop discards activity. Used where no trail is wanted, such as CLI runs.
type Nop struct{}

func (Nop) Record(context.Context, string, ...interface{}) {}

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Record stores "<actor> <description>" where the actor is the caller's email.
func (s *Service) Record(ctx context.Context, format string, args ...interface{}) {
	e := &Entry{
		Actor:       auth.ActorFromContext(ctx),
		Description: fmt.Sprintf(format, args...),
		OccurredAt:  s.now().UTC(),
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.repo.Insert(ctx, e); err != nil {
		s.logger.Error().Err(err).Str("actor", e.Actor).Str("description", e.Description).Msg("failed to record activity")
	}
}

// RecordRequest persists one request log row for the RequestLog middleware.
func (s *Service) RecordRequest(ctx context.Context, e middleware.RequestLogEntry) error {
	return s.repo.InsertRequest(ctx, e)
}

func (s *Service) List(ctx context.Context, actor string, limit, offset int) ([]*Entry, int, error) {
	return s.repo.List(ctx, actor, limit, offset)
}

func (s *Service) Ping() PingResponse {
	return PingResponse{OK: true, At: s.now().UTC()}
}
