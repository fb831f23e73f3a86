package activity

import (
	"context"

	"github.com/visitmgr/visitmgr/internal/platform/middleware"
)

type Repository interface {
	Insert(ctx context.Context, e *Entry) error
	List(ctx context.Context, actor string, limit, offset int) ([]*Entry, int, error)
	InsertRequest(ctx context.Context, e middleware.RequestLogEntry) error
}
