package scheduling

import (
	"context"

	"github.com/shopspring/decimal"
)

type VisitRepository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id int) (*Visit, error)
	// Update overwrites the visit. An empty Status keeps the stored one;
	// v is refreshed with the stored row.
	Update(ctx context.Context, v *Visit) error
	Delete(ctx context.Context, id int) error
	List(ctx context.Context, f VisitFilter, limit, offset int) ([]*Visit, int, error)
}

type FeeScheduleRepository interface {
	List(ctx context.Context) ([]*FeeSchedule, error)
	// FeePerMinute returns the first rate for visitType by fee id, or zero.
	FeePerMinute(ctx context.Context, visitType string) (decimal.Decimal, error)
}

const (
	msgVisitNotFound   = "Visit not found."
	msgVisitExists     = "A visit with this ID already exists."
	msgUnknownParty    = "Patient or doctor does not exist."
	msgVisitReferenced = "Cannot delete: visit is referenced by other records."
)
