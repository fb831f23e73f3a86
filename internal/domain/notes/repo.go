package notes

import (
	"context"

	"github.com/visitmgr/visitmgr/internal/domain/scheduling"
)

type Repository interface {
	// LockVisitStatus reads the visit's status and holds a share lock on the
	// row until the surrounding transaction ends.
	LockVisitStatus(ctx context.Context, visitID int) (scheduling.Status, error)
	RuleExists(ctx context.Context, ruleID int) (bool, error)
	Create(ctx context.Context, n *VisitNote) error
	GetByID(ctx context.Context, id int) (*VisitNote, error)
	GetByVisit(ctx context.Context, visitID int) (*VisitNote, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*VisitNote, int, error)
	// UpdateDraft and DeleteDraft only touch non-finalized notes and report
	// whether a row was affected.
	UpdateDraft(ctx context.Context, n *VisitNote) (bool, error)
	DeleteDraft(ctx context.Context, id int) (bool, error)
}

const (
	msgNoteNotFound   = "VisitNote not found."
	msgVisitNotFound  = "Visit not found."
	msgNoteExists     = "A visit note already exists for this visit."
	msgNotScheduled   = "Visit must be marked 'scheduled' before adding a visit note."
	msgInvalidRule    = "Invalid ruleID."
	msgFinalizedEdit  = "VisitNote is finalized and cannot be edited."
	msgFinalizedDel   = "VisitNote is finalized and cannot be deleted."
	msgConcurrentEdit = "VisitNote was modified concurrently, retry."
)
