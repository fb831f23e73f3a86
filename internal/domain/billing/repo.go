package billing

import (
	"context"
)

type RuleRepository interface {
	Create(ctx context.Context, r *Rule) error
	GetByID(ctx context.Context, id int) (*Rule, error)
	Update(ctx context.Context, r *Rule) error
	Delete(ctx context.Context, id int) error
	List(ctx context.Context, name string, limit, offset int) ([]*Rule, int, error)
}

type Repository interface {
	GetNote(ctx context.Context, notesID int) (*NoteState, error)
	// LockNoteFinalized reads the note's finalized flag and holds a row lock
	// until the surrounding transaction ends.
	LockNoteFinalized(ctx context.Context, notesID int) (bool, error)
	Insert(ctx context.Context, b *Billing) error
	SetNoteFinalized(ctx context.Context, notesID int) error
	GetByID(ctx context.Context, id int) (*Billing, error)
	GetByNote(ctx context.Context, notesID int) (*Billing, error)
}

const (
	msgRuleNotFound     = "Rule not found."
	msgRuleReferenced   = "Cannot delete: rule is used by visit notes."
	msgNoteNotFound     = "VisitNote not found."
	msgNoteRuleMissing  = "Rule not found for this note."
	msgAlreadyFinalized = "Billing already finalized for this note."
	msgBillingNotFound  = "Billing not found."
)
