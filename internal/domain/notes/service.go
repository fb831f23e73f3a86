package notes

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/visitmgr/visitmgr/internal/domain/activity"
	"github.com/visitmgr/visitmgr/internal/domain/scheduling"
	"github.com/visitmgr/visitmgr/internal/platform/db"
	apperrors "github.com/visitmgr/visitmgr/pkg/errors"
	"github.com/visitmgr/visitmgr/pkg/validate"
)

const maxNotesLen = 8000

type Service struct {
	repo     Repository
	tx       db.Transactor
	activity activity.Recorder
	logger   zerolog.Logger
}

func NewService(repo Repository, tx db.Transactor, rec activity.Recorder, logger zerolog.Logger) *Service {
	if rec == nil {
		rec = activity.Nop{}
	}
	return &Service{repo: repo, tx: tx, activity: rec, logger: logger}
}

func validateNote(n *VisitNote) error {
	n.VisitNotes = strings.TrimSpace(n.VisitNotes)
	switch {
	case n.VisitID <= 0:
		return apperrors.NewInvalidInputError("visitID is required")
	case n.VisitID > validate.MaxID:
		return apperrors.NewInvalidInputError(fmt.Sprintf("visitID must be at most %d", validate.MaxID))
	case n.RuleID <= 0, n.RuleID > validate.MaxID:
		return apperrors.NewInvalidInputError(msgInvalidRule)
	case len(n.VisitNotes) > maxNotesLen:
		return apperrors.NewInvalidInputError("visitNotes is too long")
	}
	return nil
}

func (s *Service) checkRule(ctx context.Context, ruleID int) error {
	ok, err := s.repo.RuleExists(ctx, ruleID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewInvalidInputError(msgInvalidRule)
	}
	return nil
}

// CreateNote attaches a draft note to a scheduled visit. The visit row stays
// share-locked until the insert commits, so its status cannot change under us.
func (s *Service) CreateNote(ctx context.Context, n *VisitNote) error {
	if err := validateNote(n); err != nil {
		return err
	}
	if err := s.checkRule(ctx, n.RuleID); err != nil {
		return err
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		status, err := s.repo.LockVisitStatus(ctx, n.VisitID)
		if err != nil {
			return err
		}
		if status != scheduling.StatusScheduled {
			return apperrors.NewInvalidStateError(msgNotScheduled)
		}
		return s.repo.Create(ctx, n)
	})
	if err != nil {
		if apperrors.IsInvalidState(err) || apperrors.IsConflict(err) {
			s.logger.Warn().Int("visit_id", n.VisitID).Str("reason", apperrors.PublicMessage(err)).Msg("visit note rejected")
		}
		return err
	}
	s.activity.Record(ctx, "created visit note %d for visit %d", n.NotesID, n.VisitID)
	return nil
}

func (s *Service) GetNote(ctx context.Context, id int) (*VisitNote, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetNoteByVisit(ctx context.Context, visitID int) (*VisitNote, error) {
	return s.repo.GetByVisit(ctx, visitID)
}

func (s *Service) ListNotes(ctx context.Context, f Filter, limit, offset int) ([]*VisitNote, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

// UpdateNote rewrites the text and rule of a draft note. The visit a note
// belongs to never changes.
func (s *Service) UpdateNote(ctx context.Context, id int, n *VisitNote) error {
	if id != n.NotesID {
		return apperrors.NewInvalidInputError("ID mismatch")
	}
	n.VisitNotes = strings.TrimSpace(n.VisitNotes)
	if n.RuleID <= 0 {
		return apperrors.NewInvalidInputError(msgInvalidRule)
	}
	if len(n.VisitNotes) > maxNotesLen {
		return apperrors.NewInvalidInputError("visitNotes is too long")
	}
	if err := s.checkRule(ctx, n.RuleID); err != nil {
		return err
	}

	ok, err := s.repo.UpdateDraft(ctx, n)
	if err != nil {
		return err
	}
	if !ok {
		return s.rejected(ctx, id, msgFinalizedEdit)
	}
	s.activity.Record(ctx, "updated visit note %d", id)
	return nil
}

func (s *Service) DeleteNote(ctx context.Context, id int) error {
	ok, err := s.repo.DeleteDraft(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return s.rejected(ctx, id, msgFinalizedDel)
	}
	s.activity.Record(ctx, "deleted visit note %d", id)
	return nil
}

// rejected explains why a conditional write on note id touched no rows.
func (s *Service) rejected(ctx context.Context, id int, finalizedMsg string) error {
	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	s.logger.Warn().Int("notes_id", id).Bool("finalized", cur.Finalized).Msg("visit note mutation rejected")
	if cur.Finalized {
		return apperrors.NewConflictError(finalizedMsg)
	}
	return apperrors.NewConflictError(msgConcurrentEdit)
}
