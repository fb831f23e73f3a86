package billing

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/visitmgr/visitmgr/internal/domain/activity"
	"github.com/visitmgr/visitmgr/internal/platform/db"
	"github.com/visitmgr/visitmgr/internal/platform/telemetry"
	apperrors "github.com/visitmgr/visitmgr/pkg/errors"
	"github.com/visitmgr/visitmgr/pkg/validate"
)

const tracerName = "github.com/visitmgr/visitmgr/internal/domain/billing"

// Metrics receives the outcome of every finalization attempt.
type Metrics interface {
	ObserveBillingFinalization(result string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveBillingFinalization(string) {}

type Service struct {
	rules    RuleRepository
	bills    Repository
	tx       db.Transactor
	activity activity.Recorder
	metrics  Metrics
	tracer   trace.Tracer
	logger   zerolog.Logger
}

func NewService(rules RuleRepository, bills Repository, tx db.Transactor, rec activity.Recorder, metrics Metrics, logger zerolog.Logger) *Service {
	if rec == nil {
		rec = activity.Nop{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Service{
		rules:    rules,
		bills:    bills,
		tx:       tx,
		activity: rec,
		metrics:  metrics,
		tracer:   otel.Tracer(tracerName),
		logger:   logger,
	}
}

// -- Rules --

func validateRule(r *Rule) error {
	r.RuleName = strings.TrimSpace(r.RuleName)
	switch {
	case r.RuleName == "":
		return apperrors.NewInvalidInputError("ruleName is required")
	case len(r.RuleName) > 200:
		return apperrors.NewInvalidInputError("ruleName must be at most 200 characters")
	}
	if err := validate.Amount("rulePrice", r.RulePrice); err != nil {
		return err
	}
	r.RulePrice = r.RulePrice.Round(2)
	return nil
}

func (s *Service) CreateRule(ctx context.Context, r *Rule) error {
	if err := validateRule(r); err != nil {
		return err
	}
	if err := s.rules.Create(ctx, r); err != nil {
		return err
	}
	s.activity.Record(ctx, "created rule %d", r.ID)
	return nil
}

func (s *Service) GetRule(ctx context.Context, id int) (*Rule, error) {
	return s.rules.GetByID(ctx, id)
}

func (s *Service) ListRules(ctx context.Context, name string, limit, offset int) ([]*Rule, int, error) {
	return s.rules.List(ctx, strings.TrimSpace(name), limit, offset)
}

func (s *Service) UpdateRule(ctx context.Context, id int, r *Rule) error {
	if id != r.ID {
		return apperrors.NewInvalidInputError("ID mismatch")
	}
	if err := validateRule(r); err != nil {
		return err
	}
	if err := s.rules.Update(ctx, r); err != nil {
		return err
	}
	s.activity.Record(ctx, "updated rule %d", r.ID)
	return nil
}

func (s *Service) DeleteRule(ctx context.Context, id int) error {
	if err := s.rules.Delete(ctx, id); err != nil {
		return err
	}
	s.activity.Record(ctx, "deleted rule %d", id)
	return nil
}

// -- Billing --

func (s *Service) GetBilling(ctx context.Context, id int) (*Billing, error) {
	return s.bills.GetByID(ctx, id)
}

func (s *Service) GetBillingByNote(ctx context.Context, notesID int) (*Billing, error) {
	return s.bills.GetByNote(ctx, notesID)
}

// CreateBillingForNote bills a draft note and finalizes it. The billing row
// and the finalized flag are written in one transaction that holds the note
// row lock, so at most one caller per note succeeds. The total is the
// override when given, else the price of the note's rule.
func (s *Service) CreateBillingForNote(ctx context.Context, notesID int, override *decimal.Decimal) (*Billing, error) {
	ctx, span := s.tracer.Start(ctx, "billing.CreateForNote",
		trace.WithAttributes(attribute.Int("visitmgr.notes_id", notesID)))
	defer span.End()

	b, err := s.createForNote(ctx, notesID, override)
	s.metrics.ObserveBillingFinalization(resultOf(err))
	if err != nil {
		span.RecordError(err)
		if apperrors.TypeOf(err) == apperrors.ErrorTypeInternal {
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("visitmgr.billing_id", b.BillingID),
		attribute.String("visitmgr.total_bill", b.TotalBill.StringFixed(2)),
	)
	return b, nil
}

func (s *Service) createForNote(ctx context.Context, notesID int, override *decimal.Decimal) (*Billing, error) {
	if notesID <= 0 {
		return nil, apperrors.NewInvalidInputError("notesID is required")
	}
	if err := validate.PositiveID("notesID", notesID); err != nil {
		return nil, err
	}
	if override != nil {
		if err := validate.Amount("overrideTotal", *override); err != nil {
			return nil, err
		}
	}

	note, err := s.bills.GetNote(ctx, notesID)
	if err != nil {
		return nil, err
	}
	if note.Finalized {
		return nil, apperrors.NewConflictError(msgAlreadyFinalized)
	}

	var total decimal.Decimal
	if override != nil {
		total = override.Round(2)
	} else {
		rule, err := s.rules.GetByID(ctx, note.RuleID)
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewInvalidInputError(msgNoteRuleMissing)
		}
		if err != nil {
			return nil, err
		}
		total = rule.RulePrice
	}

	b := &Billing{NotesID: notesID, TotalBill: total}
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		finalized, err := s.bills.LockNoteFinalized(ctx, notesID)
		if err != nil {
			return err
		}
		if finalized {
			return apperrors.NewConflictError(msgAlreadyFinalized)
		}
		if err := s.bills.Insert(ctx, b); err != nil {
			return err
		}
		return s.bills.SetNoteFinalized(ctx, notesID)
	})
	if err != nil {
		if apperrors.IsConflict(err) {
			s.logger.Warn().Int("notes_id", notesID).Msg("billing rejected, note already finalized")
		}
		return nil, err
	}

	s.activity.Record(ctx, "created billing %d for visit note %d", b.BillingID, notesID)
	s.logger.Info().Int("notes_id", notesID).Int("billing_id", b.BillingID).
		Str("total", b.TotalBill.StringFixed(2)).Msg("visit note billed")
	return b, nil
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return telemetry.ResultCreated
	case apperrors.IsConflict(err):
		return telemetry.ResultConflict
	case apperrors.IsNotFound(err):
		return telemetry.ResultNotFound
	case apperrors.IsInvalidInput(err):
		return telemetry.ResultInvalid
	}
	return telemetry.ResultError
}
