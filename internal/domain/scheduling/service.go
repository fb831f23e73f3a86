package scheduling

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/visitmgr/visitmgr/internal/domain/activity"
	apperrors "github.com/visitmgr/visitmgr/pkg/errors"
	"github.com/visitmgr/visitmgr/pkg/validate"
)

type Service struct {
	visits   VisitRepository
	fees     FeeScheduleRepository
	activity activity.Recorder
	logger   zerolog.Logger
}

func NewService(visits VisitRepository, fees FeeScheduleRepository, rec activity.Recorder, logger zerolog.Logger) *Service {
	if rec == nil {
		rec = activity.Nop{}
	}
	return &Service{visits: visits, fees: fees, activity: rec, logger: logger}
}

func validateVisit(v *Visit) error {
	v.VisitType = strings.TrimSpace(v.VisitType)
	switch {
	case v.VisitID <= 0:
		return apperrors.NewInvalidInputError("visitID must be greater than 0")
	case v.VisitID > validate.MaxID:
		return apperrors.NewInvalidInputError(fmt.Sprintf("visitID must be at most %d", validate.MaxID))
	case v.VisitType == "":
		return apperrors.NewInvalidInputError("visitType is required")
	case len(v.VisitType) > 100:
		return apperrors.NewInvalidInputError("visitType must be at most 100 characters")
	case v.VisitTypeID != nil && (*v.VisitTypeID <= 0 || *v.VisitTypeID > validate.MaxID):
		return apperrors.NewInvalidInputError(fmt.Sprintf("visitTypeID must be between 1 and %d", validate.MaxID))
	case v.VisitDuration <= 0:
		return apperrors.NewInvalidInputError("visitDuration must be greater than 0")
	case v.VisitDuration > validate.MaxID:
		return apperrors.NewInvalidInputError(fmt.Sprintf("visitDuration must be at most %d", validate.MaxID))
	case v.VisitDate.IsZero():
		return apperrors.NewInvalidInputError("visitDate is required")
	case v.PatientID <= 0:
		return apperrors.NewInvalidInputError("patientID is required")
	case v.DoctorID <= 0:
		return apperrors.NewInvalidInputError("doctorID is required")
	}
	if err := validate.PositiveID("patientID", v.PatientID); err != nil {
		return err
	}
	return validate.PositiveID("doctorID", v.DoctorID)
}

// price resolves the fee-per-minute for the visit type and sets VisitFee.
// A fee beyond the visit_fee column is rejected as input.
func (s *Service) price(ctx context.Context, v *Visit) error {
	rate, err := s.fees.FeePerMinute(ctx, v.VisitType)
	if err != nil {
		return err
	}
	v.VisitFee = CalculateFee(v.VisitDuration, rate)
	s.logger.Debug().
		Str("visit_type", v.VisitType).
		Int("visit_duration", v.VisitDuration).
		Str("fee_per_minute", rate.String()).
		Str("visit_fee", v.VisitFee.String()).
		Msg("visit priced")
	return validate.Amount("visitFee", v.VisitFee)
}

func (s *Service) CreateVisit(ctx context.Context, v *Visit) error {
	if err := validateVisit(v); err != nil {
		return err
	}
	if v.Status == "" {
		v.Status = StatusPending
	}
	if err := s.price(ctx, v); err != nil {
		return err
	}
	if err := s.visits.Create(ctx, v); err != nil {
		return err
	}
	s.activity.Record(ctx, "created visit %d", v.VisitID)
	return nil
}

func (s *Service) GetVisit(ctx context.Context, id int) (*Visit, error) {
	return s.visits.GetByID(ctx, id)
}

func (s *Service) ListVisits(ctx context.Context, f VisitFilter, limit, offset int) ([]*Visit, int, error) {
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, 0, apperrors.NewInvalidInputError("from must be before to")
	}
	return s.visits.List(ctx, f, limit, offset)
}

// UpdateVisit rewrites visit id with v and reprices it. An empty v.Status
// keeps the current status.
func (s *Service) UpdateVisit(ctx context.Context, id int, v *Visit) error {
	if id != v.VisitID {
		return apperrors.NewInvalidInputError("ID mismatch")
	}
	if err := validateVisit(v); err != nil {
		return err
	}
	if err := s.price(ctx, v); err != nil {
		return err
	}
	if err := s.visits.Update(ctx, v); err != nil {
		return err
	}
	s.activity.Record(ctx, "updated visit %d", v.VisitID)
	return nil
}

func (s *Service) DeleteVisit(ctx context.Context, id int) error {
	if err := s.visits.Delete(ctx, id); err != nil {
		return err
	}
	s.activity.Record(ctx, "deleted visit %d", id)
	s.logger.Info().Int("visit_id", id).Msg("visit deleted")
	return nil
}

func (s *Service) ListFeeSchedule(ctx context.Context) ([]*FeeSchedule, error) {
	return s.fees.List(ctx)
}
