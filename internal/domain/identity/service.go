package identity

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/visitmgr/visitmgr/internal/domain/activity"
	apperrors "github.com/visitmgr/visitmgr/pkg/errors"
	"github.com/visitmgr/visitmgr/pkg/validate"
)

type Service struct {
	patients PatientRepository
	doctors  DoctorRepository
	activity activity.Recorder
	logger   zerolog.Logger
}

func NewService(patients PatientRepository, doctors DoctorRepository, rec activity.Recorder, logger zerolog.Logger) *Service {
	if rec == nil {
		rec = activity.Nop{}
	}
	return &Service{patients: patients, doctors: doctors, activity: rec, logger: logger}
}

// contact validates the fields patients and doctors share and returns them
// normalized.
func contact(prefix, name, email, phone string) (string, string, string, error) {
	name, err := validate.Required(prefix+"Name", name, 200)
	if err != nil {
		return "", "", "", err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if !validate.Email(email) {
		return "", "", "", apperrors.NewInvalidInputError(prefix + "Email must be a valid email address")
	}
	phone = strings.TrimSpace(phone)
	if !validate.Phone(phone) {
		return "", "", "", apperrors.NewInvalidInputError(prefix + "Phone must be a valid phone number")
	}
	return name, email, phone, nil
}

func optionalVisit(v *int) error {
	if v == nil {
		return nil
	}
	return validate.PositiveID("visitID", *v)
}

// -- Patients --

func validatePatient(p *Patient) error {
	if err := validate.PositiveID("patientID", p.PatientID); err != nil {
		return err
	}
	if err := optionalVisit(p.VisitID); err != nil {
		return err
	}
	var err error
	p.PatientName, p.PatientEmail, p.PatientPhone, err = contact("patient", p.PatientName, p.PatientEmail, p.PatientPhone)
	if err != nil {
		return err
	}
	p.PatientDescription = strings.TrimSpace(p.PatientDescription)
	if len(p.PatientDescription) > 4000 {
		return apperrors.NewInvalidInputError("patientDescription must be at most 4000 characters")
	}
	return nil
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := validatePatient(p); err != nil {
		return err
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return err
	}
	s.activity.Record(ctx, "created patient %d", p.PatientID)
	return nil
}

func (s *Service) GetPatient(ctx context.Context, id int) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, name string, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, strings.TrimSpace(name), limit, offset)
}

func (s *Service) UpdatePatient(ctx context.Context, id int, p *Patient) error {
	if id != p.PatientID {
		return apperrors.NewInvalidInputError("ID mismatch")
	}
	if err := validatePatient(p); err != nil {
		return err
	}
	if err := s.patients.Update(ctx, p); err != nil {
		return err
	}
	s.activity.Record(ctx, "updated patient %d", p.PatientID)
	return nil
}

func (s *Service) DeletePatient(ctx context.Context, id int) error {
	if err := s.patients.Delete(ctx, id); err != nil {
		return err
	}
	s.activity.Record(ctx, "deleted patient %d", id)
	s.logger.Info().Int("patient_id", id).Msg("patient deleted")
	return nil
}

// -- Doctors --

func validateDoctor(d *Doctor) error {
	if err := validate.PositiveID("doctorID", d.DoctorID); err != nil {
		return err
	}
	if err := optionalVisit(d.VisitID); err != nil {
		return err
	}
	var err error
	d.DoctorName, d.DoctorEmail, d.DoctorPhone, err = contact("doctor", d.DoctorName, d.DoctorEmail, d.DoctorPhone)
	if err != nil {
		return err
	}
	d.Specialization, err = validate.Required("specialization", d.Specialization, 200)
	return err
}

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	if err := validateDoctor(d); err != nil {
		return err
	}
	if err := s.doctors.Create(ctx, d); err != nil {
		return err
	}
	s.activity.Record(ctx, "created doctor %d", d.DoctorID)
	return nil
}

func (s *Service) GetDoctor(ctx context.Context, id int) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, specialization string, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, strings.TrimSpace(specialization), limit, offset)
}

func (s *Service) UpdateDoctor(ctx context.Context, id int, d *Doctor) error {
	if id != d.DoctorID {
		return apperrors.NewInvalidInputError("ID mismatch")
	}
	if err := validateDoctor(d); err != nil {
		return err
	}
	if err := s.doctors.Update(ctx, d); err != nil {
		return err
	}
	s.activity.Record(ctx, "updated doctor %d", d.DoctorID)
	return nil
}

func (s *Service) DeleteDoctor(ctx context.Context, id int) error {
	if err := s.doctors.Delete(ctx, id); err != nil {
		return err
	}
	s.activity.Record(ctx, "deleted doctor %d", id)
	s.logger.Info().Int("doctor_id", id).Msg("doctor deleted")
	return nil
}
