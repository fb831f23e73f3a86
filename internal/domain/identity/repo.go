package identity

import "context"

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id int) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id int) error
	// List matches name case-insensitively as a substring.
	List(ctx context.Context, name string, limit, offset int) ([]*Patient, int, error)
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id int) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id int) error
	List(ctx context.Context, specialization string, limit, offset int) ([]*Doctor, int, error)
}

const (
	msgPatientNotFound   = "Patient not found."
	msgPatientExists     = "A patient with this ID already exists."
	msgPatientReferenced = "Cannot delete: patient is referenced by visits."
	msgDoctorNotFound    = "Doctor not found."
	msgDoctorExists      = "A doctor with this ID already exists."
	msgDoctorReferenced  = "Cannot delete: doctor is referenced by visits."
	msgUnknownVisit      = "visitID does not reference an existing visit."
)
