package identity

// Patient maps to the patients table. PatientID is assigned by the caller.
type Patient struct {
	PatientID          int    `db:"patient_id" json:"patientID"`
	VisitID            *int   `db:"visit_id" json:"visitID"`
	PatientName        string `db:"name" json:"patientName"`
	PatientEmail       string `db:"email" json:"patientEmail"`
	PatientPhone       string `db:"phone" json:"patientPhone"`
	PatientDescription string `db:"description" json:"patientDescription"`
}

// Doctor maps to the doctors table. DoctorID is assigned by the caller.
type Doctor struct {
	DoctorID       int    `db:"doctor_id" json:"doctorID"`
	VisitID        *int   `db:"visit_id" json:"visitID"`
	DoctorName     string `db:"name" json:"doctorName"`
	DoctorEmail    string `db:"email" json:"doctorEmail"`
	DoctorPhone    string `db:"phone" json:"doctorPhone"`
	Specialization string `db:"specialization" json:"specialization"`
}
