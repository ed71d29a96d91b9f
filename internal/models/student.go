package models

import "time"

// Student represents an applicant. Owned by profile management; read-only here.
type Student struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectGrade is a single graded subject on a student's academic record.
type SubjectGrade struct {
	Subject string `db:"subject" json:"subject"`
	Grade   string `db:"grade" json:"grade"`
}

// AcademicRecord is the portion of the student profile eligibility reads.
type AcademicRecord struct {
	OverallGrade string         `db:"overall_grade" json:"overall_grade"`
	Subjects     []SubjectGrade `json:"subjects"`
}

// StudentDetail bundles a student with their academic record.
type StudentDetail struct {
	Student
	Record AcademicRecord `json:"record"`
}
