package models

// Institution is an admitting organization. Read-only to this service.
type Institution struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Faculty groups courses within an institution.
type Faculty struct {
	ID            string `db:"id" json:"id"`
	InstitutionID string `db:"institution_id" json:"institution_id"`
	Name          string `db:"name" json:"name"`
}

// CourseRequirements captures the qualification bar for a course.
type CourseRequirements struct {
	MinimumGrade     string   `db:"minimum_grade" json:"minimum_grade"`
	RequiredSubjects []string `json:"required_subjects"`
}

// Course is an admittable program offered by a faculty.
type Course struct {
	ID            string             `db:"id" json:"id"`
	FacultyID     string             `db:"faculty_id" json:"faculty_id"`
	InstitutionID string             `db:"institution_id" json:"institution_id"`
	Name          string             `db:"name" json:"name"`
	Requirements  CourseRequirements `json:"requirements"`
}
