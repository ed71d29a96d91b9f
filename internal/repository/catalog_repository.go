package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campusgate/admissions-api/internal/models"
)

// CatalogRepository reads institutions, faculties and courses. The catalog is
// owned by institution management; this service never writes it.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs a CatalogRepository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// FindInstitution returns an institution by ID.
func (r *CatalogRepository) FindInstitution(ctx context.Context, id string) (*models.Institution, error) {
	const query = `SELECT id, name FROM institutions WHERE id = $1`
	var inst models.Institution
	if err := r.db.GetContext(ctx, &inst, query, id); err != nil {
		return nil, err
	}
	return &inst, nil
}

// FindFaculty returns a faculty by ID within an institution.
func (r *CatalogRepository) FindFaculty(ctx context.Context, institutionID, id string) (*models.Faculty, error) {
	const query = `SELECT id, institution_id, name FROM faculties WHERE id = $1 AND institution_id = $2`
	var fac models.Faculty
	if err := r.db.GetContext(ctx, &fac, query, id, institutionID); err != nil {
		return nil, err
	}
	return &fac, nil
}

type courseRow struct {
	ID            string `db:"id"`
	FacultyID     string `db:"faculty_id"`
	InstitutionID string `db:"institution_id"`
	Name          string `db:"name"`
	MinimumGrade  string `db:"minimum_grade"`
}

// FindCourse returns a course with its qualification requirements.
func (r *CatalogRepository) FindCourse(ctx context.Context, institutionID, facultyID, id string) (*models.Course, error) {
	const query = `SELECT id, faculty_id, institution_id, name, minimum_grade
        FROM courses WHERE id = $1 AND faculty_id = $2 AND institution_id = $3`
	var row courseRow
	if err := r.db.GetContext(ctx, &row, query, id, facultyID, institutionID); err != nil {
		return nil, err
	}

	const subjectsQuery = `SELECT subject FROM course_subjects WHERE course_id = $1 ORDER BY subject`
	var subjects []string
	if err := r.db.SelectContext(ctx, &subjects, subjectsQuery, id); err != nil {
		return nil, fmt.Errorf("load course subjects: %w", err)
	}

	return &models.Course{
		ID:            row.ID,
		FacultyID:     row.FacultyID,
		InstitutionID: row.InstitutionID,
		Name:          row.Name,
		Requirements: models.CourseRequirements{
			MinimumGrade:     row.MinimumGrade,
			RequiredSubjects: subjects,
		},
	}, nil
}
