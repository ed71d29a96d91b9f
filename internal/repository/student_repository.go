package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campusgate/admissions-api/internal/models"
)

// StudentRepository reads student profiles. Students are owned by profile
// management; this service never writes them.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

type studentRow struct {
	models.Student
	OverallGrade string `db:"overall_grade"`
}

// FindByID returns the student with their academic record.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	const query = `SELECT id, full_name, email, overall_grade, created_at, updated_at
        FROM students WHERE id = $1`
	var row studentRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}

	const subjectsQuery = `SELECT subject, grade FROM student_subjects WHERE student_id = $1 ORDER BY subject`
	var subjects []models.SubjectGrade
	if err := r.db.SelectContext(ctx, &subjects, subjectsQuery, id); err != nil {
		return nil, fmt.Errorf("load student subjects: %w", err)
	}

	return &models.StudentDetail{
		Student: row.Student,
		Record: models.AcademicRecord{
			OverallGrade: row.OverallGrade,
			Subjects:     subjects,
		},
	}, nil
}
