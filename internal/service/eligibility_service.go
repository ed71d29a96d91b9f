package service

import (
	"fmt"
	"strings"

	"github.com/campusgate/admissions-api/internal/models"
)

// Letter grades in descending order of merit. Unknown letters rank below F.
var gradeRanks = map[string]int{
	"A": 6,
	"B": 5,
	"C": 4,
	"D": 3,
	"E": 2,
	"F": 1,
}

func gradeRank(grade string) int {
	return gradeRanks[strings.ToUpper(strings.TrimSpace(grade))]
}

// EligibilityResult reports the outcome of an eligibility evaluation. The
// reason is surfaced verbatim to the student.
type EligibilityResult struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// EligibilityService compares academic records against course requirements.
// Pure: no side effects, no collaborators.
type EligibilityService struct{}

// NewEligibilityService constructs an EligibilityService.
func NewEligibilityService() *EligibilityService {
	return &EligibilityService{}
}

// Evaluate checks the record against the requirements. The overall grade is
// checked first and the evaluation stops at the first failing check; all
// missing required subjects are listed together.
func (s *EligibilityService) Evaluate(record models.AcademicRecord, req models.CourseRequirements) EligibilityResult {
	if req.MinimumGrade == "" && len(req.RequiredSubjects) == 0 {
		return EligibilityResult{Eligible: true}
	}

	if req.MinimumGrade != "" && gradeRank(record.OverallGrade) < gradeRank(req.MinimumGrade) {
		return EligibilityResult{
			Eligible: false,
			Reason:   fmt.Sprintf("overall grade %s is below the required minimum %s", record.OverallGrade, req.MinimumGrade),
		}
	}

	recorded := make(map[string]struct{}, len(record.Subjects))
	for _, sg := range record.Subjects {
		recorded[strings.ToLower(strings.TrimSpace(sg.Subject))] = struct{}{}
	}

	var missing []string
	for _, required := range req.RequiredSubjects {
		if _, ok := recorded[strings.ToLower(strings.TrimSpace(required))]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return EligibilityResult{
			Eligible: false,
			Reason:   fmt.Sprintf("missing required subjects: %s", strings.Join(missing, ", ")),
		}
	}

	return EligibilityResult{Eligible: true}
}
