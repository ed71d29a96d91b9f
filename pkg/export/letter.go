package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// OfferLetter carries the fields rendered into an admission letter.
type OfferLetter struct {
	StudentName     string
	CourseName      string
	InstitutionName string
	AdmissionDate   *time.Time
	Confirmed       bool
	Reference       string
}

// LetterExporter renders admission offer letters as PDF documents.
type LetterExporter struct{}

// NewLetterExporter constructs a LetterExporter.
func NewLetterExporter() *LetterExporter {
	return &LetterExporter{}
}

// Render produces the PDF bytes for an admission offer letter.
func (e *LetterExporter) Render(letter OfferLetter) ([]byte, error) {
	if letter.StudentName == "" || letter.CourseName == "" {
		return nil, fmt.Errorf("letter requires student and course names")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 25, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, letter.InstitutionName, "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "OFFER OF ADMISSION", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Reference: %s", letter.Reference), "", 1, "", false, 0, "")
	if letter.AdmissionDate != nil {
		pdf.CellFormat(0, 6, fmt.Sprintf("Date of admission: %s", letter.AdmissionDate.Format("2 January 2006")), "", 1, "", false, 0, "")
	}
	pdf.Ln(6)

	pdf.MultiCell(0, 6, fmt.Sprintf(
		"Dear %s,\n\nWe are pleased to confirm that you have been offered admission to %s at %s.",
		letter.StudentName, letter.CourseName, letter.InstitutionName), "", "", false)
	pdf.Ln(4)

	if letter.Confirmed {
		pdf.MultiCell(0, 6, "Your enrollment has been confirmed. No further action is required.", "", "", false)
	} else {
		pdf.MultiCell(0, 6, "This offer remains open until you confirm your selection through the admissions portal.", "", "", false)
	}
	pdf.Ln(10)

	pdf.SetFont("Arial", "I", 10)
	pdf.CellFormat(0, 6, "Office of Admissions", "", 1, "", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render letter: %w", err)
	}
	return buf.Bytes(), nil
}
