package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/winthrop-prehealth/tutor-api/internal/models"
	appErrors "github.com/winthrop-prehealth/tutor-api/pkg/errors"
	"github.com/winthrop-prehealth/tutor-api/pkg/export"
)

// RosterFormat selects an export representation.
type RosterFormat string

const (
	RosterFormatCSV RosterFormat = "csv"
	RosterFormatPDF RosterFormat = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type exportStorage interface {
	Save(filename string, data []byte) (string, error)
	Load(filename string) ([]byte, error)
}

// RosterExport is one rendered roster file.
type RosterExport struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders the student roster as CSV or PDF and keeps a copy
// on disk for later retrieval.
type ExportService struct {
	students rosterReader
	storage  exportStorage
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(students rosterReader, storage exportStorage, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVCodec()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{students: students, storage: storage, csv: csv, pdf: pdf, logger: logger}
}

// Roster renders the full student roster in the requested format.
func (s *ExportService) Roster(ctx context.Context, format RosterFormat) (*RosterExport, error) {
	students, err := s.students.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load students")
	}

	dataset := rosterDataset(students)

	var payload []byte
	var contentType string
	switch format {
	case RosterFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case RosterFormatPDF:
		payload, err = s.pdf.Render(dataset, "Winthrop Pre-Health Roster")
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}

	filename := fmt.Sprintf("roster_%s.%s", time.Now().UTC().Format("20060102_150405"), format)
	if s.storage != nil {
		if _, err := s.storage.Save(filename, payload); err != nil {
			s.logger.Warn("failed to persist roster export", zap.String("filename", filename), zap.Error(err))
		}
	}

	return &RosterExport{Filename: filename, ContentType: contentType, Payload: payload}, nil
}

func rosterDataset(students []models.Student) export.Dataset {
	headers := []string{
		"First Name", "Last Name", "Email", "Class Year", "Status",
		"Resident Tutor", "Non-Resident Tutor",
	}
	rows := make([]map[string]string, 0, len(students))
	for _, st := range students {
		rows = append(rows, map[string]string{
			"First Name":         st.FirstName,
			"Last Name":          st.LastName,
			"Email":              st.ContactEmail(),
			"Class Year":         st.ClassYear,
			"Status":             statusLabel(st.Status),
			"Resident Tutor":     st.RTAssignment,
			"Non-Resident Tutor": st.NRTAssignment,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func statusLabel(status models.ApplicationStatus) string {
	switch status {
	case models.StatusNotApplying:
		return "Not Applying"
	case models.StatusCurrentlyApplying:
		return "Currently Applying"
	case models.StatusApplyingNextCycle:
		return "Applying Next Cycle"
	}
	return string(status)
}
