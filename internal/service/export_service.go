package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gh-Constant/IUT-homework/internal/models"
	appErrors "github.com/gh-Constant/IUT-homework/pkg/errors"
	"github.com/gh-Constant/IUT-homework/pkg/export"
	"github.com/gh-Constant/IUT-homework/pkg/storage"
)

// ExportFormat selects the rendered output type.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

type assignmentFeed interface {
	Feed(ctx context.Context, viewer models.User, archived bool) ([]AssignmentView, error)
}

// ExportResult describes a rendered export and its signed download token.
type ExportResult struct {
	Filename  string    `json:"filename"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportService renders a viewer's assignment feed to CSV or PDF, stores
// the file on disk and hands back a signed, expiring download token.
type ExportService struct {
	feed    assignmentFeed
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	store   *storage.LocalStorage
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	fileTTL time.Duration
}

// NewExportService constructs the service.
func NewExportService(feed assignmentFeed, store *storage.LocalStorage, signer *storage.SignedURLSigner, fileTTL time.Duration, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fileTTL <= 0 {
		fileTTL = 24 * time.Hour
	}
	return &ExportService{
		feed:    feed,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		store:   store,
		signer:  signer,
		logger:  logger,
		fileTTL: fileTTL,
	}
}

// Export renders the viewer's current feed in the requested format.
func (s *ExportService) Export(ctx context.Context, viewer models.User, format ExportFormat, archived bool) (*ExportResult, error) {
	views, err := s.feed.Feed(ctx, viewer, archived)
	if err != nil {
		return nil, err
	}

	table := buildAssignmentTable(views)

	var data []byte
	switch format {
	case ExportCSV:
		data, err = s.csv.Render(table)
	case ExportPDF:
		data, err = s.pdf.Render(table, "Devoirs")
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	jobID := uuid.New().String()
	filename := fmt.Sprintf("%s/devoirs-%s.%s", time.Now().UTC().Format("2006-01-02"), jobID, format)
	if _, err := s.store.Save(filename, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(jobID, filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export URL")
	}

	s.logger.Info("export rendered",
		zap.String("user_id", viewer.ID),
		zap.String("format", string(format)),
		zap.Int("rows", len(table.Rows)),
	)
	return &ExportResult{Filename: filename, Token: token, ExpiresAt: expiresAt}, nil
}

// Download resolves a signed token into an open file handle.
func (s *ExportService) Download(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
	}
	return file, relPath, nil
}

// Cleanup removes expired export files.
func (s *ExportService) Cleanup() {
	deleted, err := s.store.CleanupOlderThan(s.fileTTL)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(deleted)))
	}
}

func buildAssignmentTable(views []AssignmentView) export.Table {
	columns := []string{"Titre", "Matière", "Pour le", "Cible", "Statut", "Auteur"}
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{
			v.Title,
			string(v.Subject),
			v.DueDate.Format("02/01/2006 15:04"),
			describeTarget(v.Assignment),
			v.Deadline.Label,
			v.AuthorName,
		})
	}
	return export.Table{Columns: columns, Rows: rows}
}

func describeTarget(a models.Assignment) string {
	switch a.TargetType {
	case models.TargetGroup:
		return "Groupes " + strings.Join(a.TargetGroups, ", ")
	case models.TargetPersonal:
		return fmt.Sprintf("%d étudiant(s)", len(a.TargetUsers))
	default:
		return "Promotion entière"
	}
}
