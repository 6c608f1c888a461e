package sheets

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/vibework/reportbot/internal/config"
	"github.com/vibework/reportbot/internal/domain/models"
)

// Reference and report tab names in the backing spreadsheets.
const (
	SheetProjects      = "Projects"
	SheetProducts      = "Products"
	SheetLabourTypes   = "Operations"
	SheetPaintTypes    = "PaintMaterialTypes"
	SheetPaintMats     = "PaintMaterials"
	SheetMaterialTypes = "MaterialTypes"
	SheetMaterials     = "Materials"
	SheetEmployees     = "Users"
	SheetReports       = "Reports"
)

// Repository defines the spreadsheet operations supported by the Google
// Sheets adapter.
type Repository interface {
	ReadRecords(ctx context.Context, sheetName string) ([]map[string]string, error)
	AppendReferenceRow(ctx context.Context, sheetName string, values []interface{}) error
	SubmitReport(ctx context.Context, report *models.Report) error
	Ping(ctx context.Context) error
}

// GoogleSheetRepository implements the Repository interface using the official Google Sheets API.
type GoogleSheetRepository struct {
	service     *sheetsapi.Service
	referenceID string
	reportsID   string
	logger      *zap.Logger
}

// NewGoogleSheetRepository builds a Google Sheets backed repository instance.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*GoogleSheetRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	reportsID := cfg.ReportsID
	if reportsID == "" {
		reportsID = cfg.ReferenceID
	}

	return &GoogleSheetRepository{
		service:     service,
		referenceID: cfg.ReferenceID,
		reportsID:   reportsID,
		logger:      logger,
	}, nil
}

// ReadRecords fetches a reference tab and maps each data row onto the header
// row, the way catalog consumers expect to see it.
func (r *GoogleSheetRepository) ReadRecords(ctx context.Context, sheetName string) ([]map[string]string, error) {
	if sheetName == "" {
		return nil, fmt.Errorf("sheetName must not be empty")
	}

	resp, err := r.service.Spreadsheets.Values.Get(r.referenceID, sheetName).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheetName, err)
	}

	if len(resp.Values) < 2 {
		return nil, nil
	}

	headers := make([]string, len(resp.Values[0]))
	for i, cell := range resp.Values[0] {
		headers[i] = fmt.Sprint(cell)
	}

	records := make([]map[string]string, 0, len(resp.Values)-1)
	for _, row := range resp.Values[1:] {
		record := make(map[string]string, len(headers))
		for i, header := range headers {
			if header == "" {
				continue
			}
			if i < len(row) {
				record[header] = fmt.Sprint(row[i])
			} else {
				record[header] = ""
			}
		}
		records = append(records, record)
	}

	return records, nil
}

// AppendReferenceRow appends one row to a reference tab. Used for user
// registration.
func (r *GoogleSheetRepository) AppendReferenceRow(ctx context.Context, sheetName string, values []interface{}) error {
	return r.appendRows(ctx, r.referenceID, sheetName, [][]interface{}{values})
}

// SubmitReport durably stores the report, one row per action, in the Reports
// tab. All rows are appended in a single call.
func (r *GoogleSheetRepository) SubmitReport(ctx context.Context, report *models.Report) error {
	if report == nil || len(report.Actions) == 0 {
		return fmt.Errorf("report must carry at least one action")
	}

	rows := make([][]interface{}, 0, len(report.Actions))
	for _, action := range report.Actions {
		comment := action.Comment
		if comment == "" {
			comment = report.Comment
		}
		rows = append(rows, []interface{}{
			report.Timestamp,
			report.EmployeeID,
			report.EmployeeName,
			report.ProjectID,
			report.ProjectName,
			report.ProductID,
			report.ProductName,
			action.Category,
			typeColumn(action),
			action.SubcategoryName,
			action.Quantity,
			action.Unit,
			comment,
		})
	}

	if err := r.appendRows(ctx, r.reportsID, SheetReports, rows); err != nil {
		return err
	}

	r.logger.Info("report stored",
		zap.String("employee", report.EmployeeName),
		zap.Int("rows", len(rows)))
	return nil
}

// Ping performs a minimal read against the reference spreadsheet so callers
// can probe connectivity.
func (r *GoogleSheetRepository) Ping(ctx context.Context) error {
	if _, err := r.service.Spreadsheets.Values.Get(r.referenceID, SheetProjects+"!A1:A1").Context(ctx).Do(); err != nil {
		return fmt.Errorf("ping sheets: %w", err)
	}
	return nil
}

func (r *GoogleSheetRepository) appendRows(ctx context.Context, spreadsheetID, sheetName string, rows [][]interface{}) error {
	if sheetName == "" {
		return fmt.Errorf("sheetName must not be empty")
	}

	payload := &sheetsapi.ValueRange{Values: rows}

	call := r.service.Spreadsheets.Values.Append(spreadsheetID, sheetName, payload).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append rows into %s: %w", sheetName, err)
	}

	r.logger.Debug("rows appended to sheet", zap.String("sheet", sheetName), zap.Int("rows", len(rows)))
	return nil
}

// typeColumn resolves the type-name column of a report row. Labour rows carry
// a fixed label; paint and board rows carry the selected type's display name.
func typeColumn(action models.ReportAction) string {
	switch action.Category {
	case models.LabelLabour:
		return models.LabourTypeLabel
	case models.LabelPaint, models.LabelMaterial:
		return action.Subcategory
	default:
		return action.TypeName
	}
}
