package assembler

import (
	"errors"
	"time"

	"github.com/vibework/reportbot/internal/domain/models"
)

// ErrIncompleteDraft indicates the draft misses a project, a product or any
// actions and cannot be assembled.
var ErrIncompleteDraft = errors.New("draft is not complete enough to assemble")

// Service converts a completed draft plus actor identity into the canonical
// report payload handed to the transport.
type Service struct {
	now func() time.Time
}

// NewService wires a new assembler instance.
func NewService() *Service {
	return &Service{now: time.Now}
}

// Assemble builds the transport payload. The generation timestamp is taken
// at assembly time, not at action-creation time. Project and product come
// from the draft; the first action's copies are consulted only when the
// draft-level fields are empty (form-mode submissions carry them per action).
func (s *Service) Assemble(draft *models.Draft, actor models.Employee) (*models.Report, error) {
	if draft == nil || len(draft.Actions) == 0 {
		return nil, ErrIncompleteDraft
	}

	projectID, projectName := draft.ProjectID, draft.ProjectName
	productID, productName := draft.ProductID, draft.ProductName
	if projectID == "" {
		projectID, projectName = draft.Actions[0].ProjectID, draft.Actions[0].ProjectName
	}
	if productID == "" {
		productID, productName = draft.Actions[0].ProductID, draft.Actions[0].ProductName
	}

	if projectID == "" || productID == "" {
		return nil, ErrIncompleteDraft
	}

	actions := make([]models.ReportAction, 0, len(draft.Actions))
	for _, action := range draft.Actions {
		actions = append(actions, models.ReportAction{
			Category:        action.Category.WireLabel(),
			Subcategory:     action.Subcategory,
			SubcategoryName: action.SubcategoryName,
			TypeName:        action.TypeName,
			Quantity:        action.Quantity,
			Unit:            action.Unit,
			Comment:         action.Comment,
		})
	}

	return &models.Report{
		Timestamp:    s.now().UTC().Format(time.RFC3339),
		EmployeeID:   actor.ID,
		EmployeeName: actor.Name,
		ProjectID:    projectID,
		ProjectName:  projectName,
		ProductID:    productID,
		ProductName:  productName,
		Actions:      actions,
		Comment:      draft.Comment,
	}, nil
}
