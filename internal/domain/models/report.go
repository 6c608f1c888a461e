package models

import "time"

// Category identifies one of the four closed line-item kinds a report can hold.
type Category string

const (
	CategoryLabour   Category = "labour"
	CategoryPaint    Category = "paint"
	CategoryMaterial Category = "material"
	CategoryDefect   Category = "defect"
)

// Fixed localized labels used on the wire. The report sheet is read by the
// operations team, which works with the Russian headings.
const (
	LabelLabour   = "Работы"
	LabelPaint    = "ЛКМ"
	LabelMaterial = "Плита"
	LabelDefect   = "Брак"

	// LabourTypeLabel is the constant type-column value for labour rows. The
	// selected work type identifier travels in the subcategory field instead.
	LabourTypeLabel = "Трудозатраты"
)

// WireLabel returns the localized category label transmitted in report rows.
func (c Category) WireLabel() string {
	switch c {
	case CategoryLabour:
		return LabelLabour
	case CategoryPaint:
		return LabelPaint
	case CategoryMaterial:
		return LabelMaterial
	case CategoryDefect:
		return LabelDefect
	}
	return string(c)
}

// DraftStatus is the lifecycle state of a draft report.
type DraftStatus string

const (
	StatusEditing     DraftStatus = "editing"
	StatusReadyToSend DraftStatus = "ready-to-send"
	StatusDelivered   DraftStatus = "delivered"
	StatusSendFailed  DraftStatus = "send-failed"
)

// QueuedStatuses are the draft statuses the sync engine drains. Drafts are
// drained in creation order regardless of which of the two they carry.
var QueuedStatuses = []DraftStatus{StatusReadyToSend, StatusSendFailed}

// Action is one immutable line item of a draft. Edits are delete-and-re-add.
type Action struct {
	Category        Category `json:"category" bson:"category"`
	Subcategory     string   `json:"subcategory" bson:"subcategory"`
	SubcategoryName string   `json:"subcategory_name" bson:"subcategory_name"`
	TypeName        string   `json:"type_name" bson:"type_name"`
	Quantity        string   `json:"quantity" bson:"quantity"`
	Unit            string   `json:"unit" bson:"unit"`
	Comment         string   `json:"comment,omitempty" bson:"comment,omitempty"`
	TimeDisplay     string   `json:"time_display,omitempty" bson:"time_display,omitempty"`

	// Form-mode submissions attach project/product copies per action. The
	// assembler prefers the draft-level fields and only falls back to these.
	ProjectID   string `json:"project_id,omitempty" bson:"project_id,omitempty"`
	ProjectName string `json:"project_name,omitempty" bson:"project_name,omitempty"`
	ProductID   string `json:"product_id,omitempty" bson:"product_id,omitempty"`
	ProductName string `json:"product_name,omitempty" bson:"product_name,omitempty"`
}

// Draft is a report being assembled or queued for delivery.
type Draft struct {
	ID          string      `json:"id" bson:"_id"`
	Status      DraftStatus `json:"status" bson:"status"`
	CreatedAt   time.Time   `json:"created_at" bson:"created_at"`
	DeliveredAt *time.Time  `json:"delivered_at,omitempty" bson:"delivered_at,omitempty"`
	RetryCount  int         `json:"retry_count" bson:"retry_count"`
	// Actor identity is bound at submit time so queued drafts can still be
	// assembled during a background drain.
	EmployeeID   string   `json:"employee_id,omitempty" bson:"employee_id,omitempty"`
	EmployeeName string   `json:"employee_name,omitempty" bson:"employee_name,omitempty"`
	ProjectID    string   `json:"project_id" bson:"project_id"`
	ProjectName  string   `json:"project_name" bson:"project_name"`
	ProductID    string   `json:"product_id" bson:"product_id"`
	ProductName  string   `json:"product_name" bson:"product_name"`
	Actions      []Action `json:"actions" bson:"actions"`
	Comment      string   `json:"comment,omitempty" bson:"comment,omitempty"`
}

// Submittable reports whether the draft satisfies the completeness invariant:
// a project, a product and at least one action.
func (d *Draft) Submittable() bool {
	return d != nil && d.ProjectID != "" && d.ProductID != "" && len(d.Actions) > 0
}

// DraftPatch carries partial draft updates. Nil fields are left untouched.
type DraftPatch struct {
	Status       *DraftStatus
	DeliveredAt  *time.Time
	RetryCount   *int
	EmployeeID   *string
	EmployeeName *string
	ProjectID    *string
	ProjectName  *string
	ProductID    *string
	ProductName  *string
	Actions      *[]Action
	Comment      *string
}

// Report is the canonical payload handed to the delivery transport.
type Report struct {
	Timestamp    string         `json:"timestamp"`
	EmployeeID   string         `json:"employee_id"`
	EmployeeName string         `json:"employee_name"`
	ProjectID    string         `json:"project_id"`
	ProjectName  string         `json:"project_name"`
	ProductID    string         `json:"product_id"`
	ProductName  string         `json:"product_name"`
	Actions      []ReportAction `json:"actions"`
	Comment      string         `json:"comment,omitempty"`
}

// ReportAction is a single transmitted row with the localized category label.
type ReportAction struct {
	Category        string `json:"category"`
	Subcategory     string `json:"subcategory"`
	SubcategoryName string `json:"subcategory_name"`
	TypeName        string `json:"type_name"`
	Quantity        string `json:"quantity"`
	Unit            string `json:"unit"`
	Comment         string `json:"comment"`
}
