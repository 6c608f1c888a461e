// Package builder turns category-specific user selections into validated
// report actions. Building never errors: an incomplete or invalid input
// yields no action at all, and the caller surfaces that as a validation
// message. There is no partial-action state.
package builder

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vibework/reportbot/internal/domain/models"
)

// Units emitted on built actions.
const (
	UnitHours  = "hours"
	UnitLiters = "liters"
)

// ElapsedPlaceholder is shown while no time has been chosen yet.
const ElapsedPlaceholder = "—"

// Input is the closed set of category-specific field bundles. Exactly one
// variant exists per category; Build is the single dispatch point.
type Input interface {
	Category() models.Category
}

// LabourInput captures a work type with independently selected hours and
// minutes.
type LabourInput struct {
	WorkTypeID string
	Hours      int
	Minutes    int
}

// Category implements Input.
func (LabourInput) Category() models.Category { return models.CategoryLabour }

// PaintInput captures a paint type, a dependent material and a quantity.
type PaintInput struct {
	TypeID     string
	MaterialID string
	Quantity   string
}

// Category implements Input.
func (PaintInput) Category() models.Category { return models.CategoryPaint }

// MaterialInput captures a board material type, a dependent material and a
// quantity.
type MaterialInput struct {
	TypeID     string
	MaterialID string
	Quantity   string
}

// Category implements Input.
func (MaterialInput) Category() models.Category { return models.CategoryMaterial }

// DefectInput captures the mandatory defect description.
type DefectInput struct {
	Comment string
}

// Category implements Input.
func (DefectInput) Category() models.Category { return models.CategoryDefect }

// Build validates the input against the reference snapshot and produces a
// complete action, or nil when any required field is missing or fails its
// numeric check.
func Build(snapshot *models.ReferenceSnapshot, input Input) *models.Action {
	if snapshot == nil || input == nil {
		return nil
	}

	switch in := input.(type) {
	case LabourInput:
		return buildLabour(snapshot, in)
	case PaintInput:
		return buildPaint(snapshot, in)
	case MaterialInput:
		return buildMaterial(snapshot, in)
	case DefectInput:
		return buildDefect(in)
	}
	return nil
}

func buildLabour(snapshot *models.ReferenceSnapshot, in LabourInput) *models.Action {
	workType, ok := snapshot.LabourType(in.WorkTypeID)
	if !ok {
		return nil
	}

	if in.Hours < 0 || in.Minutes < 0 {
		return nil
	}
	totalMinutes := in.Hours*60 + in.Minutes
	if totalMinutes == 0 {
		return nil
	}

	return &models.Action{
		Category:        models.CategoryLabour,
		Subcategory:     workType.ID,
		SubcategoryName: workType.Name,
		TypeName:        models.LabelLabour,
		Quantity:        formatHours(totalMinutes),
		Unit:            UnitHours,
		TimeDisplay:     FormatElapsed(in.Hours, in.Minutes),
	}
}

func buildPaint(snapshot *models.ReferenceSnapshot, in PaintInput) *models.Action {
	paintType, ok := snapshot.PaintType(in.TypeID)
	if !ok {
		return nil
	}
	material, ok := snapshot.PaintMaterial(in.TypeID, in.MaterialID)
	if !ok {
		return nil
	}
	quantity, ok := parseQuantity(in.Quantity)
	if !ok {
		return nil
	}

	unit := material.Unit
	if unit == "" {
		unit = UnitLiters
	}

	return &models.Action{
		Category:        models.CategoryPaint,
		Subcategory:     paintType.Name,
		SubcategoryName: material.Name,
		TypeName:        models.LabelPaint,
		Quantity:        quantity,
		Unit:            unit,
	}
}

func buildMaterial(snapshot *models.ReferenceSnapshot, in MaterialInput) *models.Action {
	materialType, ok := snapshot.MaterialType(in.TypeID)
	if !ok {
		return nil
	}
	material, ok := snapshot.Material(in.TypeID, in.MaterialID)
	if !ok {
		return nil
	}
	quantity, ok := parseQuantity(in.Quantity)
	if !ok {
		return nil
	}

	return &models.Action{
		Category:        models.CategoryMaterial,
		Subcategory:     materialType.Name,
		SubcategoryName: material.Name,
		TypeName:        models.LabelMaterial,
		Quantity:        quantity,
		Unit:            material.Unit,
	}
}

func buildDefect(in DefectInput) *models.Action {
	comment := strings.TrimSpace(in.Comment)
	if comment == "" {
		return nil
	}

	return &models.Action{
		Category:        models.CategoryDefect,
		Subcategory:     models.LabelDefect,
		SubcategoryName: models.LabelDefect,
		TypeName:        models.LabelDefect,
		Comment:         comment,
	}
}

// parseQuantity accepts a strictly positive real number, tolerating a comma
// as the decimal separator.
func parseQuantity(raw string) (string, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if cleaned == "" {
		return "", false
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsInf(value, 0) || math.IsNaN(value) || value <= 0 {
		return "", false
	}

	return strconv.FormatFloat(value, 'f', -1, 64), true
}

// formatHours renders elapsed minutes as a plain decimal hour count,
// rounded to two decimals with trailing zeros trimmed.
func formatHours(totalMinutes int) string {
	hours := float64(totalMinutes) / 60
	rounded := math.Round(hours*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}

// FormatElapsed renders the human display string for an hour/minute pair:
// "2h 15m", "45m", "3h", or the placeholder when nothing has been chosen.
func FormatElapsed(hours, minutes int) string {
	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	}
	return ElapsedPlaceholder
}
