package builder

import (
	"testing"

	"github.com/vibework/reportbot/internal/domain/models"
)

func testSnapshot() *models.ReferenceSnapshot {
	return &models.ReferenceSnapshot{
		LabourTypes: []models.Entity{
			{ID: "w1", Name: "Сборка", Active: true},
		},
		PaintTypes: []models.Entity{
			{ID: "pt1", Name: "Грунт", Active: true},
		},
		PaintMaterials: map[string][]models.Entity{
			"pt1": {
				{ID: "pm1", Name: "Грунт белый", Unit: "kg", Active: true},
				{ID: "pm2", Name: "Грунт серый", Active: true},
			},
		},
		MaterialTypes: []models.Entity{
			{ID: "mt1", Name: "ЛДСП", Active: true},
		},
		Materials: map[string][]models.Entity{
			"mt1": {
				{ID: "m1", Name: "Плита 16мм", Unit: "pcs", Active: true},
				{ID: "m2", Name: "Плита 18мм", Active: true},
			},
		},
	}
}

func TestBuildLabour(t *testing.T) {
	action := Build(testSnapshot(), LabourInput{WorkTypeID: "w1", Hours: 1, Minutes: 30})
	if action == nil {
		t.Fatal("expected action, got nil")
	}

	if action.Category != models.CategoryLabour {
		t.Errorf("category = %q, want %q", action.Category, models.CategoryLabour)
	}
	if action.Quantity != "1.5" {
		t.Errorf("quantity = %q, want 1.5", action.Quantity)
	}
	if action.Unit != UnitHours {
		t.Errorf("unit = %q, want %q", action.Unit, UnitHours)
	}
	if action.TimeDisplay != "1h 30m" {
		t.Errorf("time display = %q, want 1h 30m", action.TimeDisplay)
	}
	if action.Subcategory != "w1" || action.SubcategoryName != "Сборка" {
		t.Errorf("subcategory = %q/%q, want w1/Сборка", action.Subcategory, action.SubcategoryName)
	}
	if action.TypeName != models.LabelLabour {
		t.Errorf("type name = %q, want %q", action.TypeName, models.LabelLabour)
	}
}

func TestBuildLabourQuantityRounding(t *testing.T) {
	cases := []struct {
		hours, minutes int
		want           string
	}{
		{1, 30, "1.5"},
		{0, 45, "0.75"},
		{2, 0, "2"},
		{0, 20, "0.33"},
		{0, 1, "0.02"},
	}

	for _, tc := range cases {
		action := Build(testSnapshot(), LabourInput{WorkTypeID: "w1", Hours: tc.hours, Minutes: tc.minutes})
		if action == nil {
			t.Fatalf("Build(%dh %dm) returned nil", tc.hours, tc.minutes)
		}
		if action.Quantity != tc.want {
			t.Errorf("Build(%dh %dm) quantity = %q, want %q", tc.hours, tc.minutes, action.Quantity, tc.want)
		}
	}
}

func TestBuildLabourRejectsInvalid(t *testing.T) {
	cases := []struct {
		name  string
		input LabourInput
	}{
		{"zero elapsed", LabourInput{WorkTypeID: "w1"}},
		{"negative hours", LabourInput{WorkTypeID: "w1", Hours: -1, Minutes: 30}},
		{"negative minutes", LabourInput{WorkTypeID: "w1", Hours: 1, Minutes: -5}},
		{"unknown work type", LabourInput{WorkTypeID: "missing", Hours: 1}},
		{"no work type", LabourInput{Hours: 1}},
	}

	for _, tc := range cases {
		if action := Build(testSnapshot(), tc.input); action != nil {
			t.Errorf("%s: expected nil action, got %+v", tc.name, action)
		}
	}
}

func TestBuildPaint(t *testing.T) {
	action := Build(testSnapshot(), PaintInput{TypeID: "pt1", MaterialID: "pm1", Quantity: "2,5"})
	if action == nil {
		t.Fatal("expected action, got nil")
	}

	if action.Quantity != "2.5" {
		t.Errorf("quantity = %q, want 2.5 (comma normalized)", action.Quantity)
	}
	if action.Unit != "kg" {
		t.Errorf("unit = %q, want material unit kg", action.Unit)
	}
	if action.Subcategory != "Грунт" || action.SubcategoryName != "Грунт белый" {
		t.Errorf("subcategory = %q/%q", action.Subcategory, action.SubcategoryName)
	}
	if action.TypeName != models.LabelPaint {
		t.Errorf("type name = %q, want %q", action.TypeName, models.LabelPaint)
	}
}

func TestBuildPaintUnitFallback(t *testing.T) {
	action := Build(testSnapshot(), PaintInput{TypeID: "pt1", MaterialID: "pm2", Quantity: "1"})
	if action == nil {
		t.Fatal("expected action, got nil")
	}
	if action.Unit != UnitLiters {
		t.Errorf("unit = %q, want fallback %q", action.Unit, UnitLiters)
	}
}

func TestBuildPaintRejectsMaterialOutsideType(t *testing.T) {
	// pm1 exists, but only under pt1; an unknown parent must not leak it.
	if action := Build(testSnapshot(), PaintInput{TypeID: "other", MaterialID: "pm1", Quantity: "1"}); action != nil {
		t.Errorf("expected nil action, got %+v", action)
	}
}

func TestBuildMaterial(t *testing.T) {
	action := Build(testSnapshot(), MaterialInput{TypeID: "mt1", MaterialID: "m1", Quantity: "4"})
	if action == nil {
		t.Fatal("expected action, got nil")
	}

	if action.Unit != "pcs" {
		t.Errorf("unit = %q, want pcs", action.Unit)
	}
	if action.TypeName != models.LabelMaterial {
		t.Errorf("type name = %q, want %q", action.TypeName, models.LabelMaterial)
	}
}

func TestBuildMaterialUnitFallbackIsEmpty(t *testing.T) {
	action := Build(testSnapshot(), MaterialInput{TypeID: "mt1", MaterialID: "m2", Quantity: "1"})
	if action == nil {
		t.Fatal("expected action, got nil")
	}
	if action.Unit != "" {
		t.Errorf("unit = %q, want empty fallback", action.Unit)
	}
}

func TestBuildRejectsBadQuantities(t *testing.T) {
	for _, quantity := range []string{"", " ", "0", "-1", "abc", "NaN", "Inf"} {
		input := MaterialInput{TypeID: "mt1", MaterialID: "m1", Quantity: quantity}
		if action := Build(testSnapshot(), input); action != nil {
			t.Errorf("quantity %q: expected nil action, got %+v", quantity, action)
		}
	}
}

func TestBuildDefect(t *testing.T) {
	action := Build(testSnapshot(), DefectInput{Comment: "  скол на кромке  "})
	if action == nil {
		t.Fatal("expected action, got nil")
	}

	if action.Comment != "скол на кромке" {
		t.Errorf("comment = %q, want trimmed text", action.Comment)
	}
	if action.Subcategory != models.LabelDefect || action.TypeName != models.LabelDefect {
		t.Errorf("labels = %q/%q, want %q", action.Subcategory, action.TypeName, models.LabelDefect)
	}
	if action.Quantity != "" || action.Unit != "" {
		t.Errorf("defect must carry no quantity/unit, got %q/%q", action.Quantity, action.Unit)
	}
}

func TestBuildDefectRejectsBlankComment(t *testing.T) {
	if action := Build(testSnapshot(), DefectInput{Comment: "   "}); action != nil {
		t.Errorf("expected nil action, got %+v", action)
	}
}

func TestBuildNilInputs(t *testing.T) {
	if action := Build(nil, DefectInput{Comment: "x"}); action != nil {
		t.Error("nil snapshot must yield nil action")
	}
	if action := Build(testSnapshot(), nil); action != nil {
		t.Error("nil input must yield nil action")
	}
}

func TestFormatElapsed(t *testing.T) {
	cases := []struct {
		hours, minutes int
		want           string
	}{
		{2, 15, "2h 15m"},
		{0, 45, "45m"},
		{3, 0, "3h"},
		{0, 0, ElapsedPlaceholder},
	}

	for _, tc := range cases {
		if got := FormatElapsed(tc.hours, tc.minutes); got != tc.want {
			t.Errorf("FormatElapsed(%d, %d) = %q, want %q", tc.hours, tc.minutes, got, tc.want)
		}
	}
}
