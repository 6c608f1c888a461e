package session

import (
	"testing"

	"github.com/vibework/reportbot/internal/domain/models"
	"github.com/vibework/reportbot/internal/service/builder"
)

func TestSetCategoryClearsSelections(t *testing.T) {
	ctx := Context{DraftID: "d1"}
	ctx.SetCategory(models.CategoryPaint)
	ctx.SelectParentType("pt1")
	ctx.SelectMaterial("pm1")
	ctx.Quantity = "2.5"

	ctx.SetCategory(models.CategoryLabour)

	if ctx.ParentTypeID != "" || ctx.MaterialID != "" || ctx.Quantity != "" {
		t.Errorf("category switch kept selections: %+v", ctx)
	}
	if ctx.DraftID != "d1" {
		t.Errorf("draft binding lost: %q", ctx.DraftID)
	}
}

func TestSetCategorySameIsNoop(t *testing.T) {
	ctx := Context{}
	ctx.SetCategory(models.CategoryPaint)
	ctx.SelectParentType("pt1")
	ctx.SelectMaterial("pm1")

	ctx.SetCategory(models.CategoryPaint)

	if ctx.ParentTypeID != "pt1" || ctx.MaterialID != "pm1" {
		t.Errorf("re-selecting the same category cleared selections: %+v", ctx)
	}
}

func TestSelectParentTypeClearsDependentMaterial(t *testing.T) {
	ctx := Context{}
	ctx.SetCategory(models.CategoryMaterial)
	ctx.SelectParentType("mt1")
	ctx.SelectMaterial("m1")

	ctx.SelectParentType("mt2")
	if ctx.MaterialID != "" {
		t.Errorf("material survived a parent type change: %q", ctx.MaterialID)
	}

	ctx.SelectMaterial("m5")
	ctx.SelectParentType("mt2")
	if ctx.MaterialID != "m5" {
		t.Errorf("re-selecting the same parent type cleared the material: %q", ctx.MaterialID)
	}
}

func TestInputPerCategory(t *testing.T) {
	ctx := Context{}

	if _, ok := ctx.Input(); ok {
		t.Error("no category chosen, Input must report false")
	}

	ctx.SetCategory(models.CategoryLabour)
	ctx.WorkTypeID = "w1"
	ctx.SetElapsed(1, 30)
	input, ok := ctx.Input()
	if !ok {
		t.Fatal("labour input not produced")
	}
	labour, ok := input.(builder.LabourInput)
	if !ok {
		t.Fatalf("input type = %T, want LabourInput", input)
	}
	if labour.WorkTypeID != "w1" || labour.Hours != 1 || labour.Minutes != 30 {
		t.Errorf("labour input = %+v", labour)
	}

	ctx.SetCategory(models.CategoryPaint)
	ctx.SelectParentType("pt1")
	ctx.SelectMaterial("pm1")
	ctx.Quantity = "2"
	input, _ = ctx.Input()
	paint, ok := input.(builder.PaintInput)
	if !ok {
		t.Fatalf("input type = %T, want PaintInput", input)
	}
	if paint.TypeID != "pt1" || paint.MaterialID != "pm1" || paint.Quantity != "2" {
		t.Errorf("paint input = %+v", paint)
	}

	ctx.SetCategory(models.CategoryDefect)
	ctx.Comment = "скол"
	input, _ = ctx.Input()
	defect, ok := input.(builder.DefectInput)
	if !ok {
		t.Fatalf("input type = %T, want DefectInput", input)
	}
	if defect.Comment != "скол" {
		t.Errorf("defect input = %+v", defect)
	}
}

func TestResetKeepsDraftBinding(t *testing.T) {
	ctx := Context{DraftID: "d1"}
	ctx.SetCategory(models.CategoryLabour)
	ctx.WorkTypeID = "w1"
	ctx.SetElapsed(2, 0)

	ctx.Reset()

	if ctx.DraftID != "d1" {
		t.Errorf("draft binding lost: %q", ctx.DraftID)
	}
	if ctx.Category != "" || ctx.WorkTypeID != "" || ctx.Hours != 0 {
		t.Errorf("reset kept selections: %+v", ctx)
	}
}

func TestManagerIsolatesActors(t *testing.T) {
	m := NewManager()

	first := m.Get("42")
	first.SetCategory(models.CategoryLabour)
	first.WorkTypeID = "w1"
	m.Update("42", first)

	second := m.Get("43")
	if second.Category != "" {
		t.Errorf("actor 43 sees actor 42's state: %+v", second)
	}

	// Get hands out copies; mutating one must not leak back.
	leaked := m.Get("42")
	leaked.WorkTypeID = "w9"
	if m.Get("42").WorkTypeID != "w1" {
		t.Error("Get returned a shared reference")
	}

	m.Clear("42")
	if m.Get("42").WorkTypeID != "" {
		t.Error("Clear left state behind")
	}
}
