package reference

import (
	"testing"
)

func TestFirstNonEmpty(t *testing.T) {
	record := map[string]string{"id": "  ", "project_id": "p1"}
	if got := firstNonEmpty(record, "id", "project_id"); got != "p1" {
		t.Errorf("got %q, want fallback p1", got)
	}
	if got := firstNonEmpty(record, "missing"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestIsActive(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"", true},
		{"true", true},
		{"TRUE", true},
		{"yes", true},
		{"false", false},
		{"False", false},
		{" FALSE ", false},
	}
	for _, tc := range cases {
		if got := isActive(map[string]string{"active": tc.value}); got != tc.want {
			t.Errorf("isActive(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestNormalizeListDropsInvalidAndInactive(t *testing.T) {
	records := []map[string]string{
		{"id": "p1", "name": "Кухня"},
		{"id": "p2", "name": "Шкаф", "active": "false"},
		{"id": "", "name": "без id"},
		{"id": "p3", "name": ""},
	}

	entities := normalizeList(records, projectIDKeys, projectNameKeys)
	if len(entities) != 1 {
		t.Fatalf("got %d entities, want 1: %+v", len(entities), entities)
	}
	if entities[0].ID != "p1" {
		t.Errorf("kept %q, want p1", entities[0].ID)
	}
}

func TestNormalizeListLabourFallbackChain(t *testing.T) {
	records := []map[string]string{
		{"work_id": "w1", "work_name": "Сборка"},
		{"type_id": "w2", "type_name": "Покраска"},
		{"id": "w3", "name": "Упаковка"},
	}

	entities := normalizeList(records, labourIDKeys, labourNameKeys)
	if len(entities) != 3 {
		t.Fatalf("got %d entities, want 3", len(entities))
	}
	for i, want := range []string{"w1", "w2", "w3"} {
		if entities[i].ID != want {
			t.Errorf("entities[%d].ID = %q, want %q", i, entities[i].ID, want)
		}
	}
}

func TestNormalizeGrouped(t *testing.T) {
	records := []map[string]string{
		{"id": "m1", "name": "Плита 16мм", "type_id": "mt1", "unit": "pcs"},
		{"id": "m2", "name": "Плита 18мм", "type": "mt1"},
		{"id": "m3", "name": "Кромка", "type_id": "mt2"},
		{"id": "m4", "name": "сирота"},
		{"id": "m5", "name": "выключен", "type_id": "mt1", "active": "false"},
	}

	grouped := normalizeGrouped(records, materialIDKeys, materialNameKeys, materialParentKeys)
	if len(grouped["mt1"]) != 2 {
		t.Errorf("mt1 has %d materials, want 2: %+v", len(grouped["mt1"]), grouped["mt1"])
	}
	if len(grouped["mt2"]) != 1 {
		t.Errorf("mt2 has %d materials, want 1", len(grouped["mt2"]))
	}
	if grouped["mt1"][0].Unit != "pcs" {
		t.Errorf("unit = %q, want pcs", grouped["mt1"][0].Unit)
	}
}

func TestNormalizeEmployees(t *testing.T) {
	records := []map[string]string{
		{"telegram_id": "42", "name": "Иван", "role": "user"},
		{"id": "43", "name": "Пётр"},
		{"tg_id": "44", "name": "Анна", "active": "false"},
		{"name": "без id"},
	}

	employees := normalizeEmployees(records)
	if len(employees) != 3 {
		t.Fatalf("got %d employees, want 3", len(employees))
	}
	if employees["42"].Name != "Иван" || employees["42"].Role != "user" {
		t.Errorf("employee 42 = %+v", employees["42"])
	}
	if employees["43"].TelegramID != "43" {
		t.Errorf("fallback id key not applied: %+v", employees["43"])
	}
	if employees["44"].Active {
		t.Error("inactive employee normalized as active")
	}
}
