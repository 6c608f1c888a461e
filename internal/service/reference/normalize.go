package reference

import (
	"strings"

	"github.com/vibework/reportbot/internal/domain/models"
)

// The reference tabs evolved separate header conventions over time, so every
// catalog field has a chain of possible column names. That chain is resolved
// exactly once here; downstream code only ever sees the canonical Entity
// shape.
var (
	projectIDKeys   = []string{"id", "project_id"}
	projectNameKeys = []string{"name", "project_name"}

	productIDKeys     = []string{"id", "product_id"}
	productNameKeys   = []string{"name", "product_name"}
	productParentKeys = []string{"project_id", "project"}

	labourIDKeys   = []string{"work_id", "type_id", "id"}
	labourNameKeys = []string{"work_name", "type_name", "name"}

	typeIDKeys   = []string{"id", "type_id"}
	typeNameKeys = []string{"name", "type_name"}

	materialIDKeys     = []string{"id", "material_id"}
	materialNameKeys   = []string{"name", "material_name"}
	materialParentKeys = []string{"type_id", "type"}

	employeeIDKeys = []string{"telegram_id", "id", "tg_id"}
)

func firstNonEmpty(record map[string]string, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(record[key]); value != "" {
			return value
		}
	}
	return ""
}

// isActive treats anything but an explicit "false" as active, matching the
// sheet convention where the column is frequently left blank.
func isActive(record map[string]string) bool {
	return !strings.EqualFold(strings.TrimSpace(record["active"]), "false")
}

func normalizeEntity(record map[string]string, idKeys, nameKeys []string) (models.Entity, bool) {
	id := firstNonEmpty(record, idKeys...)
	name := firstNonEmpty(record, nameKeys...)
	if id == "" || name == "" {
		return models.Entity{}, false
	}
	return models.Entity{
		ID:     id,
		Name:   name,
		Unit:   strings.TrimSpace(record["unit"]),
		Active: isActive(record),
	}, true
}

func normalizeList(records []map[string]string, idKeys, nameKeys []string) []models.Entity {
	entities := make([]models.Entity, 0, len(records))
	for _, record := range records {
		if entity, ok := normalizeEntity(record, idKeys, nameKeys); ok && entity.Active {
			entities = append(entities, entity)
		}
	}
	return entities
}

// normalizeGrouped buckets dependent-catalog rows by their parent identifier.
func normalizeGrouped(records []map[string]string, idKeys, nameKeys, parentKeys []string) map[string][]models.Entity {
	grouped := make(map[string][]models.Entity)
	for _, record := range records {
		parent := firstNonEmpty(record, parentKeys...)
		if parent == "" {
			continue
		}
		if entity, ok := normalizeEntity(record, idKeys, nameKeys); ok && entity.Active {
			grouped[parent] = append(grouped[parent], entity)
		}
	}
	return grouped
}

func normalizeEmployees(records []map[string]string) map[string]models.Employee {
	employees := make(map[string]models.Employee, len(records))
	for _, record := range records {
		telegramID := firstNonEmpty(record, employeeIDKeys...)
		if telegramID == "" {
			continue
		}
		employees[telegramID] = models.Employee{
			TelegramID: telegramID,
			ID:         firstNonEmpty(record, "id", "telegram_id"),
			Name:       strings.TrimSpace(record["name"]),
			Role:       strings.TrimSpace(record["role"]),
			Active:     isActive(record),
		}
	}
	return employees
}
