package models

import "time"

// Entity is the canonical catalog row shape produced by snapshot
// normalization. Identifiers are always strings; numeric source cells are
// stringified once at ingest so lookups never mix types.
type Entity struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Unit   string `json:"unit,omitempty"`
	Active bool   `json:"active"`
}

// ReferenceSnapshot is an immutable-per-fetch catalog of selectable entities.
// Dependent catalogs are keyed by the parent entity's string identifier.
type ReferenceSnapshot struct {
	Projects       []Entity            `json:"projects"`
	Products       map[string][]Entity `json:"products"`
	LabourTypes    []Entity            `json:"labour_types"`
	PaintTypes     []Entity            `json:"paint_types"`
	PaintMaterials map[string][]Entity `json:"paint_materials"`
	MaterialTypes  []Entity            `json:"material_types"`
	Materials      map[string][]Entity `json:"materials"`
	Employees      map[string]Employee `json:"employees"`
	FetchedAt      time.Time           `json:"fetched_at"`
}

func findEntity(list []Entity, id string) (Entity, bool) {
	for _, e := range list {
		if e.ID == id {
			return e, true
		}
	}
	return Entity{}, false
}

// Project looks up a project by identifier.
func (s *ReferenceSnapshot) Project(id string) (Entity, bool) {
	return findEntity(s.Projects, id)
}

// Product looks up a product within the given project's dependent list.
func (s *ReferenceSnapshot) Product(projectID, id string) (Entity, bool) {
	return findEntity(s.Products[projectID], id)
}

// LabourType looks up a work type by identifier.
func (s *ReferenceSnapshot) LabourType(id string) (Entity, bool) {
	return findEntity(s.LabourTypes, id)
}

// PaintType looks up a paint material type by identifier.
func (s *ReferenceSnapshot) PaintType(id string) (Entity, bool) {
	return findEntity(s.PaintTypes, id)
}

// PaintMaterial looks up a paint material within its type's dependent list.
func (s *ReferenceSnapshot) PaintMaterial(typeID, id string) (Entity, bool) {
	return findEntity(s.PaintMaterials[typeID], id)
}

// MaterialType looks up a material type by identifier.
func (s *ReferenceSnapshot) MaterialType(id string) (Entity, bool) {
	return findEntity(s.MaterialTypes, id)
}

// Material looks up a material within its type's dependent list.
func (s *ReferenceSnapshot) Material(typeID, id string) (Entity, bool) {
	return findEntity(s.Materials[typeID], id)
}

// Age reports how long ago the snapshot was fetched.
func (s *ReferenceSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}
