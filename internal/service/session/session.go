// Package session holds each actor's in-progress selection state as an
// explicit context object. Nothing in here is global: two actors (or two
// tests) never share state.
package session

import (
	"sync"

	"github.com/vibework/reportbot/internal/domain/models"
	"github.com/vibework/reportbot/internal/service/builder"
)

// Context carries one actor's pending line-item selections.
type Context struct {
	DraftID  string
	Category models.Category

	// Labour fields.
	WorkTypeID string
	Hours      int
	Minutes    int

	// Paint/material fields. ParentTypeID keys the dependent material list.
	ParentTypeID string
	MaterialID   string
	Quantity     string

	// Defect field.
	Comment string
}

// SetCategory switches the active category, discarding every
// category-specific selection when the category actually changes.
func (c *Context) SetCategory(category models.Category) {
	if c.Category == category {
		return
	}
	draftID := c.DraftID
	*c = Context{DraftID: draftID, Category: category}
}

// SelectParentType records a paint/material type selection. A change of type
// invalidates the chosen material: the dependent list is keyed by the parent
// type's identifier, so the old choice may not exist under the new key.
func (c *Context) SelectParentType(typeID string) {
	if c.ParentTypeID != typeID {
		c.MaterialID = ""
	}
	c.ParentTypeID = typeID
}

// SelectMaterial records a material selection within the current parent type.
func (c *Context) SelectMaterial(materialID string) {
	c.MaterialID = materialID
}

// SetElapsed records the independently chosen hour and minute values.
func (c *Context) SetElapsed(hours, minutes int) {
	c.Hours, c.Minutes = hours, minutes
}

// Input assembles the builder input for the active category. The bool is
// false only when no category has been chosen yet.
func (c *Context) Input() (builder.Input, bool) {
	switch c.Category {
	case models.CategoryLabour:
		return builder.LabourInput{WorkTypeID: c.WorkTypeID, Hours: c.Hours, Minutes: c.Minutes}, true
	case models.CategoryPaint:
		return builder.PaintInput{TypeID: c.ParentTypeID, MaterialID: c.MaterialID, Quantity: c.Quantity}, true
	case models.CategoryMaterial:
		return builder.MaterialInput{TypeID: c.ParentTypeID, MaterialID: c.MaterialID, Quantity: c.Quantity}, true
	case models.CategoryDefect:
		return builder.DefectInput{Comment: c.Comment}, true
	}
	return nil, false
}

// Reset clears the pending selections but keeps the draft binding, ready for
// the next line item.
func (c *Context) Reset() {
	draftID := c.DraftID
	*c = Context{DraftID: draftID}
}

// Manager handles per-actor selection contexts.
type Manager struct {
	sessions map[string]Context
	mu       sync.RWMutex
}

// NewManager creates a new session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]Context)}
}

// Get retrieves a copy of the current context for an actor.
func (m *Manager) Get(actorID string) Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[actorID]
}

// Update stores the context for an actor.
func (m *Manager) Update(actorID string, ctx Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[actorID] = ctx
}

// Clear removes an actor's context.
func (m *Manager) Clear(actorID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, actorID)
}
