// Package bugs implements the bug resource operations: validation followed by
// a single store call.
package bugs

import (
	"context"
	"fmt"
	"strings"

	"github.com/joescharf/bugs/internal/models"
	"github.com/joescharf/bugs/internal/store"
	"github.com/joescharf/bugs/internal/validate"
)

// ValidationError carries field-level messages for a rejected bug document.
type ValidationError struct {
	Errors validate.Errors
}

func (e *ValidationError) Error() string {
	return "invalid bug: " + strings.Join(e.Errors.Messages(), " ")
}

// Service exposes list/get/create/update/delete over a store.
type Service struct {
	store store.Store
}

// NewService creates a Service backed by s.
func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// List returns every bug, newest first.
func (s *Service) List(ctx context.Context) ([]*models.Bug, error) {
	return s.store.ListBugs(ctx)
}

// Get returns the bug with the given ID or an error wrapping store.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*models.Bug, error) {
	return s.store.GetBug(ctx, id)
}

// Create validates input and inserts a new bug. Invalid input returns a
// *ValidationError and leaves the store untouched.
func (s *Service) Create(ctx context.Context, input map[string]any) (*models.Bug, error) {
	if ok, errs := validate.Bug(input); !ok {
		return nil, &ValidationError{Errors: errs}
	}

	bug := &models.Bug{
		Title:       trimmed(input, "title"),
		Description: trimmed(input, "description"),
		Status:      statusOr(input, models.BugStatusOpen),
	}
	if err := s.store.CreateBug(ctx, bug); err != nil {
		return nil, err
	}
	return bug, nil
}

// Update validates input and replaces title, description and status of the
// bug with the given ID. A missing status keeps the stored one.
func (s *Service) Update(ctx context.Context, id string, input map[string]any) (*models.Bug, error) {
	if ok, errs := validate.Bug(input); !ok {
		return nil, &ValidationError{Errors: errs}
	}

	bug := &models.Bug{
		ID:          id,
		Title:       trimmed(input, "title"),
		Description: trimmed(input, "description"),
	}
	if _, ok := input["status"].(string); ok {
		bug.Status = statusOr(input, models.BugStatusOpen)
	} else {
		existing, err := s.store.GetBug(ctx, id)
		if err != nil {
			return nil, err
		}
		bug.Status = existing.Status
	}

	if err := s.store.ReplaceBug(ctx, bug); err != nil {
		return nil, err
	}
	return bug, nil
}

// Delete removes the bug with the given ID and returns it.
func (s *Service) Delete(ctx context.Context, id string) (*models.Bug, error) {
	bug, err := s.store.DeleteBug(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("delete %s: %w", id, err)
	}
	return bug, nil
}

// Input converts a typed BugInput into the document shape the validator
// expects. An empty status is omitted.
func Input(in models.BugInput) map[string]any {
	doc := map[string]any{
		"title":       in.Title,
		"description": in.Description,
	}
	if in.Status != "" {
		doc["status"] = string(in.Status)
	}
	return doc
}

func trimmed(input map[string]any, key string) string {
	s, _ := input[key].(string)
	return strings.TrimSpace(s)
}

func statusOr(input map[string]any, def models.BugStatus) models.BugStatus {
	if s, ok := input["status"].(string); ok && s != "" {
		return models.BugStatus(s)
	}
	return def
}
