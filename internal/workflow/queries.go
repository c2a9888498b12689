package workflow

import (
	"context"

	"splitsheet/internal/splitsheet"
	"splitsheet/internal/store"
)

// Get returns one splitsheet.
func (s *Service) Get(ctx context.Context, splitsheetID string) (*splitsheet.Splitsheet, error) {
	return s.store.GetSplitsheet(ctx, splitsheetID)
}

// List returns splitsheets matching filter, newest first.
func (s *Service) List(ctx context.Context, filter store.ListFilter) ([]*splitsheet.Splitsheet, error) {
	return s.store.ListSplitsheets(ctx, filter)
}

// Stats summarizes splitsheets by status together with counter health.
func (s *Service) Stats(ctx context.Context) (store.Summary, error) {
	return s.store.Summary(ctx)
}
