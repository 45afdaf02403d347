package service

import (
	"context"
	"fmt"

	"github.com/pkordes/tripfeed/internal/domain"
	"github.com/pkordes/tripfeed/internal/repo"
)

// IngestRunService exposes the ingestion run log.
type IngestRunService struct {
	runs repo.IngestRunRepo
}

// NewIngestRunService constructs an IngestRunService backed by the provided repo.
func NewIngestRunService(r repo.IngestRunRepo) *IngestRunService {
	return &IngestRunService{runs: r}
}

// List returns one page of runs, newest first. Items is never nil.
func (s *IngestRunService) List(ctx context.Context, p domain.PageParams) (domain.Page[domain.IngestRun], error) {
	page, err := s.runs.List(ctx, p)
	if err != nil {
		return domain.Page[domain.IngestRun]{}, fmt.Errorf("service.IngestRunService.List: %w", err)
	}
	if page.Items == nil {
		page.Items = []domain.IngestRun{}
	}
	return page, nil
}
