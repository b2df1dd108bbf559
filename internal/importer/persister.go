package importer

import (
	"context"

	"github.com/jwalitptl/queue-api/internal/model"
	apperrors "github.com/jwalitptl/queue-api/pkg/errors"
	"github.com/jwalitptl/queue-api/pkg/logger"
)

// Creator is the slice of the patient store the persister needs.
type Creator interface {
	Create(ctx context.Context, patient *model.Patient) error
}

// Failure records one candidate that could not be stored.
type Failure struct {
	Patient *model.Patient
	Err     error
}

// BatchResult is the outcome of a best-effort batch: Parsed candidates were
// attempted, Persisted were stored, Failures holds the rest in input order.
type BatchResult struct {
	Parsed    int
	Persisted []*model.Patient
	Failures  []Failure
}

type Persister struct {
	store  Creator
	logger *logger.Logger
}

func NewPersister(store Creator, log *logger.Logger) *Persister {
	if log == nil {
		log = logger.Nop()
	}
	return &Persister{store: store, logger: log}
}

// Persist stores candidates one at a time in input order. A failing record is
// logged and skipped. It returns EmptyBatch for no candidates and
// NoRecordsPersisted when every attempt failed; the result is returned in both
// error cases so callers can still report what happened.
func (p *Persister) Persist(ctx context.Context, candidates []*model.Patient) (*BatchResult, error) {
	result := &BatchResult{Parsed: len(candidates)}
	if len(candidates) == 0 {
		return result, apperrors.EmptyBatch()
	}

	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			// abandoned by the caller; rows already stored stay stored
			p.logger.Warn("import cancelled", "stored", len(result.Persisted), "remaining", len(candidates)-i)
			return result, err
		}
		if err := p.store.Create(ctx, candidate); err != nil {
			p.logger.Error(err, "failed to persist imported patient",
				"row", i+1,
				"full_name", candidate.FullName,
			)
			result.Failures = append(result.Failures, Failure{Patient: candidate, Err: err})
			continue
		}
		result.Persisted = append(result.Persisted, candidate)
	}

	if len(result.Persisted) == 0 {
		return result, apperrors.NoRecordsPersisted(result.Parsed)
	}
	return result, nil
}
