package app

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"gocausal/domain/core"
	"gocausal/internal"
	"gocausal/internal/causal"
	"gocausal/internal/config"
	"gocausal/internal/errors"
	"gocausal/internal/modeldef"
	"gocausal/ports"

	"golang.org/x/sync/semaphore"
)

// ImpactService stores causal models and answers interventional queries on them
type ImpactService struct {
	repo   ports.ModelRepository
	engine config.EngineConfig
	logger *internal.Logger

	mu    sync.RWMutex
	built map[core.ModelID]*causal.CausalModel
}

// BatchResult is the outcome of one query of a batch. Exactly one of Impact
// and Err is set.
type BatchResult struct {
	Query  causal.Query
	Impact *causal.Impact
	Err    error
}

// NewImpactService creates an impact service
func NewImpactService(repo ports.ModelRepository, engine config.EngineConfig, logger *internal.Logger) *ImpactService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if engine.MaxConcurrentQueries < 1 {
		engine.MaxConcurrentQueries = 1
	}
	return &ImpactService{
		repo:   repo,
		engine: engine,
		logger: logger,
		built:  make(map[core.ModelID]*causal.CausalModel),
	}
}

// CreateModel validates and builds a definition, then stores it
func (s *ImpactService) CreateModel(ctx context.Context, def *modeldef.Definition) (*ports.ModelRecord, error) {
	m, err := s.build(def)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &ports.ModelRecord{
		ID:         core.NewModelID(),
		Name:       def.Name,
		Definition: def,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, errors.DatabaseError("failed to store causal model", err)
	}

	s.mu.Lock()
	s.built[record.ID] = m
	s.mu.Unlock()

	s.logger.Info("stored causal model %s (%s) with %d nodes", record.ID, record.Name, m.Nodes().Len())
	return record, nil
}

// GetModel returns a stored model definition
func (s *ImpactService) GetModel(ctx context.Context, id core.ModelID) (*ports.ModelRecord, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, repositoryError(err)
	}
	return record, nil
}

// ListModels returns every stored model, newest first
func (s *ImpactService) ListModels(ctx context.Context) ([]*ports.ModelRecord, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.DatabaseError("failed to list causal models", err)
	}
	return records, nil
}

// DeleteModel removes a model and its query history
func (s *ImpactService) DeleteModel(ctx context.Context, id core.ModelID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return repositoryError(err)
	}
	s.mu.Lock()
	delete(s.built, id)
	s.mu.Unlock()
	return nil
}

// Impact answers one query on a stored model and records the outcome
func (s *ImpactService) Impact(ctx context.Context, id core.ModelID, q causal.Query) (*causal.Impact, error) {
	m, err := s.model(ctx, id)
	if err != nil {
		return nil, err
	}
	impact, err := s.evaluate(m, q)
	if err != nil {
		return nil, err
	}
	s.record(ctx, id, q, impact)
	return impact, nil
}

// ImpactInline answers one query on a model given in the request, without
// storing anything
func (s *ImpactService) ImpactInline(ctx context.Context, def *modeldef.Definition, q causal.Query) (*causal.Impact, error) {
	m, err := s.build(def)
	if err != nil {
		return nil, err
	}
	return s.evaluate(m, q)
}

// Batch answers several queries on a stored model. Queries run concurrently,
// each on its own clone of the model, at most MaxConcurrentQueries at a
// time. Results keep the order of queries. A failing query does not stop
// the others; cancelling ctx does.
func (s *ImpactService) Batch(ctx context.Context, id core.ModelID, queries []causal.Query) ([]BatchResult, error) {
	m, err := s.model(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "batch cancelled")
	}

	results := make([]BatchResult, len(queries))
	sem := semaphore.NewWeighted(int64(s.engine.MaxConcurrentQueries))
	var wg sync.WaitGroup

	for i, q := range queries {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, errors.Wrap(err, "batch cancelled")
		}
		wg.Add(1)
		go func(i int, q causal.Query) {
			defer wg.Done()
			defer sem.Release(1)

			impact, err := s.evaluate(m.Clone(), q)
			results[i] = BatchResult{Query: q, Impact: impact, Err: err}
		}(i, q)
	}
	wg.Wait()

	for _, r := range results {
		if r.Err == nil {
			s.record(ctx, id, r.Query, r.Impact)
		}
	}
	s.logger.Debug("batch of %d queries on model %s done", len(queries), id)
	return results, nil
}

// History returns the most recent query outcomes of a model
func (s *ImpactService) History(ctx context.Context, id core.ModelID, limit int) ([]*ports.ImpactRecord, error) {
	impacts, err := s.repo.ListImpacts(ctx, id, limit)
	if err != nil {
		return nil, repositoryError(err)
	}
	return impacts, nil
}

func (s *ImpactService) build(def *modeldef.Definition) (*causal.CausalModel, error) {
	if def == nil {
		return nil, errors.ValidationError("model definition is required")
	}
	if err := def.Validate(); err != nil {
		return nil, errors.InvalidInput("invalid model definition", err)
	}
	m, err := def.Build(s.engine.KeepLatentArcs)
	if err != nil {
		return nil, errors.InvalidInput("cannot build causal model", err)
	}
	return m, nil
}

// model returns the built model of a stored definition, building it on
// first use
func (s *ImpactService) model(ctx context.Context, id core.ModelID) (*causal.CausalModel, error) {
	s.mu.RLock()
	m, ok := s.built[id]
	s.mu.RUnlock()
	if ok {
		return m, nil
	}

	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, repositoryError(err)
	}
	if m, err = s.build(record.Definition); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.built[id] = m
	s.mu.Unlock()
	return m, nil
}

func (s *ImpactService) evaluate(m *causal.CausalModel, q causal.Query) (*causal.Impact, error) {
	impact, err := causal.CausalImpact(m, q)
	if err != nil {
		return nil, queryError(err)
	}
	if s.engine.VerboseFormulas && impact.Formula != nil {
		s.logger.Debug("%s = \n%s", impact.Formula.LatexQuery(), impact.Formula.Root().Dump(""))
	}
	return impact, nil
}

// record keeps the outcome in the history; failures are logged only
func (s *ImpactService) record(ctx context.Context, id core.ModelID, q causal.Query, impact *causal.Impact) {
	r := &ports.ImpactRecord{
		ID:          core.NewID(),
		ModelID:     id,
		Query:       q,
		Identified:  impact.Formula != nil,
		Explanation: impact.Explanation,
		CreatedAt:   time.Now().UTC(),
	}
	if impact.Formula != nil {
		r.Latex = impact.Formula.ToLatex()
	}
	if err := s.repo.SaveImpact(ctx, r); err != nil {
		s.logger.Warn("failed to record impact on model %s: %v", id, err)
	}
}

func repositoryError(err error) error {
	if core.IsNotFoundError(err) {
		return errors.WithCode(errors.CodeNotFound, err)
	}
	return errors.DatabaseError("model repository failure", err)
}

func queryError(err error) error {
	switch {
	case core.IsQueryError(err), core.IsGraphError(err), stderrors.Is(err, core.ErrInvalidTable):
		return errors.InvalidInput("invalid causal query", err)
	default:
		return errors.Wrap(err, "causal impact failed")
	}
}
