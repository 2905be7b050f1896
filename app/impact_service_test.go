package app

import (
	"context"
	"sync"
	"testing"

	"gocausal/domain/core"
	"gocausal/internal"
	"gocausal/internal/causal"
	"gocausal/internal/config"
	"gocausal/internal/errors"
	"gocausal/internal/modeldef"
	"gocausal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockModelRepository struct {
	mock.Mock
	mu    sync.Mutex
	saved []*ports.ImpactRecord
}

func (m *MockModelRepository) Create(ctx context.Context, model *ports.ModelRecord) error {
	args := m.Called(ctx, model)
	return args.Error(0)
}

func (m *MockModelRepository) GetByID(ctx context.Context, id core.ModelID) (*ports.ModelRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.ModelRecord), args.Error(1)
}

func (m *MockModelRepository) List(ctx context.Context) ([]*ports.ModelRecord, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*ports.ModelRecord), args.Error(1)
}

func (m *MockModelRepository) Delete(ctx context.Context, id core.ModelID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockModelRepository) SaveImpact(ctx context.Context, impact *ports.ImpactRecord) error {
	args := m.Called(ctx, impact)
	m.mu.Lock()
	m.saved = append(m.saved, impact)
	m.mu.Unlock()
	return args.Error(0)
}

func (m *MockModelRepository) ListImpacts(ctx context.Context, modelID core.ModelID, limit int) ([]*ports.ImpactRecord, error) {
	args := m.Called(ctx, modelID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ports.ImpactRecord), args.Error(1)
}

func smokingDefinition() *modeldef.Definition {
	return &modeldef.Definition{
		Name: "smoking",
		Variables: []modeldef.VariableDef{
			{Name: "smoking", Labels: []string{"no", "yes"}, CPT: []float64{0.5, 0.5}},
			{Name: "tar", Labels: []string{"no", "yes"}, Parents: []string{"smoking"}, CPT: []float64{0.95, 0.05, 0.05, 0.95}},
			{Name: "cancer", Labels: []string{"no", "yes"}, Parents: []string{"tar", "smoking"},
				CPT: []float64{0.9, 0.1, 0.25, 0.75, 0.85, 0.15, 0.2, 0.8}},
		},
		Latents: []causal.LatentVariable{{Name: "genotype", Children: []string{"smoking", "cancer"}}},
	}
}

func bowDefinition() *modeldef.Definition {
	keep := true
	seed := int64(1)
	return &modeldef.Definition{
		Name:      "bow",
		Structure: "A->B",
		Latents:   []causal.LatentVariable{{Name: "U", Children: []string{"A", "B"}}},
		KeepArcs:  &keep,
		Seed:      &seed,
	}
}

func newService(repo ports.ModelRepository, maxConcurrent int) *ImpactService {
	return NewImpactService(repo, config.EngineConfig{MaxConcurrentQueries: maxConcurrent},
		internal.NewLogger(internal.LogLevelError))
}

func TestCreateModelAndImpact(t *testing.T) {
	repo := new(MockModelRepository)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*ports.ModelRecord")).Return(nil)
	repo.On("SaveImpact", mock.Anything, mock.AnythingOfType("*ports.ImpactRecord")).Return(nil)
	svc := newService(repo, 2)
	ctx := context.Background()

	record, err := svc.CreateModel(ctx, smokingDefinition())
	require.NoError(t, err)
	assert.Equal(t, "smoking", record.Name)
	assert.False(t, record.ID == "")

	impact, err := svc.Impact(ctx, record.ID, causal.Query{On: []string{"cancer"}, Doing: []string{"smoking"}})
	require.NoError(t, err)
	require.NotNil(t, impact.Formula)
	assert.Equal(t, "frontdoor {tar} found.", impact.Explanation)
	assert.Equal(t, []string{"cancer", "smoking"}, impact.Result.Names())

	require.Len(t, repo.saved, 1)
	assert.True(t, repo.saved[0].Identified)
	assert.Equal(t, record.ID, repo.saved[0].ModelID)
	assert.NotEmpty(t, repo.saved[0].Latex)

	// stored models are served from the built cache
	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestCreateModelRejectsInvalidDefinition(t *testing.T) {
	repo := new(MockModelRepository)
	svc := newService(repo, 1)

	_, err := svc.CreateModel(context.Background(), &modeldef.Definition{Name: ""})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	_, err = svc.CreateModel(context.Background(), nil)
	assert.Equal(t, errors.CodeValidationError, errors.GetCode(err))

	cyclic := &modeldef.Definition{Name: "c", Structure: "A->B", CausalArcs: []modeldef.ArcDef{{From: "B", To: "A"}}}
	_, err = svc.CreateModel(context.Background(), cyclic)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
	assert.ErrorIs(t, err, core.ErrCycle)

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestImpactLoadsModelFromRepository(t *testing.T) {
	id := core.NewModelID()
	repo := new(MockModelRepository)
	repo.On("GetByID", mock.Anything, id).Return(&ports.ModelRecord{ID: id, Name: "bow", Definition: bowDefinition()}, nil).Once()
	repo.On("SaveImpact", mock.Anything, mock.Anything).Return(nil)
	svc := newService(repo, 1)

	q := causal.Query{On: []string{"B"}, Doing: []string{"A"}}
	for i := 0; i < 2; i++ {
		impact, err := svc.Impact(context.Background(), id, q)
		require.NoError(t, err)
		assert.Nil(t, impact.Formula)
		assert.Nil(t, impact.Result)
		assert.Contains(t, impact.Explanation, "Hedge found")
	}

	require.Len(t, repo.saved, 2)
	assert.False(t, repo.saved[0].Identified)
	assert.Empty(t, repo.saved[0].Latex)
	repo.AssertExpectations(t)
}

func TestImpactErrors(t *testing.T) {
	missing := core.NewModelID()
	repo := new(MockModelRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	repo.On("GetByID", mock.Anything, missing).Return(nil, core.NewNotFoundError("causal model", missing.String()))
	svc := newService(repo, 1)
	ctx := context.Background()

	_, err := svc.Impact(ctx, missing, causal.Query{On: []string{"B"}, Doing: []string{"A"}})
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))

	record, err := svc.CreateModel(ctx, smokingDefinition())
	require.NoError(t, err)

	tests := []struct {
		name  string
		query causal.Query
		is    error
	}{
		{"no outcome", causal.Query{Doing: []string{"smoking"}}, core.ErrMalformedQuery},
		{"latent cause", causal.Query{On: []string{"cancer"}, Doing: []string{"genotype"}}, core.ErrMalformedQuery},
		{"unknown variable", causal.Query{On: []string{"lung"}, Doing: []string{"smoking"}}, core.ErrUnknownVariable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Impact(ctx, record.ID, tt.query)
			require.Error(t, err)
			assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
			assert.ErrorIs(t, err, tt.is)
		})
	}
	repo.AssertNotCalled(t, "SaveImpact", mock.Anything, mock.Anything)
}

func TestImpactInlineStoresNothing(t *testing.T) {
	repo := new(MockModelRepository)
	svc := newService(repo, 1)

	impact, err := svc.ImpactInline(context.Background(), smokingDefinition(),
		causal.Query{On: []string{"cancer"}, Doing: []string{"smoking"}, Values: map[string]string{"cancer": "yes"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"smoking"}, impact.Result.Names())
	repo.AssertExpectations(t)
	assert.Empty(t, repo.Calls)
}

func TestBatchKeepsOrderAndIsolatesFailures(t *testing.T) {
	repo := new(MockModelRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	repo.On("SaveImpact", mock.Anything, mock.Anything).Return(nil)
	svc := newService(repo, 2)
	ctx := context.Background()

	record, err := svc.CreateModel(ctx, smokingDefinition())
	require.NoError(t, err)

	queries := []causal.Query{
		{On: []string{"cancer"}, Doing: []string{"smoking"}},
		{On: []string{"cancer"}, Doing: []string{"cancer"}},
		{On: []string{"cancer"}, Doing: []string{"tar"}},
		{On: []string{"tar"}, Doing: []string{"smoking"}},
	}
	results, err := svc.Batch(ctx, record.ID, queries)
	require.NoError(t, err)
	require.Len(t, results, len(queries))

	for i, r := range results {
		assert.Equal(t, queries[i], r.Query)
	}
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "frontdoor {tar} found.", results[0].Impact.Explanation)
	assert.ErrorIs(t, results[1].Err, core.ErrMalformedQuery)
	assert.Nil(t, results[1].Impact)
	assert.NoError(t, results[2].Err)
	assert.NoError(t, results[3].Err)

	single, err := causal.CausalImpact(mustBuild(t, smokingDefinition()), queries[0])
	require.NoError(t, err)
	assert.True(t, single.Result.IsClose(results[0].Impact.Result, 1e-12))

	assert.Len(t, repo.saved, 3)
}

func TestBatchCancelled(t *testing.T) {
	repo := new(MockModelRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	svc := newService(repo, 1)

	record, err := svc.CreateModel(context.Background(), smokingDefinition())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Batch(ctx, record.ID, []causal.Query{{On: []string{"cancer"}, Doing: []string{"smoking"}}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDeleteAndHistory(t *testing.T) {
	id := core.NewModelID()
	repo := new(MockModelRepository)
	repo.On("Delete", mock.Anything, id).Return(nil).Once()
	repo.On("Delete", mock.Anything, id).Return(core.NewNotFoundError("causal model", id.String()))
	repo.On("ListImpacts", mock.Anything, id, 5).Return([]*ports.ImpactRecord{{ID: core.NewID(), ModelID: id}}, nil)
	svc := newService(repo, 1)
	ctx := context.Background()

	require.NoError(t, svc.DeleteModel(ctx, id))
	err := svc.DeleteModel(ctx, id)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))

	history, err := svc.History(ctx, id, 5)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func mustBuild(t *testing.T, def *modeldef.Definition) *causal.CausalModel {
	t.Helper()
	m, err := def.Build(false)
	require.NoError(t, err)
	return m
}
