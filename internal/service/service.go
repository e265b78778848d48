package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine"
	enginev1 "github.com/rxtech-lab/argo-backtest/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"go.uber.org/zap"
)

// StrategyRecord is a saved strategy: a registry type plus its parameters.
type StrategyRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"strategy_type"`
	Params      string    `json:"params"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateStrategyInput struct {
	Name        string `json:"name" validate:"required"`
	Type        string `json:"strategy_type" validate:"required"`
	Params      string `json:"params"`
	Description string `json:"description"`
}

// UpdateStrategyInput changes only the fields that are set.
type UpdateStrategyInput struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Params      *string `json:"params,omitempty"`
	Description *string `json:"description,omitempty"`
}

type BacktestStatus string

const (
	BacktestStatusCompleted BacktestStatus = "completed"
	BacktestStatusFailed    BacktestStatus = "failed"
)

// BacktestRecord is one requested run. Result is set when the run completed.
type BacktestRecord struct {
	ID         string                `json:"id"`
	StrategyID string                `json:"strategy_id"`
	Symbol     string                `json:"symbol"`
	Status     BacktestStatus        `json:"status"`
	Error      string                `json:"error,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	Result     *types.BacktestResult `json:"result,omitempty"`
}

type BacktestRequest struct {
	StrategyID string `validate:"required"`
	Symbol     string
	Bars       []types.Bar

	// EngineConfig is a YAML or JSON engine config. Empty uses the defaults.
	EngineConfig string
}

// EngineFactory returns a fresh, uninitialized engine.
type EngineFactory func() engine.Engine

// BacktestService keeps strategy and backtest records in memory and runs
// backtests. Every run gets its own strategy instance and engine.
type BacktestService struct {
	registry   *strategy.Registry
	newEngine  EngineFactory
	logger     *logger.Logger
	validate   *validator.Validate
	clock      func() time.Time
	mu         sync.RWMutex
	strategies map[string]StrategyRecord
	backtests  map[string]BacktestRecord
}

type Option func(*BacktestService)

func WithEngineFactory(factory EngineFactory) Option {
	return func(s *BacktestService) {
		s.newEngine = factory
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *BacktestService) {
		s.clock = clock
	}
}

// NewBacktestService returns a service constructing strategies from registry.
// A nil logger discards logs.
func NewBacktestService(registry *strategy.Registry, l *logger.Logger, opts ...Option) *BacktestService {
	if l == nil {
		l = logger.NewNopLogger()
	}

	s := &BacktestService{
		registry:   registry,
		logger:     l,
		validate:   validator.New(),
		clock:      func() time.Time { return time.Now().UTC() },
		strategies: make(map[string]StrategyRecord),
		backtests:  make(map[string]BacktestRecord),
	}

	s.newEngine = func() engine.Engine {
		return enginev1.NewBacktestEngineV1(l)
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// StrategyTypes lists every known strategy type, implemented or not.
func (s *BacktestService) StrategyTypes() []strategy.Descriptor {
	return s.registry.List()
}

// CreateStrategy saves a strategy after checking that its type can be built
// with the given parameters.
func (s *BacktestService) CreateStrategy(input CreateStrategyInput) (StrategyRecord, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Type = strings.TrimSpace(input.Type)

	if err := s.validate.Struct(input); err != nil {
		return StrategyRecord{}, errors.Wrap(errors.ErrCodeMissingParameter, "invalid strategy", err)
	}

	if _, err := s.registry.Create(input.Type, input.Params); err != nil {
		return StrategyRecord{}, err
	}

	now := s.clock()
	record := StrategyRecord{
		ID:          uuid.New().String(),
		Name:        input.Name,
		Type:        input.Type,
		Params:      input.Params,
		Description: input.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.strategies[record.ID] = record
	s.mu.Unlock()

	s.logger.Info("Strategy created",
		zap.String("id", record.ID),
		zap.String("type", record.Type),
		zap.String("name", record.Name),
	)

	return record, nil
}

func (s *BacktestService) GetStrategy(id string) (StrategyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.strategies[id]
	if !ok {
		return StrategyRecord{}, errors.Newf(errors.ErrCodeRecordNotFound, "strategy %s not found", id)
	}

	return record, nil
}

// ListStrategies returns the saved strategies, oldest first.
func (s *BacktestService) ListStrategies() []StrategyRecord {
	s.mu.RLock()
	records := make([]StrategyRecord, 0, len(s.strategies))

	for _, record := range s.strategies {
		records = append(records, record)
	}
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}

		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	return records
}

// UpdateStrategy applies input to a saved strategy. New parameters are
// checked against the strategy type before they are stored.
func (s *BacktestService) UpdateStrategy(id string, input UpdateStrategyInput) (StrategyRecord, error) {
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		input.Name = &name
	}

	if err := s.validate.Struct(input); err != nil {
		return StrategyRecord{}, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid strategy update", err)
	}

	record, err := s.GetStrategy(id)
	if err != nil {
		return StrategyRecord{}, err
	}

	if input.Params != nil {
		if _, err := s.registry.Create(record.Type, *input.Params); err != nil {
			return StrategyRecord{}, err
		}

		record.Params = *input.Params
	}

	if input.Name != nil {
		record.Name = *input.Name
	}

	if input.Description != nil {
		record.Description = *input.Description
	}

	record.UpdatedAt = s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.strategies[id]; !ok {
		return StrategyRecord{}, errors.Newf(errors.ErrCodeRecordNotFound, "strategy %s not found", id)
	}

	s.strategies[id] = record

	return record, nil
}

func (s *BacktestService) DeleteStrategy(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.strategies[id]; !ok {
		return errors.Newf(errors.ErrCodeRecordNotFound, "strategy %s not found", id)
	}

	delete(s.strategies, id)

	return nil
}

// RunBacktest runs the saved strategy over the request bars and stores the
// outcome. A failed run is stored too and its error returned.
func (s *BacktestService) RunBacktest(ctx context.Context, request BacktestRequest) (BacktestRecord, error) {
	if err := s.validate.Struct(request); err != nil {
		return BacktestRecord{}, errors.Wrap(errors.ErrCodeMissingParameter, "invalid backtest request", err)
	}

	saved, err := s.GetStrategy(request.StrategyID)
	if err != nil {
		return BacktestRecord{}, err
	}

	record := BacktestRecord{
		ID:         uuid.New().String(),
		StrategyID: saved.ID,
		Symbol:     request.Symbol,
		CreatedAt:  s.clock(),
	}

	result, err := s.run(ctx, saved, request)
	if err != nil {
		record.Status = BacktestStatusFailed
		record.Error = err.Error()
		s.store(record)

		s.logger.Warn("Backtest failed",
			zap.String("id", record.ID),
			zap.String("strategy_id", saved.ID),
			zap.Error(err),
		)

		return record, err
	}

	record.Status = BacktestStatusCompleted
	record.Symbol = result.Symbol
	record.Result = &result
	s.store(record)

	return cloneRecord(record), nil
}

func (s *BacktestService) run(ctx context.Context, saved StrategyRecord, request BacktestRequest) (types.BacktestResult, error) {
	strat, err := s.registry.Create(saved.Type, saved.Params)
	if err != nil {
		return types.BacktestResult{}, err
	}

	backtestEngine := s.newEngine()
	defer backtestEngine.Close()

	if err := backtestEngine.Initialize(request.EngineConfig); err != nil {
		return types.BacktestResult{}, err
	}

	return backtestEngine.Run(ctx, strat, request.Bars, request.Symbol)
}

func (s *BacktestService) store(record BacktestRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.backtests[record.ID] = record
}

func (s *BacktestService) GetBacktest(id string) (BacktestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.backtests[id]
	if !ok {
		return BacktestRecord{}, errors.Newf(errors.ErrCodeBacktestNotFound, "backtest %s not found", id)
	}

	return cloneRecord(record), nil
}

// ListBacktests returns every stored run, oldest first.
func (s *BacktestService) ListBacktests() []BacktestRecord {
	s.mu.RLock()
	records := make([]BacktestRecord, 0, len(s.backtests))

	for _, record := range s.backtests {
		records = append(records, cloneRecord(record))
	}
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}

		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	return records
}

func cloneRecord(record BacktestRecord) BacktestRecord {
	if record.Result != nil {
		result := record.Result.Clone()
		record.Result = &result
	}

	return record
}
