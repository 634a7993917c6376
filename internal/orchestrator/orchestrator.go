// Package orchestrator drives a strategy through the full rebalancing
// pipeline: fetch context, rank, compute targets, generate and validate
// orders, place them at the broker, record the run in the ledger.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/jtallis/ballast/internal/domain"
	"github.com/jtallis/ballast/internal/events"
	"github.com/jtallis/ballast/internal/modules/ownership"
	"github.com/jtallis/ballast/internal/modules/ranking"
	"github.com/jtallis/ballast/internal/modules/rebalance"
	"github.com/jtallis/ballast/internal/modules/targets"
	"github.com/jtallis/ballast/internal/modules/universe"
	"github.com/jtallis/ballast/internal/modules/validation"
	"github.com/rs/zerolog"
)

// Ledger is the slice of the ownership repository the orchestrator needs.
type Ledger interface {
	GetLastOrderSides(userID, strategyID string) (map[string]domain.OrderSide, error)
	RecordExecution(result domain.ExecutionResult) (string, error)
}

// Compile-time check that the ownership repository satisfies Ledger.
var _ Ledger = (*ownership.Repository)(nil)

// Orchestrator executes strategies. The pipeline stages it calls are pure;
// all side effects (broker calls, ledger writes, events) happen here.
type Orchestrator struct {
	broker     domain.BrokerClient
	signals    domain.SignalProvider
	universe   *universe.Resolver
	ranking    *ranking.Engine
	targets    *targets.Calculator
	rebalance  *rebalance.Generator
	validator  *validation.Validator
	ledger     Ledger
	events     *events.Manager
	dryRunOnly bool
	log        zerolog.Logger
}

// Config carries the orchestrator's collaborators.
type Config struct {
	Broker     domain.BrokerClient
	Signals    domain.SignalProvider
	Universe   *universe.Resolver
	Ranking    *ranking.Engine
	Ledger     Ledger
	Events     *events.Manager
	DryRunOnly bool
}

// New creates an orchestrator. The pure pipeline stages are constructed
// here since they carry no state beyond a logger.
func New(cfg Config, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		broker:     cfg.Broker,
		signals:    cfg.Signals,
		universe:   cfg.Universe,
		ranking:    cfg.Ranking,
		targets:    targets.NewCalculator(log),
		rebalance:  rebalance.NewGenerator(log),
		validator:  validation.NewValidator(log),
		ledger:     cfg.Ledger,
		events:     cfg.Events,
		dryRunOnly: cfg.DryRunOnly,
		log:        log.With().Str("service", "orchestrator").Logger(),
	}
}

// Execute runs one strategy end to end and returns the run summary. The
// returned error is non-nil only for whole-run failures; per-order
// placement failures are captured in the result's order outcomes.
func (o *Orchestrator) Execute(ctx context.Context, strategy domain.StrategyConfig, dryRun bool) (*domain.ExecutionResult, error) {
	if o.dryRunOnly && !dryRun {
		o.log.Info().Str("strategy_id", strategy.ID).Msg("Dry-run-only mode is on, downgrading live run")
		dryRun = true
	}

	result := &domain.ExecutionResult{
		StrategyID: strategy.ID,
		UserID:     strategy.UserID,
		State:      domain.RunStateIdle,
		DryRun:     dryRun,
		StartedAt:  time.Now().UTC(),
	}

	o.log.Info().
		Str("strategy_id", strategy.ID).
		Str("name", strategy.Name).
		Bool("dry_run", dryRun).
		Msg("Starting strategy run")

	if o.events != nil {
		o.events.EmitTyped(events.RunStarted, "orchestrator", &events.RunStartedData{
			StrategyID: strategy.ID,
			UserID:     strategy.UserID,
			DryRun:     dryRun,
		})
	}

	err := o.run(ctx, strategy, result, dryRun)
	result.FinishedAt = time.Now().UTC()

	if err != nil {
		result.State = domain.RunStateFailed
		result.Error = err.Error()
		result.Success = false
		o.log.Error().Err(err).Str("strategy_id", strategy.ID).Msg("Strategy run failed")
	} else {
		result.State = domain.RunStateDone
		result.Success = true
		o.log.Info().
			Str("strategy_id", strategy.ID).
			Int("orders_placed", result.OrdersPlaced).
			Int("orders_failed", result.OrdersFailed).
			Float64("total_bought", result.TotalBought).
			Float64("total_sold", result.TotalSold).
			Msg("Strategy run completed")
	}

	if o.events != nil {
		o.events.EmitTyped(events.RunCompleted, "orchestrator", &events.RunCompletedData{
			ExecutionID:  result.ExecutionID,
			StrategyID:   strategy.ID,
			UserID:       strategy.UserID,
			Success:      result.Success,
			State:        string(result.State),
			OrdersPlaced: result.OrdersPlaced,
			OrdersFailed: result.OrdersFailed,
			TotalBought:  result.TotalBought,
			TotalSold:    result.TotalSold,
			Error:        result.Error,
		})
	}

	return result, err
}

// run walks the state machine. Any error returned here fails the whole
// run; the caller stamps the terminal state.
func (o *Orchestrator) run(ctx context.Context, strategy domain.StrategyConfig, result *domain.ExecutionResult, dryRun bool) error {
	if err := strategy.Validate(); err != nil {
		return fmt.Errorf("invalid strategy: %w", err)
	}

	// FetchingContext: universe, signal readings and the venue clock.
	o.transition(result, domain.RunStateFetchingContext)

	symbols, err := o.universe.Resolve(strategy.Universe)
	if err != nil {
		return fmt.Errorf("failed to resolve universe: %w", err)
	}

	readings := o.fetchReadings(ctx, strategy.Params.SignalConditions)

	clock, err := o.broker.GetClock(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch market clock: %w", err)
	}
	result.MarketOpen = clock.IsOpen

	// Ranking. An empty universe ranks to nothing and the run becomes a
	// no-op; held positions still get exit orders below.
	o.transition(result, domain.RunStateRanking)

	ranked, err := o.ranking.Rank(ctx, symbols, strategy.Params)
	if err != nil {
		return fmt.Errorf("failed to rank universe: %w", err)
	}

	// Targeting: account snapshot, ledger ownership, then targets.
	o.transition(result, domain.RunStateTargeting)

	account, err := o.broker.GetAccount(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch account: %w", err)
	}
	positions, err := o.broker.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch positions: %w", err)
	}

	allocatedEquity := account.Equity * strategy.AllocationPct / 100

	lastSides, err := o.ledger.GetLastOrderSides(strategy.UserID, strategy.ID)
	if err != nil {
		return fmt.Errorf("failed to load order history: %w", err)
	}
	owned := ownedSymbols(lastSides)
	ownedPositions := filterOwned(positions, lastSides)

	targetList := o.targets.Calculate(ranked, strategy.Params, allocatedEquity, ownedPositions, readings)

	// GeneratingOrders
	o.transition(result, domain.RunStateGeneratingOrders)

	orders := o.rebalance.Generate(targetList, ownedPositions, strategy.Params)

	// Validating
	o.transition(result, domain.RunStateValidating)

	validated, note := o.validator.Validate(orders, account.BuyingPower)
	if note != "" {
		o.log.Info().Str("strategy_id", strategy.ID).Msg(note)
	}

	// Placing
	o.transition(result, domain.RunStatePlacing)

	result.Orders = o.placeOrders(ctx, strategy, validated, positions, ownedPositions, owned, dryRun)
	tally(result)

	// Recording. Dry runs leave no trace in the ledger.
	o.transition(result, domain.RunStateRecording)

	if dryRun {
		o.log.Info().Str("strategy_id", strategy.ID).Msg("Dry run, skipping ledger recording")
		return nil
	}

	// The ledger row carries the terminal summary, not the transient
	// recording state.
	summary := *result
	summary.State = domain.RunStateDone
	summary.Success = true
	summary.FinishedAt = time.Now().UTC()

	executionID, err := o.ledger.RecordExecution(summary)
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}
	result.ExecutionID = executionID

	return nil
}

// fetchReadings fetches one reading per distinct signal. Fetch errors are
// swallowed: the condition is left without a reading and the target
// calculator ignores it.
func (o *Orchestrator) fetchReadings(ctx context.Context, conditions []domain.SignalCondition) map[string]float64 {
	readings := make(map[string]float64, len(conditions))
	for _, cond := range conditions {
		if _, done := readings[cond.Signal]; done {
			continue
		}
		reading, err := o.signals.Fetch(ctx, cond)
		if err != nil {
			o.log.Warn().Err(err).Str("signal", cond.Signal).Msg("Failed to fetch signal, condition will be ignored")
			continue
		}
		readings[cond.Signal] = reading.Value
	}
	return readings
}

// ownedSymbols derives the owned set from order history: a symbol is owned
// while the strategy's most recent successful order in it was a buy.
func ownedSymbols(lastSides map[string]domain.OrderSide) map[string]bool {
	owned := make(map[string]bool, len(lastSides))
	for symbol, side := range lastSides {
		if side == domain.OrderSideBuy {
			owned[symbol] = true
		}
	}
	return owned
}

// filterOwned keeps only positions this strategy opened, per the ledger.
// Longs are owned while the last successful order was a buy. Shorts open
// with a sell and may end on a partial cover buy, so any successful order
// history keeps a short position visible.
func filterOwned(positions []domain.Position, lastSides map[string]domain.OrderSide) []domain.Position {
	var mine []domain.Position
	for _, pos := range positions {
		side, traded := lastSides[domain.NormalizeSymbol(pos.Symbol)]
		if pos.Qty < 0 {
			if traded {
				mine = append(mine, pos)
			}
			continue
		}
		if side == domain.OrderSideBuy {
			mine = append(mine, pos)
		}
	}
	return mine
}

// tally folds order outcomes into the run counters. Skipped orders count
// toward neither total.
func tally(result *domain.ExecutionResult) {
	for _, outcome := range result.Orders {
		switch outcome.Status {
		case domain.OrderStatusSuccess, domain.OrderStatusSimulated:
			result.OrdersPlaced++
			if outcome.Side == domain.OrderSideBuy {
				result.TotalBought += outcome.Notional
			} else {
				result.TotalSold += outcome.Notional
			}
		case domain.OrderStatusFailed:
			result.OrdersFailed++
		}
	}
	result.NetChange = result.TotalBought - result.TotalSold
}

func (o *Orchestrator) transition(result *domain.ExecutionResult, state domain.RunState) {
	result.State = state
	o.log.Debug().
		Str("strategy_id", result.StrategyID).
		Str("state", string(state)).
		Msg("Run state changed")
}
