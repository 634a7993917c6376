package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jtallis/ballast/internal/clients/alpaca"
	"github.com/jtallis/ballast/internal/domain"
	"github.com/jtallis/ballast/internal/events"
	"github.com/jtallis/ballast/internal/modules/ownership"
	"github.com/jtallis/ballast/internal/modules/ranking"
	"github.com/jtallis/ballast/internal/modules/universe"
	testutil "github.com/jtallis/ballast/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emptyLister resolves every predefined list id to nothing.
type emptyLister struct{}

func (emptyLister) Get(string) (*universe.PredefinedList, error) { return nil, nil }

type fixture struct {
	orchestrator *Orchestrator
	broker       *testutil.MockBrokerClient
	signals      *testutil.MockSignalProvider
	bars         *testutil.MockBarProvider
	ledger       *ownership.Repository
	events       *events.Manager
}

func newFixture(t *testing.T) (*fixture, func()) {
	t.Helper()

	db, cleanup := testutil.NewTestDB(t, "ledger")
	log := zerolog.New(nil).Level(zerolog.Disabled)

	broker := testutil.NewMockBrokerClient()
	broker.SetAccount(domain.Account{Equity: 100_000, BuyingPower: 200_000, Cash: 100_000})
	broker.SetClock(domain.Clock{IsOpen: true})

	signals := testutil.NewMockSignalProvider()
	bars := testutil.NewMockBarProvider()
	ledger := ownership.NewRepository(db.Conn(), log)
	manager := events.NewManager(events.NewBus(log), log)

	orch := New(Config{
		Broker:   broker,
		Signals:  signals,
		Universe: universe.NewResolver(emptyLister{}, log),
		Ranking:  ranking.NewEngine(bars, log),
		Ledger:   ledger,
		Events:   manager,
	}, log)

	return &fixture{
		orchestrator: orch,
		broker:       broker,
		signals:      signals,
		bars:         bars,
		ledger:       ledger,
		events:       manager,
	}, cleanup
}

// seedLedger records a past execution so the strategy has order history.
func seedLedger(t *testing.T, ledger *ownership.Repository, strategy domain.StrategyConfig, finishedAt time.Time, orders ...domain.OrderOutcome) {
	t.Helper()
	_, err := ledger.RecordExecution(domain.ExecutionResult{
		StrategyID:   strategy.ID,
		UserID:       strategy.UserID,
		State:        domain.RunStateDone,
		Success:      true,
		OrdersPlaced: len(orders),
		Orders:       orders,
		StartedAt:    finishedAt.Add(-time.Minute),
		FinishedAt:   finishedAt,
	})
	require.NoError(t, err)
}

func filledOrder(symbol string, side domain.OrderSide, notional float64) domain.OrderOutcome {
	return domain.OrderOutcome{
		Symbol:   symbol,
		Side:     side,
		Status:   domain.OrderStatusSuccess,
		Reason:   "opening order",
		Notional: notional,
	}
}

func TestExecuteBuysRankedUniverseEqually(t *testing.T) {
	fx, cleanup := newFixture(t)
	defer cleanup()

	strategy := testutil.NewStrategyFixture()

	result, err := fx.orchestrator.Execute(context.Background(), strategy, false)
	require.NoError(t, err)

	assert.Equal(t, domain.RunStateDone, result.State)
	assert.True(t, result.Success)
	assert.False(t, result.DryRun)
	assert.True(t, result.MarketOpen)
	assert.Equal(t, 5, result.OrdersPlaced)
	assert.Equal(t, 0, result.OrdersFailed)
	assert.InDelta(t, 90_000, result.TotalBought, 1e-6)
	assert.InDelta(t, 0, result.TotalSold, 1e-6)
	assert.InDelta(t, 90_000, result.NetChange, 1e-6)
	require.NotEmpty(t, result.ExecutionID)

	require.Len(t, result.Orders, 5)
	for _, outcome := range result.Orders {
		assert.Equal(t, domain.OrderStatusSuccess, outcome.Status)
		assert.Equal(t, domain.OrderSideBuy, outcome.Side)
		assert.InDelta(t, 18_000, outcome.Notional, 1e-6)
		assert.NotEmpty(t, outcome.BrokerOrderID)
		assert.Contains(t, outcome.Reason, "open long")
	}

	placed := fx.broker.PlacedOrders()
	require.Len(t, placed, 5)
	assert.Equal(t, domain.OrderTypeMarket, placed[0].Type)
	assert.Equal(t, domain.TimeInForceDay, placed[0].TimeInForce)
	assert.InDelta(t, 18_000, placed[0].Notional, 1e-6)

	owned, err := fx.ledger.GetOwnedSymbols(strategy.UserID, strategy.ID)
	require.NoError(t, err)
	assert.Len(t, owned, 5)
	assert.True(t, owned["AAPL"])

	executions, err := fx.ledger.RecentExecutions(strategy.ID, 10)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, result.ExecutionID, executions[0].ExecutionID)

	rows, err := fx.ledger.OrdersForExecution(result.ExecutionID)
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestExecuteDryRunLeavesNoTrace(t *testing.T) {
	fx, cleanup := newFixture(t)
	defer cleanup()

	strategy := testutil.NewStrategyFixture()

	result, err := fx.orchestrator.Execute(context.Background(), strategy, true)
	require.NoError(t, err)

	assert.Equal(t, domain.RunStateDone, result.State)
	assert.True(t, result.DryRun)
	assert.Equal(t, 5, result.OrdersPlaced)
	assert.InDelta(t, 90_000, result.TotalBought, 1e-6)
	assert.Empty(t, result.ExecutionID)

	require.Len(t, result.Orders, 5)
	for _, outcome := range result.Orders {
		assert.Equal(t, domain.OrderStatusSimulated, outcome.Status)
		assert.Empty(t, outcome.BrokerOrderID)
	}

	assert.Empty(t, fx.broker.PlacedOrders(), "dry run must not reach the broker")

	executions, err := fx.ledger.RecentExecutions(strategy.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, executions, "dry run must not reach the ledger")

	owned, err := fx.ledger.GetOwnedSymbols(strategy.UserID, strategy.ID)
	require.NoError(t, err)
	assert.Empty(t, owned)
}

func TestExecuteGateTurnsRunIntoExitsOnly(t *testing.T) {
	fx, cleanup := newFixture(t)
	defer cleanup()

	strategy := testutil.NewStrategyFixture()
	strategy.Params.RebalanceFraction = 0.25
	strategy.Params.SignalConditions = []domain.SignalCondition{
		{
			Type:      domain.ConditionTypeGate,
			Signal:    "fear_greed",
			Operator:  "<",
			Threshold: 20,
			Action:    domain.ActionSkipTrading,
		},
	}
	fx.signals.SetReading("fear_greed", 10)

	seedLedger(t, fx.ledger, strategy, time.Now().UTC().Add(-24*time.Hour),
		filledOrder("TSLA", domain.OrderSideBuy, 5_000))
	fx.broker.SetPositions([]domain.Position{testutil.NewPositionFixture("TSLA", 10, 500)})

	result, err := fx.orchestrator.Execute(context.Background(), strategy, false)
	require.NoError(t, err)

	assert.Equal(t, domain.RunStateDone, result.State)
	require.Len(t, result.Orders, 1, "gate must suppress every new position")

	exit := result.Orders[0]
	assert.Equal(t, "TSLA", exit.Symbol)
	assert.Equal(t, domain.OrderSideSell, exit.Side)
	assert.Equal(t, domain.OrderStatusSuccess, exit.Status)
	assert.InDelta(t, 1_250, exit.Notional, 1e-6)
	assert.Contains(t, exit.Reason, "exit long")

	owned, err := fx.ledger.GetOwnedSymbols(strategy.UserID, strategy.ID)
	require.NoError(t, err)
	assert.False(t, owned["TSLA"], "sold symbol is released")
}

func TestExecuteContinuesAfterOrderFailure(t *testing.T) {
	fx, cleanup := newFixture(t)
	defer cleanup()

	strategy := testutil.NewStrategyFixture()
	strategy.Universe.Symbols = []string{"AAPL", "MSFT"}

	fx.broker.SetPlaceOrderError("AAPL", errors.New("insufficient day trading buying power"))

	result, err := fx.orchestrator.Execute(context.Background(), strategy, false)
	require.NoError(t, err, "a single rejected order must not fail the run")

	assert.Equal(t, domain.RunStateDone, result.State)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.OrdersPlaced)
	assert.Equal(t, 1, result.OrdersFailed)

	require.Len(t, result.Orders, 2)
	assert.Equal(t, "AAPL", result.Orders[0].Symbol)
	assert.Equal(t, domain.OrderStatusFailed, result.Orders[0].Status)
	assert.Contains(t, result.Orders[0].Message, "insufficient")
	assert.Equal(t, "MSFT", result.Orders[1].Symbol)
	assert.Equal(t, domain.OrderStatusSuccess, result.Orders[1].Status)

	rows, err := fx.ledger.OrdersForExecution(result.ExecutionID)
	require.NoError(t, err)
	assert.Len(t, rows, 2, "failed orders are recorded alongside fills")
}

func TestExecuteRetriesNotFractionableWithWholeShares(t *testing.T) {
	fx, cleanup := newFixture(t)
	defer cleanup()

	strategy := testutil.NewStrategyFixture()
	strategy.Universe.Symbols = []string{"BRK"}

	fx.broker.SetNotionalOrderError("BRK", &alpaca.APIError{
		StatusCode: 422,
		Body:       []byte(`{"code":42210000,"message":"asset BRK is not fractionable"}`),
	})
	fx.broker.SetPrice("BRK", 700)

	result, err := fx.orchestrator.Execute(context.Background(), strategy, false)
	require.NoError(t, err)

	require.Len(t, result.Orders, 1)
	outcome := result.Orders[0]
	assert.Equal(t, domain.OrderStatusSuccess, outcome.Status)
	assert.InDelta(t, 128, outcome.Qty, 1e-9)
	assert.InDelta(t, 89_600, outcome.Notional, 1e-6)
	assert.NotEmpty(t, outcome.BrokerOrderID)

	placed := fx.broker.PlacedOrders()
	require.Len(t, placed, 1, "only the whole-share retry reaches the book")
	assert.InDelta(t, 128, placed[0].Qty, 1e-9)
	assert.Zero(t, placed[0].Notional)

	assert.InDelta(t, 89_600, result.TotalBought, 1e-6)
}

func TestExecuteOpensShortsWithWholeShares(t *testing.T) {
	fx, cleanup := newFixture(t)
	defer cleanup()

	strategy := testutil.NewStrategyFixture()
	strategy.Universe.Symbols = []string{"WIN", "LOSE"}
	strategy.Params.LongN = 1
	strategy.Params.ShortN = 1

	fx.bars.SetBars("WIN", testutil.NewBarSeries(90, 100, 1, 1_000_000))
	fx.bars.SetBars("LOSE", testutil.NewBarSeries(90, 100, -0.5, 1_000_000))
	fx.broker.SetPrice("LOSE", 50)

	result, err := fx.orchestrator.Execute(context.Background(), strategy, false)
	require.NoError(t, err)
	require.Len(t, result.Orders, 2)

	short := result.Orders[0]
	assert.Equal(t, "LOSE", short.Symbol)
	assert.Equal(t, domain.OrderSideSell, short.Side)
	assert.Equal(t, domain.OrderStatusSuccess, short.Status)
	assert.InDelta(t, 1_800, short.Qty, 1e-9)
	assert.InDelta(t, 90_000, short.Notional, 1e-6)
	assert.Contains(t, short.Reason, "open short")

	long := result.Orders[1]
	assert.Equal(t, "WIN", long.Symbol)
	assert.Equal(t, domain.OrderSideBuy, long.Side)
	assert.Zero(t, long.Qty, "long entries stay notional")
	assert.InDelta(t, 90_000, long.Notional, 1e-6)

	placed := fx.broker.PlacedOrders()
	require.Len(t, placed, 2)
	assert.InDelta(t, 1_800, placed[0].Qty, 1e-9, "shorts always go out in whole shares")
}

func TestExecuteSkipsShortWhenAnotherStrategyIsLong(t *testing.T) {
	fx, cleanup := newFixture(t)
	defer cleanup()

	strategy := testutil.NewStrategyFixture()
	strategy.Universe.Symbols = []string{"WIN", "LOSE"}
	strategy.Params.LongN = 1
	strategy.Params.ShortN = 1

	fx.bars.SetBars("WIN", testutil.NewBarSeries(90, 100, 1, 1_000_000))
	fx.bars.SetBars("LOSE", testutil.NewBarSeries(90, 100, -0.5, 1_000_000))
	fx.broker.SetPrice("LOSE", 50)

	// The account long in LOSE has no ledger history for this strategy,
	// so it belongs to someone else.
	fx.broker.SetPositions([]domain.Position{testutil.NewPositionFixture("LOSE", 100, 50)})

	result, err := fx.orchestrator.Execute(context.Background(), strategy, false)
	require.NoError(t, err)
	require.Len(t, result.Orders, 2)

	skipped := result.Orders[0]
	assert.Equal(t, "LOSE", skipped.Symbol)
	assert.Equal(t, domain.OrderStatusSkipped, skipped.Status)
	assert.Contains(t, skipped.Message, "another strategy holds a long position")

	assert.Equal(t, domain.OrderStatusSuccess, result.Orders[1].Status)
	assert.Equal(t, 1, result.OrdersPlaced)
	assert.Equal(t, 0, result.OrdersFailed, "a conflict is a skip, not a failure")

	rows, err := fx.ledger.OrdersForExecution(result.ExecutionID)
	require.NoError(t, err)
	require.Len(t, rows, 1, "skipped orders never reach the ledger")
	assert.Equal(t, "WIN", rows[0].Symbol)
}

func TestExecuteScalesBuysToBuyingPower(t *testing.T) {
	fx, cleanup := newFixture(t)
	defer cleanup()

	strategy := testutil.NewStrategyFixture()
	strategy.Universe.Symbols = []string{"AAPL", "MSFT"}

	fx.broker.SetAccount(domain.Account{Equity: 100_000, BuyingPower: 60_000, Cash: 60_000})

	result, err := fx.orchestrator.Execute(context.Background(), strategy, false)
	require.NoError(t, err, "insufficient buying power scales, it does not fail")

	require.Len(t, result.Orders, 2)
	for _, outcome := range result.Orders {
		assert.Equal(t, domain.OrderStatusSuccess, outcome.Status)
		assert.InDelta(t, 30_000, outcome.Notional, 1e-6)
		assert.Contains(t, outcome.Reason, "scaled to 66.7%")
	}
	assert.InDelta(t, 60_000, result.TotalBought, 1e-6)
}

func TestExecuteCoversAbandonedShort(t *testing.T) {
	fx, cleanup := newFixture(t)
	defer cleanup()

	strategy := testutil.NewStrategyFixture()

	// The strategy shorted SHRT in an earlier run; the symbol is no
	// longer in its universe.
	seedLedger(t, fx.ledger, strategy, time.Now().UTC().Add(-24*time.Hour),
		filledOrder("SHRT", domain.OrderSideSell, 9_000))
	fx.broker.SetPositions([]domain.Position{
		{Symbol: "SHRT", Qty: -100, MarketValue: -5_000, CurrentPrice: 50},
	})
	fx.broker.SetPrice("SHRT", 40)

	result, err := fx.orchestrator.Execute(context.Background(), strategy, false)
	require.NoError(t, err)
	require.Len(t, result.Orders, 6)

	cover := result.Orders[0]
	assert.Equal(t, "SHRT", cover.Symbol)
	assert.Equal(t, domain.OrderSideBuy, cover.Side)
	assert.Equal(t, domain.OrderStatusSuccess, cover.Status)
	assert.Contains(t, cover.Reason, "cover short (no longer targeted)")
	assert.InDelta(t, 100, cover.Qty, 1e-9, "cover is capped at the size of the short")
	assert.InDelta(t, 4_000, cover.Notional, 1e-6)

	assert.InDelta(t, 94_000, result.TotalBought, 1e-6)
}

func TestExecuteFailsWhenBrokerUnreachable(t *testing.T) {
	fx, cleanup := newFixture(t)
	defer cleanup()

	strategy := testutil.NewStrategyFixture()
	fx.broker.SetError(errors.New("connection refused"))

	result, err := fx.orchestrator.Execute(context.Background(), strategy, false)
	require.Error(t, err)
	require.NotNil(t, result)

	assert.Equal(t, domain.RunStateFailed, result.State)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "connection refused")
	assert.Empty(t, result.ExecutionID)

	executions, err := fx.ledger.RecentExecutions(strategy.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, executions, "failed runs are not recorded")
}

func TestExecuteRejectsInvalidStrategy(t *testing.T) {
	fx, cleanup := newFixture(t)
	defer cleanup()

	strategy := testutil.NewStrategyFixture()
	strategy.Params.LookbackDays = 0

	result, err := fx.orchestrator.Execute(context.Background(), strategy, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid strategy")
	assert.Equal(t, domain.RunStateFailed, result.State)
	assert.Empty(t, fx.broker.PlacedOrders())
}

func TestExecuteEmptyUniverseIsNoOp(t *testing.T) {
	fx, cleanup := newFixture(t)
	defer cleanup()

	strategy := testutil.NewStrategyFixture()
	strategy.Universe = domain.UniverseConfig{
		Type:   domain.UniverseTypePredefined,
		ListID: "sp500",
	}

	result, err := fx.orchestrator.Execute(context.Background(), strategy, false)
	require.NoError(t, err, "an unknown list resolves to an empty universe, not an error")

	assert.Equal(t, domain.RunStateDone, result.State)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.OrdersPlaced)
	assert.Empty(t, result.Orders)
	assert.NotEmpty(t, result.ExecutionID)
	assert.Empty(t, fx.broker.PlacedOrders())

	executions, err := fx.ledger.RecentExecutions(strategy.ID, 10)
	require.NoError(t, err)
	assert.Len(t, executions, 1, "no-op runs still leave an audit row")
}

func TestExecuteDryRunOnlyDowngradesLiveRuns(t *testing.T) {
	fx, cleanup := newFixture(t)
	defer cleanup()

	log := zerolog.New(nil).Level(zerolog.Disabled)
	orch := New(Config{
		Broker:     fx.broker,
		Signals:    fx.signals,
		Universe:   universe.NewResolver(emptyLister{}, log),
		Ranking:    ranking.NewEngine(fx.bars, log),
		Ledger:     fx.ledger,
		Events:     fx.events,
		DryRunOnly: true,
	}, log)

	result, err := orch.Execute(context.Background(), testutil.NewStrategyFixture(), false)
	require.NoError(t, err)

	assert.True(t, result.DryRun, "live request is downgraded")
	assert.Empty(t, result.ExecutionID)
	assert.Empty(t, fx.broker.PlacedOrders())
}

func TestExecuteEmitsLifecycleEvents(t *testing.T) {
	fx, cleanup := newFixture(t)
	defer cleanup()

	counts := make(map[events.EventType]int)
	var completed *events.Event
	fx.events.Bus().Subscribe(events.RunStarted, func(e *events.Event) { counts[e.Type]++ })
	fx.events.Bus().Subscribe(events.OrderPlaced, func(e *events.Event) { counts[e.Type]++ })
	fx.events.Bus().Subscribe(events.RunCompleted, func(e *events.Event) {
		counts[e.Type]++
		completed = e
	})

	_, err := fx.orchestrator.Execute(context.Background(), testutil.NewStrategyFixture(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, counts[events.RunStarted])
	assert.Equal(t, 5, counts[events.OrderPlaced])
	assert.Equal(t, 1, counts[events.RunCompleted])

	require.NotNil(t, completed)
	assert.Equal(t, true, completed.Data["success"])
	assert.Equal(t, float64(5), completed.Data["orders_placed"])
}
