package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jtallis/ballast/internal/domain"
	"github.com/jtallis/ballast/internal/events"
	"github.com/jtallis/ballast/internal/modules/ranking"
	"github.com/jtallis/ballast/internal/modules/universe"
	testutil "github.com/jtallis/ballast/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trackingLedger counts concurrent pipeline entries per user. The sleep
// widens the window so an overlap cannot slip through unobserved.
type trackingLedger struct {
	mu       sync.Mutex
	inFlight map[string]int
	calls    int
	overlap  bool
}

func newTrackingLedger() *trackingLedger {
	return &trackingLedger{inFlight: make(map[string]int)}
}

func (l *trackingLedger) GetLastOrderSides(userID, strategyID string) (map[string]domain.OrderSide, error) {
	l.mu.Lock()
	l.calls++
	l.inFlight[userID]++
	if l.inFlight[userID] > 1 {
		l.overlap = true
	}
	l.mu.Unlock()

	time.Sleep(25 * time.Millisecond)

	l.mu.Lock()
	l.inFlight[userID]--
	l.mu.Unlock()

	return map[string]domain.OrderSide{}, nil
}

func (l *trackingLedger) RecordExecution(result domain.ExecutionResult) (string, error) {
	return "exec-test", nil
}

func newRunnerFixture(t *testing.T, ledger Ledger) *Runner {
	t.Helper()

	log := zerolog.New(nil).Level(zerolog.Disabled)

	broker := testutil.NewMockBrokerClient()
	broker.SetAccount(domain.Account{Equity: 100_000, BuyingPower: 200_000, Cash: 100_000})
	broker.SetClock(domain.Clock{IsOpen: true})

	orch := New(Config{
		Broker:   broker,
		Signals:  testutil.NewMockSignalProvider(),
		Universe: universe.NewResolver(emptyLister{}, log),
		Ranking:  ranking.NewEngine(testutil.NewMockBarProvider(), log),
		Ledger:   ledger,
		Events:   events.NewManager(events.NewBus(log), log),
	}, log)

	return NewRunner(orch, 4, log)
}

func testStrategy(id, userID string) domain.StrategyConfig {
	strategy := testutil.NewStrategyFixture()
	strategy.ID = id
	strategy.UserID = userID
	return strategy
}

func TestRunAllSerializesSameUserStrategies(t *testing.T) {
	ledger := newTrackingLedger()
	runner := newRunnerFixture(t, ledger)
	defer runner.Stop()

	strategies := []domain.StrategyConfig{
		testStrategy("strat-a1", "user-a"),
		testStrategy("strat-a2", "user-a"),
		testStrategy("strat-b1", "user-b"),
	}

	results := runner.RunAll(context.Background(), strategies, true)

	require.Len(t, results, 3)
	for i, result := range results {
		require.NotNil(t, result)
		assert.Equal(t, strategies[i].ID, result.StrategyID, "results keep input order")
		assert.True(t, result.Success)
		assert.True(t, result.DryRun)
	}

	assert.Equal(t, 3, ledger.calls)
	assert.False(t, ledger.overlap, "two strategies of the same user must never run concurrently")
}

func TestRunExecutesSingleStrategy(t *testing.T) {
	ledger := newTrackingLedger()
	runner := newRunnerFixture(t, ledger)
	defer runner.Stop()

	result := runner.Run(context.Background(), testStrategy("strat-1", "user-1"), true)

	require.NotNil(t, result)
	assert.Equal(t, "strat-1", result.StrategyID)
	assert.True(t, result.Success)
	assert.Equal(t, 1, ledger.calls)
}

func TestRunAllEmptyBatch(t *testing.T) {
	runner := newRunnerFixture(t, newTrackingLedger())
	defer runner.Stop()

	results := runner.RunAll(context.Background(), nil, true)
	assert.Empty(t, results)
}

func TestRunnerStats(t *testing.T) {
	ledger := newTrackingLedger()
	runner := newRunnerFixture(t, ledger)
	defer runner.Stop()

	runner.RunAll(context.Background(), []domain.StrategyConfig{
		testStrategy("strat-1", "user-1"),
		testStrategy("strat-2", "user-2"),
	}, true)

	stats := runner.Stats()
	assert.Contains(t, stats, "running_workers")
	assert.Contains(t, stats, "submitted_tasks")
	assert.Contains(t, stats, "successful_tasks")
	assert.GreaterOrEqual(t, stats["submitted_tasks"], uint64(2))
}
