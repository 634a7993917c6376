package scheduler

import (
	"errors"
	"testing"

	"github.com/jtallis/ballast/internal/database"
	testutil "github.com/jtallis/ballast/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPruner struct {
	pruned int64
	err    error
	calls  int
}

func (p *stubPruner) PruneExpired() (int64, error) {
	p.calls++
	return p.pruned, p.err
}

func TestMaintenanceJobChecksEveryDatabase(t *testing.T) {
	strategiesDB, cleanupStrategies := testutil.NewTestDB(t, "strategies")
	defer cleanupStrategies()
	ledgerDB, cleanupLedger := testutil.NewTestDB(t, "ledger")
	defer cleanupLedger()

	pruner := &stubPruner{pruned: 3}
	log := zerolog.New(nil).Level(zerolog.Disabled)

	job := NewMaintenanceJob(map[string]*database.DB{
		"strategies": strategiesDB,
		"ledger":     ledgerDB,
		"missing":    nil,
	}, pruner, log)

	assert.Equal(t, "maintenance", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, 1, pruner.calls)
}

func TestMaintenanceJobVacuumsCacheAfterPrune(t *testing.T) {
	cacheDB, cleanup := testutil.NewTestDB(t, "cache")
	defer cleanup()

	pruner := &stubPruner{pruned: 12}
	log := zerolog.New(nil).Level(zerolog.Disabled)

	job := NewMaintenanceJob(map[string]*database.DB{"cache": cacheDB}, pruner, log)

	require.NoError(t, job.Run())
	assert.Equal(t, 1, pruner.calls)
}

func TestMaintenanceJobReportsPruneFailure(t *testing.T) {
	ledgerDB, cleanup := testutil.NewTestDB(t, "ledger")
	defer cleanup()

	pruner := &stubPruner{err: errors.New("cache db locked")}
	log := zerolog.New(nil).Level(zerolog.Disabled)

	job := NewMaintenanceJob(map[string]*database.DB{"ledger": ledgerDB}, pruner, log)

	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 failures")
}

func TestMaintenanceJobRunsWithoutPruner(t *testing.T) {
	ledgerDB, cleanup := testutil.NewTestDB(t, "ledger")
	defer cleanup()

	log := zerolog.New(nil).Level(zerolog.Disabled)
	job := NewMaintenanceJob(map[string]*database.DB{"ledger": ledgerDB}, nil, log)

	assert.NoError(t, job.Run())
}
