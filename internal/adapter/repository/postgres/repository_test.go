package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jonathanmorav/unified-dashboard/internal/adapter/repository/postgres"
	"github.com/jonathanmorav/unified-dashboard/internal/domain/event"
	journeydomain "github.com/jonathanmorav/unified-dashboard/internal/domain/journey"
	recondomain "github.com/jonathanmorav/unified-dashboard/internal/domain/reconciliation"
	"github.com/jonathanmorav/unified-dashboard/internal/domain/transfer"
	"github.com/jonathanmorav/unified-dashboard/pkg/testhelper"
)

func TestRepositories_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// 1. Setup Container
	pg, err := testhelper.SetupPostgres(ctx)
	require.NoError(t, err)
	defer func() {
		if err := pg.Teardown(ctx); err != nil {
			t.Logf("failed to teardown container: %v", err)
		}
	}()

	// 2. Connect to DB
	db, err := gorm.Open(pgdriver.Open(pg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// 3. Migrate Schema
	err = db.AutoMigrate(
		&postgres.EventModel{},
		&postgres.TransferModel{},
		&postgres.CustomerModel{},
		&postgres.JourneyInstanceModel{},
		&postgres.JourneyStepModel{},
		&postgres.ReconciliationRunModel{},
		&postgres.DiscrepancyModel{},
	)
	require.NoError(t, err)

	events := postgres.NewEventRepository(db)
	transfers := postgres.NewTransferRepository(db)
	journeys := postgres.NewJourneyRepository(db)
	recon := postgres.NewReconciliationRepository(db)

	t.Run("event insert rejects duplicate provider id", func(t *testing.T) {
		evt := event.New("evt-dup", "transfer_created", "transfer", "T1", []byte(`{"id":"evt-dup"}`))
		evt.ID = 1001
		require.NoError(t, events.Insert(ctx, evt))

		again := event.New("evt-dup", "transfer_created", "transfer", "T1", []byte(`{"id":"evt-dup"}`))
		again.ID = 1002
		assert.ErrorIs(t, events.Insert(ctx, again), event.ErrDuplicate)

		stored, err := events.FindByDwollaID(ctx, "evt-dup")
		require.NoError(t, err)
		assert.Equal(t, int64(1001), stored.ID)
	})

	t.Run("claim retry batch takes only due events", func(t *testing.T) {
		past := time.Now().UTC().Add(-time.Minute)
		future := time.Now().UTC().Add(time.Hour)

		due := event.New("evt-due", "transfer_created", "transfer", "T2", []byte(`{}`))
		due.ID = 2001
		due.State = event.StateFailed
		due.Attempts = 1
		due.NextAttemptAt = &past
		require.NoError(t, events.Insert(ctx, due))

		notDue := event.New("evt-not-due", "transfer_created", "transfer", "T3", []byte(`{}`))
		notDue.ID = 2002
		notDue.State = event.StateFailed
		notDue.Attempts = 1
		notDue.NextAttemptAt = &future
		require.NoError(t, events.Insert(ctx, notDue))

		exhausted := event.New("evt-exhausted", "transfer_created", "transfer", "T4", []byte(`{}`))
		exhausted.ID = 2003
		exhausted.State = event.StateQuarantined
		exhausted.Attempts = 5
		require.NoError(t, events.Insert(ctx, exhausted))

		claimed, err := events.ClaimRetryBatch(ctx, 10, 5)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, "evt-due", claimed[0].DwollaEventID)
		assert.Equal(t, event.StateProcessing, claimed[0].State)

		// A second claim finds nothing left.
		claimed, err = events.ClaimRetryBatch(ctx, 10, 5)
		require.NoError(t, err)
		assert.Empty(t, claimed)
	})

	t.Run("claim recovers stranded rows after their grace window", func(t *testing.T) {
		// Freshly received: the inline dispatch still owns it.
		fresh := event.New("evt-fresh", "transfer_created", "transfer", "T5", []byte(`{}`))
		fresh.ID = 2101
		require.NoError(t, events.Insert(ctx, fresh))

		// Received long ago with no state change: the inline dispatch died.
		stranded := event.New("evt-stranded", "transfer_created", "transfer", "T6", []byte(`{}`))
		stranded.ID = 2102
		stranded.ReceivedAt = time.Now().UTC().Add(-2 * event.ReceivedGracePeriod)
		require.NoError(t, events.Insert(ctx, stranded))

		// Claimed by a worker that never finished.
		abandoned := event.New("evt-abandoned", "transfer_created", "transfer", "T7", []byte(`{}`))
		abandoned.ID = 2103
		abandoned.State = event.StateProcessing
		abandoned.ReceivedAt = time.Now().UTC().Add(-2 * event.ProcessingStaleAfter)
		abandoned.UpdatedAt = time.Now().UTC().Add(-2 * event.ProcessingStaleAfter)
		require.NoError(t, events.Insert(ctx, abandoned))

		claimed, err := events.ClaimRetryBatch(ctx, 10, 5)
		require.NoError(t, err)

		ids := make([]string, 0, len(claimed))
		for _, evt := range claimed {
			ids = append(ids, evt.DwollaEventID)
		}
		assert.ElementsMatch(t, []string{"evt-stranded", "evt-abandoned"}, ids)

		stored, err := events.FindByDwollaID(ctx, "evt-fresh")
		require.NoError(t, err)
		assert.Equal(t, event.StateReceived, stored.State)
	})

	t.Run("journey find or create converges on one instance", func(t *testing.T) {
		candidate := &journeydomain.Instance{
			ID:             3001,
			DefinitionName: "Transfer Settlement",
			ResourceType:   "transfer",
			ResourceID:     "T-journey",
			Status:         journeydomain.StatusActive,
			StartedAt:      time.Now().UTC(),
			LastEventAt:    time.Now().UTC(),
		}
		first, created, err := journeys.FindOrCreate(ctx, candidate)
		require.NoError(t, err)
		assert.True(t, created)

		rival := &journeydomain.Instance{
			ID:             3002,
			DefinitionName: "Transfer Settlement",
			ResourceType:   "transfer",
			ResourceID:     "T-journey",
			Status:         journeydomain.StatusActive,
			StartedAt:      time.Now().UTC(),
			LastEventAt:    time.Now().UTC(),
		}
		second, created, err := journeys.FindOrCreate(ctx, rival)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("transfer list created between is window inclusive", func(t *testing.T) {
		now := time.Now().UTC()

		inside := transfer.New("T-inside")
		inside.ID = 4001
		inside.CreatedAt = now.Add(-time.Hour)
		require.NoError(t, transfers.Save(ctx, inside))

		outside := transfer.New("T-outside")
		outside.ID = 4002
		outside.CreatedAt = now.Add(-48 * time.Hour)
		require.NoError(t, transfers.Save(ctx, outside))

		listed, err := transfers.ListCreatedBetween(ctx, now.Add(-2*time.Hour), now)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, "T-inside", listed[0].DwollaTransferID)
	})

	t.Run("open discrepancy lookup ignores resolved rows", func(t *testing.T) {
		run := recondomain.NewRun("01TESTRUN0000000000000001", "transfer", time.Now().Add(-time.Hour), time.Now())
		require.NoError(t, recon.CreateRun(ctx, run))

		d := recondomain.NewDiscrepancy(5001, run.ID, "transfer", "T-disc", recondomain.CheckStatusMatch, "mismatch")
		require.NoError(t, recon.SaveDiscrepancy(ctx, d))

		open, err := recon.FindOpenDiscrepancy(ctx, "transfer", "T-disc", recondomain.CheckStatusMatch)
		require.NoError(t, err)
		require.NotNil(t, open)
		assert.Equal(t, d.ID, open.ID)

		open.Resolve(recondomain.Resolution{Type: "manual_review"})
		require.NoError(t, recon.SaveDiscrepancy(ctx, open))

		open, err = recon.FindOpenDiscrepancy(ctx, "transfer", "T-disc", recondomain.CheckStatusMatch)
		require.NoError(t, err)
		assert.Nil(t, open)
	})

	t.Run("run round trip and not found", func(t *testing.T) {
		run := recondomain.NewRun("01TESTRUN0000000000000002", "transfer", time.Now().Add(-time.Hour), time.Now())
		require.NoError(t, recon.CreateRun(ctx, run))

		run.TotalChecks = 9
		run.Close(recondomain.RunCompleted, "")
		require.NoError(t, recon.SaveRun(ctx, run))

		stored, err := recon.FindRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, recondomain.RunCompleted, stored.Status)
		assert.Equal(t, 9, stored.TotalChecks)

		_, err = recon.FindRun(ctx, "01NOSUCHRUN0000000000000000")
		assert.ErrorIs(t, err, recondomain.ErrRunNotFound)
	})
}
