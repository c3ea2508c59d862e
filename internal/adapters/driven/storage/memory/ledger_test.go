package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
)

func TestIngestionLedger_SaveGetUpdate(t *testing.T) {
	ctx := context.Background()
	ledger := NewIngestionLedger()
	now := time.Now()

	run := domain.IngestionRun{ID: "r1", DocumentID: "doc", State: domain.IngestionFetching, StartedAt: now}
	require.NoError(t, ledger.SaveRun(ctx, run))

	run.State = domain.IngestionDone
	run.Chunks = 3
	require.NoError(t, ledger.SaveRun(ctx, run))

	got, err := ledger.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.IngestionDone, got.State)
	assert.Equal(t, 3, got.Chunks)
}

func TestIngestionLedger_Errors(t *testing.T) {
	ctx := context.Background()
	ledger := NewIngestionLedger()

	assert.ErrorIs(t, ledger.SaveRun(ctx, domain.IngestionRun{}), domain.ErrInvalidInput)

	_, err := ledger.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = ledger.LatestRun(ctx, "doc-999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngestionLedger_LatestAndList(t *testing.T) {
	ctx := context.Background()
	ledger := NewIngestionLedger()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, ledger.SaveRun(ctx, domain.IngestionRun{ID: "a", DocumentID: "doc", StartedAt: base}))
	require.NoError(t, ledger.SaveRun(ctx, domain.IngestionRun{ID: "b", DocumentID: "doc", StartedAt: base.Add(time.Minute)}))
	require.NoError(t, ledger.SaveRun(ctx, domain.IngestionRun{ID: "c", DocumentID: "doc", StartedAt: base.Add(time.Minute)}))
	require.NoError(t, ledger.SaveRun(ctx, domain.IngestionRun{ID: "x", DocumentID: "other", StartedAt: base.Add(time.Hour)}))

	latest, err := ledger.LatestRun(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, "c", latest.ID)

	runs, err := ledger.ListRuns(ctx, "doc")
	require.NoError(t, err)
	ids := []string{runs[0].ID, runs[1].ID, runs[2].ID}
	assert.Equal(t, []string{"c", "b", "a"}, ids)
}
