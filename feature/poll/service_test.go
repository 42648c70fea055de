package poll

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"crm-sync/core/database"
	"crm-sync/core/reconcile"
	"crm-sync/core/reconcile/memory"
	"crm-sync/core/registry"
	"crm-sync/feature/records"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type engineMap map[string]*reconcile.Engine

func (m engineMap) Engine(recordType string) (*reconcile.Engine, error) {
	e, ok := m[recordType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrUnknownType, recordType)
	}
	return e, nil
}

func (m engineMap) PollOptions(string) reconcile.PollOptions {
	return reconcile.DefaultPollOptions()
}

type fixture struct {
	service     *Service
	remote      *memory.Remote
	store       *memory.Store
	checkpoints *records.CheckpointStore
	history     *records.History
}

func setup(t *testing.T) fixture {
	t.Helper()
	m, err := reconcile.NewMapping("Lead", map[string]string{"Email": "email"}, reconcile.MappingOptions{})
	require.NoError(t, err)

	remote := memory.NewRemote()
	store := memory.NewStore()
	mech, err := reconcile.NewMechanism(reconcile.MechanismDefault, remote)
	require.NoError(t, err)
	engines := engineMap{"Lead": reconcile.NewEngine(remote, store, m, mech, reconcile.EngineConfig{}, nil, nil)}

	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, records.Migrate(db))

	cps := records.NewCheckpointStore(db)
	history := records.NewHistory(db)
	svc := NewService(engines, cps, history, time.Hour, zap.NewNop())
	svc.now = func() time.Time { return now }
	return fixture{service: svc, remote: remote, store: store, checkpoints: cps, history: history}
}

func TestPollNext_AdvancesCheckpoint(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.remote.Put("Lead", "L1", reconcile.Attributes{"Email": "a@example.com"})
	f.remote.SetUpdated("Lead", "L1")

	res, err := f.service.PollNext(ctx, "Lead")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Len(t, f.store.All(), 1)

	cp, ok, err := f.checkpoints.Get(ctx, "Lead", records.KindPoll)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, cp.Equal(now))

	runs, err := f.history.List(ctx, records.KindPoll, "Lead", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, records.RunSuccess, runs[0].Status)
	assert.Equal(t, 1, runs[0].Created)
	assert.True(t, runs[0].WindowStart.Equal(now.Add(-time.Hour)))
}

func TestPollNext_KeepsCheckpointOnFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.checkpoints.Advance(ctx, "Lead", records.KindPoll, now.Add(-10*time.Minute)))
	f.remote.FailOn("GetUpdatedIDs", errors.New("remote unavailable"))

	_, err := f.service.PollNext(ctx, "Lead")
	assert.ErrorContains(t, err, "remote unavailable")

	cp, _, err := f.checkpoints.Get(ctx, "Lead", records.KindPoll)
	require.NoError(t, err)
	assert.True(t, cp.Equal(now.Add(-10*time.Minute)))

	runs, err := f.history.List(ctx, records.KindPoll, "Lead", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, records.RunFailure, runs[0].Status)
}

func TestPollNext_EmptyWindow(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.checkpoints.Advance(context.Background(), "Lead", records.KindPoll, now))

	_, err := f.service.PollNext(context.Background(), "Lead")
	assert.ErrorIs(t, err, ErrEmptyWindow)
}

func TestPoll_UnknownType(t *testing.T) {
	f := setup(t)
	_, err := f.service.Poll(context.Background(), "Account", now.Add(-time.Hour), now, reconcile.DefaultPollOptions())
	assert.ErrorIs(t, err, registry.ErrUnknownType)
}
