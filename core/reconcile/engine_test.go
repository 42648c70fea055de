package reconcile_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"crm-sync/core/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newEngine(t *testing.T, remote reconcile.Remote, store reconcile.LocalStore, size int) *reconcile.Engine {
	t.Helper()
	mech, err := reconcile.NewMechanism(reconcile.MechanismDefault, remote)
	require.NoError(t, err)
	return reconcile.NewEngine(remote, store, contactMapping(t), mech, reconcile.EngineConfig{PartitionSize: size, Workers: 2}, nil, zap.NewNop())
}

func TestEngine_Defaults(t *testing.T) {
	remote, store := newStores()
	mech, err := reconcile.NewMechanism(reconcile.MechanismDefault, remote)
	require.NoError(t, err)

	e := reconcile.NewEngine(remote, store, contactMapping(t), mech, reconcile.EngineConfig{}, nil, nil)
	assert.Equal(t, reconcile.DefaultPartitionSize, e.Config().PartitionSize)
	assert.Equal(t, reconcile.DefaultWorkers, e.Config().Workers)
	assert.Equal(t, "Contact", e.Mapping().RecordType)
}

func TestEngine_AuditWindowMergesPartitionsInOrder(t *testing.T) {
	remote, store := newStores()
	var ids []string
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("C%03d", i)
		ids = append(ids, id)
		remote.Put("Contact", id, reconcile.Attributes{"FirstName": "Remote"})
		store.Put(localContact(id, reconcile.Attributes{"first_name": "Local"}))
	}
	remote.SetUpdated("Contact", ids...)

	e := newEngine(t, remote, store, 2)
	result, err := e.AuditWindow(context.Background(), windowStart, windowEnd)
	require.NoError(t, err)

	require.Len(t, result.Discrepancies, 5)
	for i, d := range result.Discrepancies {
		assert.Equal(t, ids[i], d.RemoteID)
		assert.Equal(t, reconcile.DiscrepancyMismatchingRecords, d.Type)
	}
	assert.Equal(t, windowStart, result.WindowStart)
	assert.True(t, result.Failure())
	assert.Equal(t, 3, remote.Calls("FetchMultiple"))
}

func TestEngine_AuditWindowFailure(t *testing.T) {
	remote, store := newStores()
	remote.FailOn("GetUpdatedIDs", errors.New("boom"))

	e := newEngine(t, remote, store, 10)
	result, err := e.AuditWindow(context.Background(), windowStart, windowEnd)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Failure())
	assert.ErrorIs(t, result.Err(), err)
}

func TestEngine_PollWindow(t *testing.T) {
	remote, store := newStores()
	for i := 0; i < 3; i++ {
		remote.Put("Contact", fmt.Sprintf("N%d", i), reconcile.Attributes{"FirstName": "New"})
	}
	remote.SetUpdated("Contact", "N0", "N1", "N2")
	remote.SetDeleted("Contact", "X")
	store.Put(localContact("X", nil))

	e := newEngine(t, remote, store, 1)
	opts := reconcile.DefaultPollOptions()
	opts.WithCounts = true
	res, err := e.PollWindow(context.Background(), windowStart, windowEnd, opts)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Created)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, int64(3), res.RemoteCount)
	assert.Equal(t, int64(3), res.LocalCount)
}

// A record edited on both sides is found by the audit, resolved by a pull and
// comes back clean on the next audit.
func TestEngine_AuditResolveReaudit(t *testing.T) {
	ctx := context.Background()
	remote, store := newStores()
	remote.Put("Contact", "A000", reconcile.Attributes{"FirstName": "Elizabeth", "SystemModstamp": inWindow})
	store.Put(localContact("A000", reconcile.Attributes{"first_name": "Alice"}))
	remote.SetUpdated("Contact", "A000")

	e := newEngine(t, remote, store, 10)
	result, err := e.AuditWindow(ctx, windowStart, windowEnd)
	require.NoError(t, err)
	require.Len(t, result.Discrepancies, 1)
	assert.Equal(t, []string{"FirstName"}, result.Discrepancies[0].DiffKeys)

	require.NoError(t, e.Resolver().Resolve(ctx, reconcile.Target{RemoteID: "A000"}, reconcile.ResolveRemotePull, reconcile.ResolveOptions{}))

	result, err = e.AuditWindow(ctx, windowStart, windowEnd)
	require.NoError(t, err)
	assert.Empty(t, result.Discrepancies)
	assert.True(t, result.Success())
}
