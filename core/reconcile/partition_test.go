package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"crm-sync/core/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPartitioner(t *testing.T, remote reconcile.Remote, store reconcile.LocalStore) *reconcile.Partitioner {
	t.Helper()
	mech, err := reconcile.NewMechanism(reconcile.MechanismDefault, remote)
	require.NoError(t, err)
	return reconcile.NewPartitioner(mech, store)
}

func TestPartition_SlicesTaggedIDs(t *testing.T) {
	remote, store := newStores()
	remote.SetUpdated("Contact", "A", "B")
	remote.SetDeleted("Contact", "D")
	p := newPartitioner(t, remote, store)

	parts, err := p.Partition(context.Background(), "Contact", windowStart, windowEnd, 2)
	require.NoError(t, err)
	require.Len(t, parts, 2)

	assert.Equal(t, []string{"A", "B"}, parts[0].UpdatedIDs)
	assert.Empty(t, parts[0].DeletedIDs)
	assert.Empty(t, parts[1].UpdatedIDs)
	assert.Equal(t, []string{"D"}, parts[1].DeletedIDs)

	for _, part := range parts {
		assert.Equal(t, "Contact", part.RecordType)
		assert.Equal(t, windowStart, part.WindowStart)
		assert.Equal(t, windowEnd, part.WindowEnd)
		assert.LessOrEqual(t, part.Size(), 2)
	}
}

func TestPartition_EmptyWindowYieldsOneEmptyPartition(t *testing.T) {
	remote, store := newStores()
	p := newPartitioner(t, remote, store)

	parts, err := p.Partition(context.Background(), "Contact", windowStart, windowEnd, 10)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.True(t, parts[0].Empty())
	assert.Equal(t, "Contact", parts[0].RecordType)
}

func TestPartition_UnionsLocalChangesAndUnpersisted(t *testing.T) {
	remote, store := newStores()
	remote.SetUpdated("Contact", "A", "B")
	p := newPartitioner(t, remote, store)

	changed := localContact("B", nil)
	changed.UpdatedAt = inWindow
	store.Put(changed)

	localOnly := localContact("C", nil)
	localOnly.UpdatedAt = inWindow
	store.Put(localOnly)

	outside := localContact("Z", nil)
	outside.UpdatedAt = windowEnd.Add(time.Hour)
	store.Put(outside)

	unsynced := localContact("", reconcile.Attributes{"first_name": "New"})
	unsynced.UpdatedAt = inWindow
	unsyncedID := store.Put(unsynced)

	parts, err := p.Partition(context.Background(), "Contact", windowStart, windowEnd, 0)
	require.NoError(t, err)
	require.Len(t, parts, 1)

	assert.Equal(t, []string{"A", "B", "C"}, parts[0].UpdatedIDs)
	assert.Equal(t, []int64{unsyncedID}, parts[0].UnpersistedIDs)
}

func TestPartition_PreservesCategoryOrderAcrossSlices(t *testing.T) {
	remote, store := newStores()
	remote.SetUpdated("Contact", "U1", "U2", "U3")
	remote.SetDeleted("Contact", "D1", "D2")
	p := newPartitioner(t, remote, store)
	unsynced := localContact("", nil)
	unsynced.UpdatedAt = inWindow
	id := store.Put(unsynced)

	parts, err := p.Partition(context.Background(), "Contact", windowStart, windowEnd, 4)
	require.NoError(t, err)
	require.Len(t, parts, 2)

	assert.Equal(t, []string{"U1", "U2", "U3"}, parts[0].UpdatedIDs)
	assert.Equal(t, []string{"D1"}, parts[0].DeletedIDs)
	assert.Equal(t, []string{"D2"}, parts[1].DeletedIDs)
	assert.Equal(t, []int64{id}, parts[1].UnpersistedIDs)
}

func TestPartition_Unbounded(t *testing.T) {
	remote, store := newStores()
	remote.SetUpdated("Contact", "A", "B", "C")
	remote.SetDeleted("Contact", "D")
	p := newPartitioner(t, remote, store)

	parts, err := p.Partition(context.Background(), "Contact", windowStart, windowEnd, reconcile.Unbounded)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, 4, parts[0].Size())
}

func TestPartition_RemoteFailurePropagates(t *testing.T) {
	remote, store := newStores()
	boom := errors.New("connection reset")
	remote.FailOn("GetDeletedIDs", boom)

	mech, err := reconcile.NewMechanism("", remote)
	require.NoError(t, err)

	_, err = reconcile.NewPartitioner(mech, store).Partition(context.Background(), "Contact", windowStart, windowEnd, 10)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, remote.Calls("GetDeletedIDs"))
}

func TestPartition_UnavailableWindowCountsAsNoChanges(t *testing.T) {
	remote, store := newStores()
	remote.SetDeleted("Contact", "D1")
	remote.FailOn("GetUpdatedIDs", reconcile.ErrWindowUnavailable)

	mech, err := reconcile.NewMechanism(reconcile.MechanismDefault, remote)
	require.NoError(t, err)

	parts, err := reconcile.NewPartitioner(mech, store).Partition(context.Background(), "Contact", windowStart, windowEnd, 10)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Empty(t, parts[0].UpdatedIDs)
	assert.Equal(t, []string{"D1"}, parts[0].DeletedIDs)
}
