package reconcile_test

import (
	"context"
	"testing"
	"time"

	"crm-sync/core/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_UnknownResolution(t *testing.T) {
	remote, store := newStores()
	r := reconcile.NewResolver(remote, store, contactMapping(t), nil, nil)

	err := r.Resolve(context.Background(), reconcile.Target{RemoteID: "A"}, "remote_delete", reconcile.ResolveOptions{})
	assert.ErrorIs(t, err, reconcile.ErrUnknownResolution)
	assert.True(t, reconcile.IsValidation(err))
}

func TestResolver_RemotePush(t *testing.T) {
	ctx := context.Background()

	t.Run("updates an existing remote record with every synced field", func(t *testing.T) {
		remote, store := newStores()
		remote.Put("Contact", "A", reconcile.Attributes{"FirstName": "Old", "Email": "old@example.com"})
		id := store.Put(localContact("A", reconcile.Attributes{"first_name": "New", "email": nil}))

		r := reconcile.NewResolver(remote, store, contactMapping(t), nil, nil)
		require.NoError(t, r.Resolve(ctx, reconcile.Target{LocalID: id}, reconcile.ResolveRemotePush, reconcile.ResolveOptions{}))

		attrs, _ := remote.Get("Contact", "A")
		assert.Equal(t, "New", attrs["FirstName"])
		assert.Nil(t, attrs["Email"])
		assert.Equal(t, 1, remote.Calls("Update"))

		rec, _ := store.FindByID(ctx, "Contact", id)
		require.NotNil(t, rec.RemoteModstamp)
		assert.True(t, rec.RemoteModstamp.Equal(windowEnd.Add(time.Hour)))
		assert.Empty(t, store.Saves(), "remote stamp is recorded without rewriting the record")
	})

	t.Run("creates the remote record and stores its id", func(t *testing.T) {
		remote, store := newStores()
		id := store.Put(localContact("", reconcile.Attributes{"first_name": "Fresh", "email": nil}))

		r := reconcile.NewResolver(remote, store, contactMapping(t), nil, nil)
		require.NoError(t, r.Resolve(ctx, reconcile.Target{LocalID: id}, reconcile.ResolveRemotePush, reconcile.ResolveOptions{}))

		rec, _ := store.FindByID(ctx, "Contact", id)
		require.True(t, rec.HasRemoteID())
		attrs, ok := remote.Get("Contact", rec.RemoteID)
		require.True(t, ok)
		assert.Equal(t, "Fresh", attrs["FirstName"])
		_, hasEmail := attrs["Email"]
		assert.False(t, hasEmail)
	})

	t.Run("requires a local record", func(t *testing.T) {
		remote, store := newStores()
		r := reconcile.NewResolver(remote, store, contactMapping(t), nil, nil)
		err := r.Resolve(ctx, reconcile.Target{RemoteID: "A"}, reconcile.ResolveRemotePush, reconcile.ResolveOptions{})
		assert.ErrorIs(t, err, reconcile.ErrLocalRecordRequired)
		assert.True(t, reconcile.IsValidation(err))
	})
}

func TestResolver_RemotePull(t *testing.T) {
	ctx := context.Background()
	remote, store := newStores()
	stamp := windowStart.Add(-48 * time.Hour)
	remote.Put("Contact", "A", reconcile.Attributes{"FirstName": "Remote", "SystemModstamp": stamp})
	id := store.Put(reconcile.LocalRecord{
		Type:           "Contact",
		RemoteID:       "A",
		Attributes:     reconcile.Attributes{"first_name": "Local", "email": "local@example.com", "custom": 1},
		RemoteModstamp: ptr(windowStart),
	})

	r := reconcile.NewResolver(remote, store, contactMapping(t), nil, nil)
	require.NoError(t, r.Resolve(ctx, reconcile.Target{RemoteID: "A"}, reconcile.ResolveRemotePull, reconcile.ResolveOptions{}))

	rec, _ := store.FindByID(ctx, "Contact", id)
	assert.Equal(t, "Remote", rec.Attributes["first_name"])
	assert.Nil(t, rec.Attributes["email"], "fields unset remotely are cleared")
	assert.Equal(t, 1, rec.Attributes["custom"], "unmapped fields are untouched")
	assert.Equal(t, 0, remote.TotalWrites())
	require.NotNil(t, rec.RemoteModstamp)
	assert.True(t, rec.RemoteModstamp.Equal(stamp), "pull ignores the freshness guard")

	t.Run("creates the local record when missing", func(t *testing.T) {
		remote.Put("Contact", "B", reconcile.Attributes{"FirstName": "Bea"})
		require.NoError(t, r.Resolve(ctx, reconcile.Target{RemoteID: "B"}, reconcile.ResolveRemotePull, reconcile.ResolveOptions{}))
		rec, _ := store.FindByRemoteID(ctx, "Contact", "B")
		require.NotNil(t, rec)
		assert.Equal(t, "Bea", rec.Attributes["first_name"])
	})

	t.Run("requires a remote record", func(t *testing.T) {
		err := r.Resolve(ctx, reconcile.Target{RemoteID: "missing"}, reconcile.ResolveRemotePull, reconcile.ResolveOptions{})
		assert.ErrorIs(t, err, reconcile.ErrRemoteRecordRequired)
	})
}

func TestResolver_LocalDelete(t *testing.T) {
	ctx := context.Background()
	remote, store := newStores()
	remote.Put("Contact", "A", reconcile.Attributes{"FirstName": "Ann"})
	id := store.Put(localContact("A", nil))

	r := reconcile.NewResolver(remote, store, contactMapping(t), nil, nil)
	require.NoError(t, r.Resolve(ctx, reconcile.Target{RemoteID: "A"}, reconcile.ResolveLocalDelete, reconcile.ResolveOptions{}))

	rec, _ := store.FindByID(ctx, "Contact", id)
	assert.Nil(t, rec)
	_, stillRemote := remote.Get("Contact", "A")
	assert.True(t, stillRemote)
	assert.Equal(t, 0, remote.TotalWrites())
	assert.True(t, store.Saves()[0].SkipSync)

	// idempotent
	require.NoError(t, r.Resolve(ctx, reconcile.Target{RemoteID: "A"}, reconcile.ResolveLocalDelete, reconcile.ResolveOptions{}))
}

func TestResolver_Merge(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*reconcile.Resolver, func() (reconcile.Attributes, reconcile.Attributes), interface{ TotalWrites() int }) {
		remote, store := newStores()
		remote.Put("Contact", "A", reconcile.Attributes{"FirstName": "RemoteFirst", "LastName": "RemoteLast", "Email": "remote@example.com"})
		id := store.Put(localContact("A", reconcile.Attributes{"first_name": "LocalFirst", "last_name": "LocalLast", "email": "local@example.com"}))
		r := reconcile.NewResolver(remote, store, contactMapping(t), nil, nil)
		state := func() (reconcile.Attributes, reconcile.Attributes) {
			rec, _ := store.FindByID(ctx, "Contact", id)
			attrs, _ := remote.Get("Contact", "A")
			return rec.Attributes, attrs
		}
		return r, state, remote
	}

	t.Run("pushes local fields then pulls remote fields", func(t *testing.T) {
		r, state, _ := setup(t)
		err := r.Resolve(ctx, reconcile.Target{RemoteID: "A"}, reconcile.ResolveMerge, reconcile.ResolveOptions{
			LocalAttributes:  []string{"FirstName"},
			RemoteAttributes: []string{"LastName"},
		})
		require.NoError(t, err)

		local, remoteAttrs := state()
		assert.Equal(t, "LocalFirst", remoteAttrs["FirstName"])
		assert.Equal(t, "RemoteLast", remoteAttrs["LastName"])
		assert.Equal(t, "LocalFirst", local["first_name"])
		assert.Equal(t, "RemoteLast", local["last_name"])
		assert.Equal(t, "local@example.com", local["email"], "unnamed fields are not blanked")
		assert.Equal(t, "remote@example.com", remoteAttrs["Email"])
	})

	t.Run("empty local list issues no remote writes", func(t *testing.T) {
		r, state, remote := setup(t)
		err := r.Resolve(ctx, reconcile.Target{RemoteID: "A"}, reconcile.ResolveMerge, reconcile.ResolveOptions{
			LocalAttributes:  []string{},
			RemoteAttributes: []string{"Email"},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, remote.TotalWrites())

		local, _ := state()
		assert.Equal(t, "remote@example.com", local["email"])
		assert.Equal(t, "LocalFirst", local["first_name"])
	})

	t.Run("missing options are caller errors", func(t *testing.T) {
		r, _, remote := setup(t)
		err := r.Resolve(ctx, reconcile.Target{RemoteID: "A"}, reconcile.ResolveMerge, reconcile.ResolveOptions{LocalAttributes: []string{"FirstName"}})
		assert.ErrorIs(t, err, reconcile.ErrMissingOption)
		assert.True(t, reconcile.IsValidation(err))
		assert.Equal(t, 0, remote.TotalWrites())
	})

	t.Run("requires both records", func(t *testing.T) {
		r, _, _ := setup(t)
		err := r.Resolve(ctx, reconcile.Target{RemoteID: "nope"}, reconcile.ResolveMerge, reconcile.ResolveOptions{
			LocalAttributes: []string{}, RemoteAttributes: []string{},
		})
		assert.ErrorIs(t, err, reconcile.ErrLocalRecordRequired)
	})
}

func TestResolver_Conflict(t *testing.T) {
	ctx := context.Background()
	remote, store := newStores()
	remote.Put("Contact", "A", reconcile.Attributes{"FirstName": "Ann", "Notes": "remote"})
	store.Put(localContact("A", reconcile.Attributes{"first_name": "Ann", "notes": "local"}))

	r := reconcile.NewResolver(remote, store, contactMapping(t), nil, nil)
	c, err := r.Conflict(ctx, reconcile.Target{RemoteID: "A"})
	require.NoError(t, err)
	assert.Equal(t, reconcile.MismatchingRecords, c.Type)
	assert.Equal(t, []string{"Notes"}, c.DiffKeys())

	c, err = r.Conflict(ctx, reconcile.Target{RemoteID: "missing"})
	require.NoError(t, err)
	assert.Equal(t, reconcile.NoConflict, c.Type)
}
