package reconcile_test

import (
	"context"
	"testing"

	"crm-sync/core/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInbound_Update(t *testing.T) {
	ctx := context.Background()
	_, store := newStores()
	var events []reconcile.Event
	in := reconcile.NewInbound(store, contactMapping(t), func(e reconcile.Event) { events = append(events, e) })

	rec, applied, err := in.Update(ctx, reconcile.Attributes{"Id": "A", "FirstName": "Ann", "SystemModstamp": inWindow}, true)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "Ann", rec.Attributes["first_name"])
	assert.Contains(t, rec.Attributes, "email")
	assert.Nil(t, rec.Attributes["email"])

	_, applied, err = in.Update(ctx, reconcile.Attributes{"Id": "A", "FirstName": "Stale", "SystemModstamp": windowStart}, true)
	require.NoError(t, err)
	assert.False(t, applied)

	got, _ := store.FindByRemoteID(ctx, "Contact", "A")
	assert.Equal(t, "Ann", got.Attributes["first_name"])

	require.Len(t, events, 1)
	assert.Equal(t, reconcile.EventInboundCreate, events[0].Type)
	assert.Equal(t, "A", events[0].RemoteID)

	_, _, err = in.Update(ctx, reconcile.Attributes{"FirstName": "NoID"}, false)
	assert.ErrorIs(t, err, reconcile.ErrRemoteIDRequired)
}

func TestInbound_WritesNeverTriggerOutbound(t *testing.T) {
	ctx := context.Background()
	_, store := newStores()
	var changes []reconcile.Change
	store.Hook = func(_ context.Context, c reconcile.Change) error {
		changes = append(changes, c)
		return nil
	}
	in := reconcile.NewInbound(store, contactMapping(t), nil)

	_, err := in.Force(ctx, reconcile.Attributes{"Id": "A", "FirstName": "Ann"}, false)
	require.NoError(t, err)
	deleted, err := in.Delete(ctx, "A")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = in.Delete(ctx, "A")
	require.NoError(t, err)
	assert.False(t, deleted)

	assert.Empty(t, changes)
}

func TestStoreHook_ReportsChangedFields(t *testing.T) {
	ctx := context.Background()
	_, store := newStores()
	var changes []reconcile.Change
	store.Hook = func(_ context.Context, c reconcile.Change) error {
		changes = append(changes, c)
		return nil
	}

	rec := &reconcile.LocalRecord{Type: "Contact", Attributes: reconcile.Attributes{"first_name": "Ann", "email": "a@example.com"}}
	require.NoError(t, store.Save(ctx, rec, reconcile.WriteOptions{}))
	rec.Attributes["email"] = "ann@example.com"
	require.NoError(t, store.Save(ctx, rec, reconcile.WriteOptions{}))
	require.NoError(t, store.Delete(ctx, rec, reconcile.WriteOptions{}))

	require.Len(t, changes, 3)
	assert.Equal(t, reconcile.ChangeCreated, changes[0].Kind)
	assert.Equal(t, reconcile.ChangeUpdated, changes[1].Kind)
	assert.Equal(t, []string{"email"}, changes[1].Changed)
	assert.Equal(t, reconcile.ChangeDeleted, changes[2].Kind)
}

func TestOutbound_CreateUpdateDelete(t *testing.T) {
	ctx := context.Background()
	remote, store := newStores()
	var events []reconcile.EventType
	out := reconcile.NewOutbound(remote, store, contactMapping(t), func(e reconcile.Event) { events = append(events, e.Type) })

	rec := &reconcile.LocalRecord{Type: "Contact", Attributes: reconcile.Attributes{"first_name": "Ann", "notes": nil}}
	store.Put(*rec)
	rec.ID = 1

	require.NoError(t, out.Create(ctx, rec))
	require.True(t, rec.HasRemoteID())
	saved, _ := store.FindByID(ctx, "Contact", 1)
	assert.Equal(t, rec.RemoteID, saved.RemoteID)

	require.NoError(t, out.Update(ctx, rec, reconcile.Attributes{"LastName": "Smith"}))
	attrs, _ := remote.Get("Contact", rec.RemoteID)
	assert.Equal(t, "Smith", attrs["LastName"])

	require.NoError(t, out.Delete(ctx, rec))
	_, ok := remote.Get("Contact", rec.RemoteID)
	assert.False(t, ok)

	assert.Equal(t, []reconcile.EventType{
		reconcile.EventOutboundCreate,
		reconcile.EventOutboundUpdate,
		reconcile.EventOutboundDelete,
	}, events)

	for _, opts := range store.Saves() {
		assert.True(t, opts.SkipSync)
	}
}

func TestOutbound_UpdateRequiresRemoteID(t *testing.T) {
	remote, store := newStores()
	out := reconcile.NewOutbound(remote, store, contactMapping(t), nil)

	err := out.Update(context.Background(), &reconcile.LocalRecord{ID: 7, Type: "Contact"}, reconcile.Attributes{"FirstName": "x"})
	assert.ErrorIs(t, err, reconcile.ErrRemoteIDRequired)
	assert.True(t, reconcile.IsValidation(err))

	require.NoError(t, out.Delete(context.Background(), &reconcile.LocalRecord{ID: 7, Type: "Contact"}))
	assert.Zero(t, remote.TotalWrites())
}
