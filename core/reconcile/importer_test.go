package reconcile_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"crm-sync/core/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImporter_PagesThroughRemote(t *testing.T) {
	remote, store := newStores()
	for i := 1; i <= 5; i++ {
		remote.Put("Contact", fmt.Sprintf("C%02d", i), reconcile.Attributes{"Email": fmt.Sprintf("c%d@example.com", i)})
	}
	store.Put(localContact("C02", reconcile.Attributes{"email": "stale@example.com"}))

	im := reconcile.NewImporter(remote, store, contactMapping(t), nil, nil)
	res, err := im.Import(context.Background(), "", 2)
	require.NoError(t, err)

	assert.Equal(t, 5, res.Imported)
	assert.Equal(t, "C05", res.LastID)
	assert.Equal(t, 3, remote.Calls("PageRecords"))

	all := store.All()
	require.Len(t, all, 5)
	rec, err := store.FindByRemoteID(context.Background(), "Contact", "C02")
	require.NoError(t, err)
	assert.Equal(t, "c2@example.com", rec.Attributes["email"])
	for _, opts := range store.Saves() {
		assert.True(t, opts.SkipSync)
	}
}

func TestImporter_ResumesAfterID(t *testing.T) {
	remote, store := newStores()
	for i := 1; i <= 3; i++ {
		remote.Put("Contact", fmt.Sprintf("C%02d", i), nil)
	}

	res, err := reconcile.NewImporter(remote, store, contactMapping(t), nil, nil).Import(context.Background(), "C01", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Len(t, store.All(), 2)
}

func TestImporter_PageError(t *testing.T) {
	remote, store := newStores()
	remote.FailOn("PageRecords", errors.New("timeout"))

	res, err := reconcile.NewImporter(remote, store, contactMapping(t), nil, nil).Import(context.Background(), "", 10)
	assert.ErrorContains(t, err, "timeout")
	assert.Zero(t, res.Imported)
}
