package reconcile_test

import (
	"testing"
	"time"

	"crm-sync/core/reconcile"
	"crm-sync/core/reconcile/memory"

	"github.com/stretchr/testify/require"
)

var (
	windowStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = windowStart.Add(24 * time.Hour)
	inWindow    = windowStart.Add(time.Hour)
)

func contactMapping(t *testing.T) *reconcile.Mapping {
	t.Helper()
	m, err := reconcile.NewMapping("Contact", map[string]string{
		"FirstName": "first_name",
		"LastName":  "last_name",
		"Email":     "email",
		"Notes":     "notes",
	}, reconcile.MappingOptions{LocalType: "contacts", NonAudited: []string{"Notes"}})
	require.NoError(t, err)
	return m
}

func newStores() (*memory.Remote, *memory.Store) {
	remote := memory.NewRemote()
	remote.Now = func() time.Time { return windowEnd.Add(time.Hour) }
	store := memory.NewStore()
	store.Now = func() time.Time { return windowEnd.Add(2 * time.Hour) }
	return remote, store
}

func localContact(remoteID string, attrs reconcile.Attributes) reconcile.LocalRecord {
	return reconcile.LocalRecord{
		Type:       "Contact",
		RemoteID:   remoteID,
		Attributes: attrs,
		UpdatedAt:  windowStart.Add(-time.Hour),
	}
}

func ptr(t time.Time) *time.Time { return &t }
