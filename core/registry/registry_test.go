package registry

import (
	"testing"

	"crm-sync/core/jobs"
	"crm-sync/core/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	r, err := Load("testdata/registry.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"Contact", "Lead"}, r.Names())

	contact, err := r.Lookup("Contact")
	require.NoError(t, err)
	assert.Equal(t, reconcile.MechanismSystemModstamp, contact.Mechanism)
	assert.Equal(t, jobs.SyncModeAsync, contact.SyncMode)
	assert.Equal(t, 250, contact.PartitionSize)
	assert.Equal(t, "contacts", contact.Mapping.LocalType)
	assert.Equal(t, []string{"Description", "Email", "FirstName", "LastName"}, contact.Mapping.SyncedAttributes())
	assert.Equal(t, []string{"Email", "FirstName", "LastName"}, contact.Mapping.AuditedAttributes())
	assert.Len(t, contact.Operations, len(reconcile.AllOperations))
	assert.Equal(t, reconcile.PollOptions{ImportCreated: true, ImportUpdated: true, ImportDeleted: true, WithCounts: true}, contact.Poll)

	lead, err := r.Lookup("Lead")
	require.NoError(t, err)
	assert.Equal(t, reconcile.MechanismDefault, lead.Mechanism)
	assert.Equal(t, jobs.SyncModeSync, lead.SyncMode)
	assert.False(t, lead.Operations.Has(reconcile.OpOutboundCreate))
	assert.Equal(t, reconcile.DefaultPollOptions(), lead.Poll)

	_, err = r.Lookup("Opportunity")
	assert.ErrorIs(t, err, ErrUnknownType)

	require.Len(t, r.Descriptors(), 2)
	assert.Equal(t, "Contact", r.Descriptors()[0].Name)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("testdata/nope.yaml")
	assert.Error(t, err)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			"non audited field not synced",
			"types:\n  - name: Contact\n    fields: {Email: email}\n    non_audited: [Phone]\n",
			"Phone",
		},
		{
			"mapping not bijective",
			"types:\n  - name: Contact\n    fields: {Email: email, Mail: email}\n",
			"invalid mapping",
		},
		{
			"unknown mechanism",
			"types:\n  - name: Contact\n    fields: {Email: email}\n    mechanism: cdc\n",
			"unknown query mechanism",
		},
		{
			"unknown operation",
			"types:\n  - name: Contact\n    fields: {Email: email}\n    operations: [outbound_upsert]\n",
			"outbound_upsert",
		},
		{
			"unknown sync mode",
			"types:\n  - name: Contact\n    fields: {Email: email}\n    sync_mode: later\n",
			"later",
		},
		{
			"duplicate type",
			"types:\n  - name: Contact\n    fields: {Email: email}\n  - name: Contact\n    fields: {Email: email}\n",
			"declared twice",
		},
		{
			"malformed yaml",
			"types: [",
			"failed to parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_PollMaskedByOperations(t *testing.T) {
	r, err := Parse([]byte("types:\n  - name: Lead\n    fields: {Email: email}\n    operations: [outbound_create, inbound_delete]\n    poll: {updated: true}\n"))
	require.NoError(t, err)

	lead, err := r.Lookup("Lead")
	require.NoError(t, err)
	assert.Equal(t, reconcile.PollOptions{ImportDeleted: true}, lead.Poll)
}
