package integration

import (
	"context"
	"testing"
	"time"

	"crm-sync/core/jobs"
	"crm-sync/core/reconcile"
	"crm-sync/core/reconcile/memory"
	"crm-sync/core/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const registryYAML = `
types:
  - name: Lead
    local_type: leads
    fields: {Email: email, Company: company}
    partition_size: 50
  - name: Contact
    fields: {Email: email}
    operations: [inbound_update]
`

type registeringRemote struct {
	*memory.Remote
	fields map[string][]string
}

func (r *registeringRemote) RegisterFields(recordType string, fields []string) error {
	r.fields[recordType] = fields
	return nil
}

func setup(t *testing.T, remote reconcile.Remote, store Store, cfg Config) *Integration {
	t.Helper()
	reg, err := registry.Parse([]byte(registryYAML))
	require.NoError(t, err)

	runner := jobs.NewRunner(jobs.Config{Retry: jobs.RetryConfig{MaxAttempts: 1}}, nil, zap.NewNop())
	t.Cleanup(runner.Close)

	in, err := New(reg, remote, store, runner, cfg, zap.NewNop())
	require.NoError(t, err)
	return in
}

func TestNew_WiresEngines(t *testing.T) {
	in := setup(t, memory.NewRemote(), memory.NewStore(), Config{PartitionSize: 500, Workers: 2})

	assert.Equal(t, []string{"Contact", "Lead"}, in.Names())

	lead, err := in.Engine("Lead")
	require.NoError(t, err)
	assert.Equal(t, 50, lead.Config().PartitionSize)
	assert.Equal(t, 2, lead.Config().Workers)

	contact, err := in.Engine("Contact")
	require.NoError(t, err)
	assert.Equal(t, 500, contact.Config().PartitionSize)

	_, err = in.Engine("Account")
	assert.ErrorIs(t, err, registry.ErrUnknownType)

	im, err := in.Importer("Lead")
	require.NoError(t, err)
	assert.NotNil(t, im)
}

func TestNew_PollOptions(t *testing.T) {
	in := setup(t, memory.NewRemote(), memory.NewStore(), Config{})

	assert.Equal(t, reconcile.DefaultPollOptions(), in.PollOptions("Lead"))
	assert.Equal(t, reconcile.PollOptions{ImportCreated: true}, in.PollOptions("Contact"))
	assert.Equal(t, reconcile.DefaultPollOptions(), in.PollOptions("Account"))
}

func TestNew_InstallsChangeHook(t *testing.T) {
	remote := memory.NewRemote()
	store := memory.NewStore()
	setup(t, remote, store, Config{CacheTTL: time.Minute})
	ctx := context.Background()

	lead := &reconcile.LocalRecord{Type: "Lead", Attributes: reconcile.Attributes{"email": "a@example.com"}}
	require.NoError(t, store.Save(ctx, lead, reconcile.WriteOptions{}))
	assert.Equal(t, 1, remote.Calls("Create"))

	saved, err := store.FindByID(ctx, "Lead", lead.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.RemoteID)

	contact := &reconcile.LocalRecord{Type: "Contact", Attributes: reconcile.Attributes{"email": "b@example.com"}}
	require.NoError(t, store.Save(ctx, contact, reconcile.WriteOptions{}))
	assert.Equal(t, 1, remote.Calls("Create"), "outbound create is disabled for Contact")
}

func TestNew_RegistersFields(t *testing.T) {
	remote := &registeringRemote{Remote: memory.NewRemote(), fields: map[string][]string{}}
	setup(t, remote, memory.NewStore(), Config{})

	assert.Equal(t, []string{"Id", "SystemModstamp", "Company", "Email"}, remote.fields["Lead"])
	assert.Equal(t, []string{"Id", "SystemModstamp", "Email"}, remote.fields["Contact"])
}

type batchingRemote struct {
	*memory.Remote
	size int
}

func (r *batchingRemote) BatchSize() int { return r.size }

func TestNew_CapsPartitionSizeAtBatchSize(t *testing.T) {
	remote := &batchingRemote{Remote: memory.NewRemote(), size: 40}
	in := setup(t, remote, memory.NewStore(), Config{PartitionSize: 500})

	lead, err := in.Engine("Lead")
	require.NoError(t, err)
	assert.Equal(t, 40, lead.Config().PartitionSize)

	contact, err := in.Engine("Contact")
	require.NoError(t, err)
	assert.Equal(t, 40, contact.Config().PartitionSize)
}

func TestNew_KeepsPartitionSizeWithinBatchSize(t *testing.T) {
	remote := &batchingRemote{Remote: memory.NewRemote(), size: 200}
	in := setup(t, remote, memory.NewStore(), Config{})

	lead, err := in.Engine("Lead")
	require.NoError(t, err)
	assert.Equal(t, 50, lead.Config().PartitionSize)

	contact, err := in.Engine("Contact")
	require.NoError(t, err)
	assert.Equal(t, reconcile.DefaultPartitionSize, contact.Config().PartitionSize)
}
