package reconcile_test

import (
	"testing"

	"crm-sync/core/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperations(t *testing.T) {
	all, err := reconcile.NewOperations()
	require.NoError(t, err)
	assert.Len(t, all, len(reconcile.AllOperations))

	ops, err := reconcile.NewOperations("inbound_update", "outbound_create")
	require.NoError(t, err)
	assert.True(t, ops.Has(reconcile.OpInboundUpdate))
	assert.False(t, ops.Has(reconcile.OpOutboundDelete))
	assert.Equal(t, []string{"inbound_update", "outbound_create"}, ops.Names())

	var none reconcile.Operations
	assert.True(t, none.Has(reconcile.OpOutboundDelete))

	_, err = reconcile.NewOperations("outbound_upsert")
	assert.ErrorContains(t, err, "outbound_upsert")
}
