package reconcile

import (
	"fmt"
	"sort"
)

// Operation names a sync direction a record type takes part in.
type Operation string

const (
	OpOutboundCreate Operation = "outbound_create"
	OpOutboundUpdate Operation = "outbound_update"
	OpOutboundDelete Operation = "outbound_delete"
	OpInboundUpdate  Operation = "inbound_update"
	OpInboundDelete  Operation = "inbound_delete"
)

// AllOperations lists every operation.
var AllOperations = []Operation{OpOutboundCreate, OpOutboundUpdate, OpOutboundDelete, OpInboundUpdate, OpInboundDelete}

// Operations is a set of enabled operations.
type Operations map[Operation]struct{}

// NewOperations builds a set. No names means every operation.
func NewOperations(names ...string) (Operations, error) {
	if len(names) == 0 {
		names = make([]string, len(AllOperations))
		for i, op := range AllOperations {
			names[i] = string(op)
		}
	}
	ops := make(Operations, len(names))
	for _, name := range names {
		op := Operation(name)
		if !op.valid() {
			return nil, fmt.Errorf("unknown operation %q", name)
		}
		ops[op] = struct{}{}
	}
	return ops, nil
}

func (op Operation) valid() bool {
	for _, known := range AllOperations {
		if op == known {
			return true
		}
	}
	return false
}

// Has reports whether op is enabled. A nil set enables everything.
func (o Operations) Has(op Operation) bool {
	if o == nil {
		return true
	}
	_, ok := o[op]
	return ok
}

// Names returns the enabled operations, sorted.
func (o Operations) Names() []string {
	names := make([]string, 0, len(o))
	for op := range o {
		names = append(names, string(op))
	}
	sort.Strings(names)
	return names
}
