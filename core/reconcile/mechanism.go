package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Query mechanism names.
const (
	MechanismDefault          = "default"
	MechanismSystemModstamp   = "system_modstamp"
	MechanismLastModifiedDate = "last_modified_date"
)

// Mechanism discovers remote changes in a window.
type Mechanism interface {
	Name() string
	UpdatedIDs(ctx context.Context, recordType string, start, end time.Time) ([]string, error)
	DeletedIDs(ctx context.Context, recordType string, start, end time.Time) ([]string, error)
}

var stampFields = map[string]string{
	MechanismSystemModstamp:   "SystemModstamp",
	MechanismLastModifiedDate: "LastModifiedDate",
}

// NewMechanism returns the named mechanism bound to remote.
// An empty name selects the default mechanism.
func NewMechanism(name string, remote Remote) (Mechanism, error) {
	if name == "" || name == MechanismDefault {
		return &defaultMechanism{remote: remote}, nil
	}
	field, ok := stampFields[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMechanism, name)
	}
	querier, ok := remote.(StampQuerier)
	if !ok {
		return nil, fmt.Errorf("mechanism %s requires a remote that supports stamp queries", name)
	}
	return &stampMechanism{name: name, field: field, querier: querier}, nil
}

// MechanismNames lists the known mechanism names.
func MechanismNames() []string {
	names := []string{MechanismDefault}
	for n := range stampFields {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// defaultMechanism uses the remote's replication feeds.
type defaultMechanism struct {
	remote Remote
}

func (m *defaultMechanism) Name() string { return MechanismDefault }

func (m *defaultMechanism) UpdatedIDs(ctx context.Context, recordType string, start, end time.Time) ([]string, error) {
	ids, err := m.remote.GetUpdatedIDs(ctx, recordType, start, end)
	return replicable(ids, err)
}

func (m *defaultMechanism) DeletedIDs(ctx context.Context, recordType string, start, end time.Time) ([]string, error) {
	ids, err := m.remote.GetDeletedIDs(ctx, recordType, start, end)
	return replicable(ids, err)
}

// stampMechanism queries by a timestamp field. It cannot see deletions.
type stampMechanism struct {
	name    string
	field   string
	querier StampQuerier
}

func (m *stampMechanism) Name() string { return m.name }

func (m *stampMechanism) UpdatedIDs(ctx context.Context, recordType string, start, end time.Time) ([]string, error) {
	ids, err := m.querier.QueryIDsByStamp(ctx, recordType, m.field, start, end)
	return replicable(ids, err)
}

func (m *stampMechanism) DeletedIDs(context.Context, string, time.Time, time.Time) ([]string, error) {
	return []string{}, nil
}

// replicable maps an unavailable window to zero changes.
func replicable(ids []string, err error) ([]string, error) {
	if errors.Is(err, ErrWindowUnavailable) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
