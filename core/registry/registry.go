package registry

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"crm-sync/core/jobs"
	"crm-sync/core/reconcile"

	"gopkg.in/yaml.v3"
)

// ErrUnknownType is returned by Lookup for an unregistered record type.
var ErrUnknownType = errors.New("unknown record type")

// Descriptor is everything needed to sync one remote record type.
type Descriptor struct {
	Name          string
	Mapping       *reconcile.Mapping
	Mechanism     string
	Operations    reconcile.Operations
	SyncMode      jobs.SyncMode
	PartitionSize int
	// Poll selects what scheduled polls import. Categories whose inbound
	// operation is disabled are always off.
	Poll reconcile.PollOptions
}

// Registry is the immutable set of record types.
type Registry struct {
	types map[string]*Descriptor
	names []string
}

type file struct {
	Types []typeEntry `yaml:"types"`
}

type typeEntry struct {
	Name          string            `yaml:"name"`
	LocalType     string            `yaml:"local_type"`
	IDField       string            `yaml:"id_field"`
	ModstampField string            `yaml:"modstamp_field"`
	Fields        map[string]string `yaml:"fields"`
	NonAudited    []string          `yaml:"non_audited"`
	Mechanism     string            `yaml:"mechanism"`
	Operations    []string          `yaml:"operations"`
	SyncMode      string            `yaml:"sync_mode"`
	PartitionSize int               `yaml:"partition_size"`
	Poll          pollEntry         `yaml:"poll"`
}

type pollEntry struct {
	Created *bool `yaml:"created"`
	Updated *bool `yaml:"updated"`
	Deleted *bool `yaml:"deleted"`
	Counts  bool  `yaml:"counts"`
}

func (p pollEntry) options(ops reconcile.Operations) reconcile.PollOptions {
	opts := reconcile.DefaultPollOptions()
	if p.Created != nil {
		opts.ImportCreated = *p.Created
	}
	if p.Updated != nil {
		opts.ImportUpdated = *p.Updated
	}
	if p.Deleted != nil {
		opts.ImportDeleted = *p.Deleted
	}
	opts.WithCounts = p.Counts

	inbound := ops.Has(reconcile.OpInboundUpdate)
	opts.ImportCreated = opts.ImportCreated && inbound
	opts.ImportUpdated = opts.ImportUpdated && inbound
	opts.ImportDeleted = opts.ImportDeleted && ops.Has(reconcile.OpInboundDelete)
	return opts
}

// Load reads a registry file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry %s: %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("registry %s: %w", path, err)
	}
	return r, nil
}

// Parse builds a registry from YAML.
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse registry: %w", err)
	}

	r := &Registry{types: make(map[string]*Descriptor, len(f.Types))}
	for _, e := range f.Types {
		if _, dup := r.types[e.Name]; dup {
			return nil, fmt.Errorf("record type %s is declared twice", e.Name)
		}
		d, err := e.descriptor()
		if err != nil {
			return nil, err
		}
		r.types[d.Name] = d
		r.names = append(r.names, d.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

func (e typeEntry) descriptor() (*Descriptor, error) {
	m, err := reconcile.NewMapping(e.Name, e.Fields, reconcile.MappingOptions{
		LocalType:     e.LocalType,
		IDField:       e.IDField,
		ModstampField: e.ModstampField,
		NonAudited:    e.NonAudited,
	})
	if err != nil {
		return nil, err
	}

	mechanism := e.Mechanism
	if mechanism == "" {
		mechanism = reconcile.MechanismDefault
	}
	known := false
	for _, name := range reconcile.MechanismNames() {
		known = known || name == mechanism
	}
	if !known {
		return nil, fmt.Errorf("%s: %w: %q", e.Name, reconcile.ErrUnknownMechanism, mechanism)
	}

	ops, err := reconcile.NewOperations(e.Operations...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Name, err)
	}
	mode, err := jobs.ParseSyncMode(e.SyncMode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Name, err)
	}
	if e.PartitionSize < 0 {
		return nil, fmt.Errorf("%s: partition size must not be negative", e.Name)
	}

	return &Descriptor{
		Name:          e.Name,
		Mapping:       m,
		Mechanism:     mechanism,
		Operations:    ops,
		SyncMode:      mode,
		PartitionSize: e.PartitionSize,
		Poll:          e.Poll.options(ops),
	}, nil
}

// Lookup returns the descriptor of a record type.
func (r *Registry) Lookup(name string) (*Descriptor, error) {
	d, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	return d, nil
}

// Names returns the registered record types, sorted.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Descriptors returns every descriptor in name order.
func (r *Registry) Descriptors() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.types[name])
	}
	return out
}
