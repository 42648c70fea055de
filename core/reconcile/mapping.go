package reconcile

import (
	"fmt"
	"sort"
	"time"

	"crm-sync/core/compare"
	"crm-sync/core/utils"
)

const (
	// DefaultIDField is the remote field carrying the record identity.
	DefaultIDField = "Id"
	// DefaultModstampField is the remote field carrying the modification timestamp.
	DefaultModstampField = "SystemModstamp"
)

// Mapping binds a remote record type to its local representation.
type Mapping struct {
	// RecordType is the remote type name.
	RecordType string
	// LocalType is the local model name used in reports.
	LocalType string
	// IDField and ModstampField name the remote identity and timestamp fields.
	IDField       string
	ModstampField string

	fields  map[string]string // remote -> local
	reverse map[string]string // local -> remote
	synced  []string
	audited []string
}

// MappingOptions configures NewMapping.
type MappingOptions struct {
	LocalType     string
	IDField       string
	ModstampField string
	// NonAudited lists synced remote fields excluded from drift checks.
	NonAudited []string
}

// NewMapping builds a mapping from a remote-to-local field table.
// The table must be one-to-one and every non-audited field must be synced.
func NewMapping(recordType string, fields map[string]string, opts MappingOptions) (*Mapping, error) {
	if recordType == "" {
		return nil, fmt.Errorf("%w: record type is empty", ErrInvalidMapping)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s has no fields", ErrInvalidMapping, recordType)
	}

	m := &Mapping{
		RecordType:    recordType,
		LocalType:     opts.LocalType,
		IDField:       opts.IDField,
		ModstampField: opts.ModstampField,
		fields:        make(map[string]string, len(fields)),
		reverse:       make(map[string]string, len(fields)),
	}
	if m.LocalType == "" {
		m.LocalType = recordType
	}
	if m.IDField == "" {
		m.IDField = DefaultIDField
	}
	if m.ModstampField == "" {
		m.ModstampField = DefaultModstampField
	}

	for remote, local := range fields {
		if remote == "" || local == "" {
			return nil, fmt.Errorf("%w: %s has an empty field name", ErrInvalidMapping, recordType)
		}
		if other, dup := m.reverse[local]; dup {
			return nil, fmt.Errorf("%w: %s maps both %s and %s to %s", ErrInvalidMapping, recordType, other, remote, local)
		}
		m.fields[remote] = local
		m.reverse[local] = remote
		m.synced = append(m.synced, remote)
	}
	sort.Strings(m.synced)

	excluded := make(map[string]struct{}, len(opts.NonAudited))
	for _, f := range opts.NonAudited {
		if _, ok := m.fields[f]; !ok {
			return nil, fmt.Errorf("%w: %s non-audited field %s is not synced", ErrInvalidMapping, recordType, f)
		}
		excluded[f] = struct{}{}
	}
	for _, f := range m.synced {
		if _, skip := excluded[f]; !skip {
			m.audited = append(m.audited, f)
		}
	}

	return m, nil
}

// SyncedAttributes returns the remote names of all synced fields.
func (m *Mapping) SyncedAttributes() []string {
	return append([]string(nil), m.synced...)
}

// AuditedAttributes returns the synced fields checked for drift.
func (m *Mapping) AuditedAttributes() []string {
	return append([]string(nil), m.audited...)
}

// LocalField returns the local name of a remote field.
func (m *Mapping) LocalField(remote string) (string, bool) {
	l, ok := m.fields[remote]
	return l, ok
}

// ToRemote renames local attributes to remote names. Unmapped keys are dropped.
func (m *Mapping) ToRemote(local Attributes) Attributes {
	out := make(Attributes, len(m.synced))
	for l, v := range local {
		if r, ok := m.reverse[l]; ok {
			out[r] = v
		}
	}
	return out
}

// ToLocal renames remote attributes to local names. Unmapped keys are dropped.
func (m *Mapping) ToLocal(remote Attributes) Attributes {
	out := make(Attributes, len(m.synced))
	for r, v := range remote {
		if l, ok := m.fields[r]; ok {
			out[l] = v
		}
	}
	return out
}

// WithBlanks returns attrs restricted to the synced fields, with absent fields set to nil.
func (m *Mapping) WithBlanks(attrs Attributes) Attributes {
	out := make(Attributes, len(m.synced))
	for _, f := range m.synced {
		out[f] = attrs[f]
	}
	return out
}

// RemoteID extracts the identity from remote attributes.
func (m *Mapping) RemoteID(attrs Attributes) string {
	return utils.ToString(attrs[m.IDField])
}

// Modstamp extracts the remote modification timestamp from remote attributes.
func (m *Mapping) Modstamp(attrs Attributes) (time.Time, bool) {
	v, ok := attrs[m.ModstampField]
	if !ok || v == nil {
		return time.Time{}, false
	}
	if t, ok := compare.ParseTime(v); ok {
		return t, true
	}
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range modstampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(compare.Precision), true
		}
	}
	return time.Time{}, false
}

var modstampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
}

// IsFresh reports whether remote attributes may overwrite a record last synced at lastKnown.
// Missing stamps on either side count as fresh; otherwise the remote stamp must be strictly newer.
func (m *Mapping) IsFresh(lastKnown *time.Time, remote Attributes) bool {
	if lastKnown == nil {
		return true
	}
	stamp, ok := m.Modstamp(remote)
	if !ok {
		return true
	}
	return stamp.After(lastKnown.UTC().Truncate(compare.Precision))
}

// Slice keeps only the named keys present in attrs.
func Slice(attrs Attributes, keys []string) Attributes {
	out := make(Attributes, len(keys))
	for _, k := range keys {
		if v, ok := attrs[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Compact drops nil values.
func Compact(attrs Attributes) Attributes {
	out := make(Attributes, len(attrs))
	for k, v := range attrs {
		if v != nil {
			out[k] = v
		}
	}
	return out
}
