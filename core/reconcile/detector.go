package reconcile

// ConflictType classifies a local/remote record pair.
type ConflictType string

const (
	NoConflict          ConflictType = "no_conflict"
	MismatchingRecords  ConflictType = "mismatching_records"
	RemoteRecordMissing ConflictType = "remote_record_missing"
	LocalRecordMissing  ConflictType = "local_record_missing"
)

// Classification is the outcome of Classify.
type Classification struct {
	Type ConflictType `json:"type"`
	// Diff is set only when both records are present.
	Diff *AttributeDiff `json:"diff,omitempty"`
}

// Conflict reports whether the pair needs resolving.
func (c Classification) Conflict() bool {
	return c.Type != NoConflict
}

// DiffKeys returns the differing remote field names, if any.
func (c Classification) DiffKeys() []string {
	if c.Diff == nil {
		return nil
	}
	return c.Diff.DiffKeys()
}

// Classify compares a local and a remote record over fields (remote names).
// Either record may be nil. Nil values are ignored on both sides.
func Classify(local *LocalRecord, remote *RemoteRecord, m *Mapping, fields []string) Classification {
	switch {
	case local != nil && remote != nil:
		d := DiffValues(
			Compact(Slice(m.ToRemote(local.Attributes), fields)),
			Compact(Slice(remote.Attributes, fields)),
		)
		if d.Empty() {
			return Classification{Type: NoConflict, Diff: &d}
		}
		return Classification{Type: MismatchingRecords, Diff: &d}
	case local != nil:
		return Classification{Type: RemoteRecordMissing}
	case remote != nil:
		return Classification{Type: LocalRecordMissing}
	default:
		return Classification{Type: NoConflict}
	}
}
