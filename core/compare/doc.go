// Package compare implements the equality relation used when local and remote
// record values are checked against each other.
//
// The remote system of record does not round-trip values exactly: timestamps
// lose their sub-second part, floats drift, line endings are rewritten and
// characters outside the Basic Multilingual Plane are replaced. Equals
// absorbs those differences so that a field only counts as changed when its
// meaning changed.
//
// # Rules
//
//   - Timestamps (time.Time, or strings shaped like an ISO-8601 datetime with an
//     offset) are converted to UTC and compared with the sub-second part dropped.
//   - Numbers of any Go numeric kind are equal when |a-b| <= Epsilon.
//   - Strings are normalized with NormalizeString before comparing.
//   - Anything else falls back to plain equality.
//
// Strings that merely look numeric or time-like are never coerced.
package compare
