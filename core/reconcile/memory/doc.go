// Package memory provides in-memory implementations of reconcile.Remote and
// reconcile.LocalStore for tests and local experiments.
package memory
