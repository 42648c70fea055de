// Package integration assembles the per record type sync machinery from the registry.
//
// For every registered type it builds a reconcile.Engine and a jobs.Dispatcher,
// and it installs a router over the dispatchers as the local store's change
// hook. Features look engines up through Integration.Engine.
package integration
