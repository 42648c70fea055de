// Package crm is the REST client for the remote CRM.
//
// Client implements reconcile.Remote on the sobjects, composite and query
// endpoints. Calls are throttled with a token bucket and reported to the
// remote call metrics. Replication window errors from the updated and deleted
// endpoints are returned as reconcile.ErrWindowUnavailable so that polling
// mechanisms treat them as an empty window.
package crm
