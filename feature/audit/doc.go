// Package audit runs audits over change windows and serves their reports.
//
// Every run gets a history row. When object storage is enabled the full result
// is archived as JSON under audits/<type>/<run id>.json.
package audit
