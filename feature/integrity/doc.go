// Package integrity provides health checks for the sync infrastructure.
//
// Audits compare individual records inside a change window. This package
// looks at the surroundings instead.
//
// # Checks Provided
//
//   - Schema: Validates that the sync tables match their GORM models (columns, declared types).
//   - Storage: Checks that the report bucket exists and counts archived audit reports.
//   - Counts: Compares local and remote record totals per registered type.
//
// # HTTP Endpoints
//
//   - GET /integrity : Runs all checks.
//   - GET /integrity/schema : Runs the schema check.
//   - GET /integrity/storage : Runs the storage check (supports ?fix=true).
//   - GET /integrity/counts : Runs the count check.
package integrity
