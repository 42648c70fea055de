// Package middleware contains HTTP middleware for the Fiber application.
//
// # Components
//
//   - auth: API key validation. The key is read from the X-API-Key header or the api_key
//     query parameter; configured paths such as /metrics can be skipped.
//   - rayid: assigns every request a RayID, stores it in the fiber locals under "ray_id"
//     and echoes it in the X-Ray-ID response header for tracing.
//
// Both are registered globally by the start command, rayid first.
package middleware
