// Package server holds the HTTP server configuration.
//
// The start command builds the Fiber application from this Config: the listen port,
// the API key checked by the auth middleware, and the request timeouts.
package server
