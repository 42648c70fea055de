// Package conflicts exposes conflict inspection and resolution over HTTP.
package conflicts
