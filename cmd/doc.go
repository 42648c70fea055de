// Package cmd holds the crm-sync command line.
//
// start runs the HTTP API with the optional poll scheduler. audit, poll,
// partition, resolve, reconcile and import run a single operation against the
// configured remote and local store and exit.
package cmd
