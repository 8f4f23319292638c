// Package app assembles syncpair from configuration: it loads settings with
// viper, builds the zerolog logger and wires stores, remote storage and
// services into a Wire the CLI commands use.
package app
