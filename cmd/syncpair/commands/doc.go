// Package commands defines the syncpair CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init         Create the local device identity
//   - fingerprint  Print the identity fingerprint
//   - authorise    Ask authorised devices to authorise this one
//   - pending      List authorisation requests awaiting a decision
//   - approve      Approve a request with the code shown on the new device
//   - reject       Refuse a request
//   - poll         Sync peers and process incoming messages
//   - status       Show identity, authorisation and session counts
//   - reset        Wipe all local state
//
// # Implementation
//
// The root command loads configuration through viper (flags, SYNCPAIR_*
// environment, then <home>/config.yaml) and builds the dependency graph
// before any subcommand runs. Commands share it through the package-level
// wire.
package commands
