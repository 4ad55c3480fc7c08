// Package models defines the core domain models for subkeeper.
//
//   - Group: a managed chat with its own payment configuration and roster
//   - GroupConfig: the four payment fields an admin supplies during setup
//   - SetupStep: which setup prompt a group is currently waiting on
//   - Membership: a time-bounded grant of one user's access to one group
//
// JSON tags mirror the on-disk document produced by the jsonfile store, so a
// persisted database reads naturally: {"groups": {"<groupId>": {...}}}.
package models
