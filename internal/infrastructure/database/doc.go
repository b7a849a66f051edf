// Package database manages the SQLite storage used by Haven Provision Core.
//
// The daemon stores two things: the provisioned-device ledger (so a restart
// does not re-provision devices) and the provisioning attempt history served
// by the operator API. Both schemas are created by Migrate.
//
// The provisioning engine itself never touches this package directly; it
// talks to repository interfaces defined in internal/provision.
//
// Thread Safety: the underlying pool is limited to a single connection
// because SQLite supports one writer; callers may share *DB freely.
package database
