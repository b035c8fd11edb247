// Package database provides the SQLite connection for the agent's local
// state store.
//
// The agent persists only small amounts of state (the last-applied desired
// shadow values), so the database is a single file opened with WAL mode and
// a busy timeout. Schema management lives with the packages that own the
// tables; this package handles connection lifecycle and pragmas only.
package database
