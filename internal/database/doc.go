// Package database provides the PostgreSQL connection pool for the
// trade and fill archive.
package database
