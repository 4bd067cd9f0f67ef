// Package database provides the PostgreSQL connection pool used by the
// connectivity journal, plus the journal schema.
package database
