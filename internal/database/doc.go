// Package database provides the optional PostgreSQL connection pool used for
// trade-alert history. The chat core runs entirely in memory; this pool
// exists only when a database host is configured.
package database
