// Package storage is the relational datastore: rate history, users and
// subscriptions on PostgreSQL or SQLite, with embedded migrations.
//
// Queries are written with $N placeholders and rebound for SQLite.
package storage
