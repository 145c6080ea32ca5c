// Package accounts is the account service: CRUD over a Repository plus
// publication of lifecycle events after committed creates and deletes.
// Repositories exist for PostgreSQL (pgx), memory, and a Redis cache-aside
// decorator; the gin controller serves /api/users.
package accounts
