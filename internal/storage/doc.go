// Package storage persists subscriptions in SQL databases. SQLStore holds the
// queries shared by the SQLite and PostgreSQL backends; each backend package
// opens its driver and supplies the schema.
//
// Secret-bearing properties (endpoint secrets and API keys) are sealed with
// crypto.ConfigEncryptor before they reach the database when an encryption key
// is configured.
package storage
