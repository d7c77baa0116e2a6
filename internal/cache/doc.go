// Package cache persists sentence translations in SQLite so repeated
// sentences and reruns of the same recording skip the remote translation
// call.
//
// Entries are keyed by the translation model and the NFC-normalized source
// text. The schema lives in schema.sql; bump schemaVersion when it changes.
// Users clear an outdated database with 'kotoba cache clear' or by deleting
// the file.
package cache
