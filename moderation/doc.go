// Package moderation implements the ban/mute engine for stream chat.
//
// Restrictions are keyed by a resolved Identity (client fingerprint plus
// network address). Bans match on either field, mutes on fingerprint only.
// Records expire lazily: every read compares the stored expiry against the
// caller's clock, so no background sweep is ever required for correctness.
// All admin actions append an entry to the audit log, whether or not they
// changed anything.
//
// The engine is storage-agnostic via the Store interface. The db package
// provides the Postgres backend; MemoryStore in this package is used by
// tests and as a dependency-free fallback.
package moderation
