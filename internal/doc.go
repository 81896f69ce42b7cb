// Package internal documents the RunGoMX registration server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, rendering, and routing
// - domain: registration groups, event redirects, and account deletion
// - storage: database access and repositories (pgx + Postgres)
// - jobs: River workers for cleanup and notification emails
// - i18n: locale negotiation and message bundles
// - auth, audit, config, metrics, ratelimit, telemetry: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
