// Package identity is an authentication and session-lifecycle backend: it
// verifies credentials, issues and rotates bearer tokens, tracks account
// lockout, steps up to two-factor challenges, and handles password-reset
// token flows.
//
// Persistence discipline:
//   - Every stored record embeds repository.AuditFields and is managed by the
//     generic repository contract: deletes are logical (status flips to
//     deleted, the row stays), all default reads exclude deleted records, and
//     created/updated stamps are written exclusively by the store at commit
//     time from the ambient actor context.
//   - Writes are staged into a shared unit of work; a single SaveChanges call
//     commits them together or not at all.
//
// Session lifecycle:
//   - Auther orchestrates login, refresh, logout, and the two-factor step-up.
//     A principal holds at most one active refresh token; every successful
//     login or refresh overwrites it, so each refresh token is usable exactly
//     once before being replaced.
//   - Accounts covers registration, email confirmation, and the
//     password-reset and password-change flows. Reset and two-factor codes
//     come from a TokenProvider bound to the principal's security stamp;
//     rotating the stamp invalidates every outstanding code.
package identity
