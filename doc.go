// Package auth is the authentication and verification core of a membership
// backend: token issuance and refresh, time boxed email verification, and
// the orchestration of register, login and provider login on top of them.
//
// Tokens:
//   - TokenServiceImpl signs HS256 access (2h) and refresh (3d) tokens for an
//     IdentityClaim. The signing key is injected through TokenConfig.
//   - Each member has at most one honored refresh token. Stores replace it with
//     SwapRefreshToken, a compare-and-swap, so a superseded token can never be
//     rotated again.
//
// Email verification:
//   - NewVerificationStateMachine tracks one attempt per email through
//     unverified, verified and expired. CheckCode decides first, persists the
//     transition, then reports the outcome, so an expired attempt is stored as
//     expired even though the call fails with ErrExpiredAuth.
//
// Orchestration:
//   - MemberAuthenticator runs each flow with a fixed error precedence and
//     returns go-errors sentinels (ErrDuplicateMember, ErrNotCompleteAuth, ...)
//     that callers can match with errors.Is.
//   - Stores are interfaces. Bun implementations live in this package, a
//     redis VerificationStore lives in the repository package.
//
// Activity sinks:
//   - ActivitySink receives best effort audit events for logins, registrations
//     and verification transitions. Sink errors are logged and dropped.
package auth
