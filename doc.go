// Package auth implements session based authentication on top of the request
// pipeline.
//
// Credentials:
//   - Sessions and tokens are stored under a random internal key. Callers only
//     ever see the key sealed by an IDCipher, so a public identifier cannot be
//     forged or reused across categories.
//   - Every successful lookup slides the expiry to now+timeout. Lookups never
//     return expired records; tokens are removed once spent and at most one
//     live token exists per user and category.
//
// Services:
//   - AuthService registers users, logs them in and drives the password reset
//     and email confirmation flows. UserService returns user records and
//     requires a valid session for every method.
//   - Both are composed with pipeline.Service, so parameter validation,
//     resource acquisition and the session guard run before any handler code.
//
// Activity sinks:
//   - ActivitySink receives login, registration and token events. Sinks run
//     best-effort (errors are logged) so you can forward to a database or
//     queue without blocking authentication.
package auth
