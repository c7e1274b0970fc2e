// Package auth implements the stateless authentication core for Stockwise.
//
// It covers the full token lifecycle:
//   - HMAC-SHA256 signed access/refresh tokens (HS256 JWTs) with a kind
//     discriminant, so a refresh token can never pass as an access credential
//   - Policy-driven issuance: access tokens default to one hour, refresh
//     tokens to three times that
//   - Sign-in against the user directory with Argon2id password verification
//   - Refresh exchange that re-resolves the subject's current authorities,
//     bounding permission-change propagation to one access token lifetime
//
// Tokens are fully self-contained: verification needs only the shared signing
// secret and performs no token-store lookup. The only I/O on any auth path is
// the user directory read.
//
// Unknown-username and wrong-password failures deliberately collapse to the
// single ErrAuthenticationFailed value so callers cannot enumerate accounts;
// the distinct reasons are logged server-side only.
package auth
