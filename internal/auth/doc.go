// Package auth provides bearer-token authorisation for the codec bridge API.
//
// Tokens are HS256 JWTs signed with security.jwt.secret and carry one of
// three roles:
//   - viewer: read codec state
//   - operator: viewer plus mute, profile and session control
//   - admin: operator plus reboot
//
// There is no user store. Tokens are minted with `codecbridge token` and
// checked by signature and expiry only.
package auth
