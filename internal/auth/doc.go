// Package auth provides principal resolution, permissions and session tokens
// for shipdesk.
//
// # Principals
//
// Two kinds of actors authenticate:
//
//   - PrimaryAccount: a seller authenticated by the remote account service.
//     Its token is issued remotely and is opaque to this package.
//   - DelegatedPrincipal: a team member acting under a parent account,
//     resolved from the local directory without any remote call.
//
// # Permissions
//
// Primary accounts always hold the full permission catalog. Delegated
// principals hold exactly their stored list:
//
//	EffectivePermissions(primary)   // PermissionCatalog()
//	EffectivePermissions(delegated) // copy of delegated.Permissions
//
// # Tokens
//
// Delegated sessions carry a locally minted token of three base64 segments:
//
//	base64({"alg":"none","typ":"session"}) "." base64(claims) "." base64("placeholder_<sub>_<iatMillis>")
//
// The third segment is not a signature and is never verified; such tokens are
// only validated locally. Setting session.token_signing to "hs256" switches to
// an HMAC-SHA256 JWT with the same claims for deployments where tokens cross
// a trust boundary. Every token expires TokenTTL (24h) after issue; Decode
// does not check expiry, IsExpired does.
//
// # Delegated secrets
//
// SecretPolicyVerify (default) requires a stored bcrypt hash.
// SecretPolicyIdentifierOnly matches by email alone and logs a warning on each
// login; use it only behind an identity provider that verified the secret.
package auth
