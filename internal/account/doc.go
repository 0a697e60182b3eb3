// Package account is the client for the remote account service that
// authenticates primary accounts.
//
// Endpoints:
//
//	POST /auth/login   {identifier, secret, rememberMe}
//	                   -> {accessToken, refreshToken, expiresIn, accountSummary}
//	POST /auth/logout  Authorization: Bearer <accessToken>
//
// A 404 from /auth/login yields ErrAccountNotFound; any other non-2xx status
// yields a *StatusError. Network failures are returned wrapped and are never
// retried. Tokens issued here are opaque to this module.
package account
