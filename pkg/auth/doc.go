// Package auth provides caller identity for the tracker: API tokens, optional
// OpenID Connect ID tokens, and the resolver that turns a verified identity into
// the current user record.
//
// # API Tokens
//
// Tokens have the form plank_<base64url(32 random bytes)>. Only the SHA256
// hash is stored; the plaintext is returned once from CreateToken.
//
//	rec, plaintext, err := tokens.CreateToken(ctx, user.ID, "laptop", nil)
//
// Validated tokens are kept in a small expirable LRU keyed by hash so that a
// busy client does not hit the database on every request. Revocation evicts
// the entry immediately on the instance that handled it.
//
// # Identity
//
// Resolver.CurrentUser loads the user named by the AuthContext in the request
// context. The user row is read on every call; group memberships are never
// cached here.
package auth
