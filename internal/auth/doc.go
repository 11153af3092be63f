// Package auth is the credential-and-session layer of the user service.
//
// It provides:
//   - Hasher: salted password hashing (argon2id by default, bcrypt supported)
//     whose Verify never fails loudly and costs the same for malformed hashes
//   - TokenService: HS256 bearer tokens carrying {sub, role, iat, exp} with a
//     secret supplied at construction
//   - AccountStore / UserRepository: the users table on SQLite or PostgreSQL
//   - Authenticator: the per-request Extract → Verify → Resolve → Liveness
//     pipeline that always re-reads the account from the store
//   - IsAdmin / IsSelfOrAdmin / Authorize: the authorisation policy
//   - Service: registration and login
//
// The token is trusted only for which account to look up. Role and active
// state always come from the store, so a demotion or a block takes effect on
// the next request rather than at token expiry.
package auth
