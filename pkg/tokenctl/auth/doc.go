// Package auth implements the credential lifecycle of tokenctl profiles: the
// authorization code flow with PKCE and a loopback callback, the refresh token
// flow, and the expiry checks that decide between the cached token and a
// refresh.
package auth
