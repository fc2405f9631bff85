// Package cmd implements the cobra command tree for the tokenctl CLI: listing
// profiles, interactive login, printing valid access and ID tokens, version
// and shell completion.
package cmd
