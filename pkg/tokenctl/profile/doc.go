// Package profile defines the persisted credential record of a tokenctl
// profile and the file store that keeps one record per profile name under a
// private directory.
package profile
