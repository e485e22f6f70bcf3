// Package access provides the role-based access gate for the paper archive.
//
// This package implements:
//   - The closed Role and Permission catalogs
//   - Identity snapshots decoded from the identity store
//   - The static route Policy (role homes, permission routes, route permissions)
//   - Evaluate, the pure decision function run on every protected navigation
//
// The gate never performs I/O and never fails: a missing or malformed identity
// always degrades to a redirect, normally to the login page.
package access
