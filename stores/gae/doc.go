//go:build !wasm
// +build !wasm

// Package gae provides a Google Cloud Datastore implementation of
// siteauth.IdentityStore, for deployments on Google Cloud.
//
// # Datastore Kinds
//
//   - User: User accounts keyed by user id
//   - UserEmail, Handle: Reservations that keep emails and handles unique
//   - Account: OAuth and email-link accounts, keyed by provider + ":" + id
//   - Session: Persisted sessions keyed by session token
//   - VerificationToken: Hashed magic link tokens
//
// # Namespacing
//
// Pass a namespace to isolate environments sharing one project:
//
//	client, _ := datastore.NewClient(ctx, projectID)
//	store := gae.NewIdentityStore(client, "staging")
package gae
