//go:build !wasm
// +build !wasm

// Package gorm provides the relational implementations of siteauth.IdentityStore
// and forum.Store.  Production runs on PostgreSQL; development and tests use
// SQLite through the pure Go glebarez driver.
//
// # Database Schema
//
// AutoMigrate creates:
//   - users: User accounts, unique email and handle
//   - accounts: OAuth and email-link accounts linked to users
//   - sessions: Persisted sessions
//   - verification_tokens: Hashed magic link tokens
//   - categories, threads, posts, tags, tools: the forum catalog
//
// # Usage
//
//	db, _ := gormstore.Open(os.Getenv("DATABASE_URL"), false)
//	gormstore.AutoMigrate(db)
//	identities := gormstore.NewIdentityStore(db)
//	catalog := gormstore.NewForumStore(db)
package gorm
