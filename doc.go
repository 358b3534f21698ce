// Package siteauth is the authentication core of the RepairLoader site.
//
// Users sign in through one of three kinds of provider:
//
//   - OAuth (GitHub, Google), see the oauth2 subpackage
//   - a single use link mailed to the user (EmailLinkAuth)
//   - email and password (CredentialsAuth)
//
// Every provider reports a Principal to SiteAuth.CompleteSignIn.  OAuth and
// email-link principals are mapped onto a User and get a persisted Session row;
// password sign-ins get a signed session token whose only trusted claim is the
// user id.
//
// # Sessions
//
// On each request SiteAuth.SessionContextFromRequest collects whichever of the
// two is present and SessionResolver.Resolve turns it into the AppSession that
// pages read:
//
//	auth := siteauth.New("repairloader", store)
//	auth.HandleCredentials(&siteauth.CredentialsAuth{
//	    Verify:          siteauth.NewCredentialsVerifier(store),
//	    HandlePrincipal: auth.CompleteSignIn,
//	    OnLoginError:    auth.HandleLoginError,
//	})
//
//	router.PathPrefix("/auth/").Handler(http.StripPrefix("/auth", auth.Handler()))
//	router.Handle("/forum/new", auth.Middleware.RequireSession(newThreadPage))
//
// Role and handle are always read from the current User row, so a role change
// applies to token sessions on their next request.
//
// # Stores
//
// IdentityStore has three implementations: stores/gorm (Postgres or SQLite),
// stores/fs (JSON files, for development and tests) and stores/gae (Cloud Datastore).
package siteauth
