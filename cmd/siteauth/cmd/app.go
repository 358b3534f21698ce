package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"cloud.google.com/go/datastore"
	"gorm.io/gorm"

	sa "github.com/repairloader/siteauth"
	"github.com/repairloader/siteauth/config"
	"github.com/repairloader/siteauth/forum"
	oa2 "github.com/repairloader/siteauth/oauth2"
	"github.com/repairloader/siteauth/site"
	fsstore "github.com/repairloader/siteauth/stores/fs"
	gaestore "github.com/repairloader/siteauth/stores/gae"
	gormstore "github.com/repairloader/siteauth/stores/gorm"
)

// AppName prefixes every cookie the server sets
const AppName = "repairloader"

// stores holds the opened backends.  The forum catalog always lives in the
// relational database; identities follow STORE_BACKEND.
type stores struct {
	db         *gorm.DB
	datastore  *datastore.Client
	Identities sa.IdentityStore
	Forum      forum.Store
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	db, err := gormstore.Open(cfg.DatabaseURL, cfg.Debug)
	if err != nil {
		return nil, err
	}
	s := &stores{db: db, Forum: gormstore.NewForumStore(db)}

	switch cfg.StoreBackend {
	case config.BackendGorm:
		s.Identities = gormstore.NewIdentityStore(db)
	case config.BackendFS:
		s.Identities = fsstore.NewFSIdentityStore(cfg.FSStorePath)
	case config.BackendDatastore:
		client, err := datastore.NewClient(ctx, cfg.DatastoreProject)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connecting to datastore: %w", err)
		}
		s.datastore = client
		s.Identities = gaestore.NewIdentityStore(client, cfg.DatastoreNamespace)
	default:
		s.Close()
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	slog.Info("stores opened", "identities", cfg.StoreBackend, "postgres", gormstore.IsPostgresDSN(cfg.DatabaseURL))
	return s, nil
}

func (s *stores) Close() {
	if s.datastore != nil {
		s.datastore.Close()
	}
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}

// app is a fully wired server
type app struct {
	stores *stores
	auth   *sa.SiteAuth
	site   *site.Server
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	// Relational tables are cheap to ensure on every start
	if err := gormstore.AutoMigrate(st.db); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	auth, providers, err := newSiteAuth(cfg, st.Identities)
	if err != nil {
		st.Close()
		return nil, err
	}
	pages, err := site.NewServer(st.Forum, auth.Handler(), &auth.Middleware, providers)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &app{stores: st, auth: auth, site: pages}, nil
}

func (a *app) Handler() http.Handler {
	return a.site
}

func (a *app) Close() {
	a.stores.Close()
}

// newSiteAuth mounts every sign-in provider the configuration enables
func newSiteAuth(cfg *config.Config, identities sa.IdentityStore) (*sa.SiteAuth, site.Providers, error) {
	auth := (&sa.SiteAuth{
		AppName:       AppName,
		Store:         identities,
		BaseURL:       cfg.BaseURL,
		SecretKey:     cfg.AuthSecret,
		SessionMaxAge: cfg.SessionMaxAge,
		SecureCookies: strings.HasPrefix(cfg.BaseURL, "https://"),
	}).EnsureDefaults()

	providers := site.Providers{Email: true, Credentials: true}

	if cfg.GitHub.Enabled() {
		gh := oa2.NewGithubOAuth2(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.BaseURL+"/auth/callback/github", auth.CompleteSignIn)
		gh.OnError = auth.HandleLoginError
		auth.AddProvider(gh)
		providers.GitHub = true
	}
	if cfg.Google.Enabled() {
		g := oa2.NewGoogleOAuth2(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.BaseURL+"/auth/callback/google", auth.CompleteSignIn)
		g.OnError = auth.HandleLoginError
		auth.AddProvider(g)
		providers.Google = true
	}

	var sender sa.SendEmail = &sa.ConsoleEmailSender{}
	if cfg.ResendAPIKey != "" {
		resend, err := sa.NewResendEmailSender(cfg.ResendAPIKey, cfg.EmailFrom)
		if err != nil {
			return nil, providers, err
		}
		sender = resend
	} else {
		slog.Warn("RESEND_API_KEY not set, sign-in links are only logged")
	}
	auth.AddProvider(&sa.EmailLinkAuth{
		Tokens:          identities,
		Sender:          sender,
		BaseURL:         cfg.BaseURL,
		HandlePrincipal: auth.CompleteSignIn,
		OnError:         auth.HandleLoginError,
	})

	auth.HandleCredentials(&sa.CredentialsAuth{
		Verify:          sa.NewCredentialsVerifier(identities),
		HandlePrincipal: auth.CompleteSignIn,
		OnLoginError:    auth.HandleLoginError,
	})
	auth.HandleSignup(&sa.SignupHandler{
		CreateUser:      sa.NewCreateUserFunc(identities),
		HandlePrincipal: auth.CompleteSignIn,
		OnSignupError:   auth.HandleSignupError,
	})
	return auth, providers, nil
}
