// Package site serves the RepairLoader pages.  Pages only read the session
// stored by siteauth's middleware and the forum catalog; all sign-in work
// happens under /auth.
package site

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	sa "github.com/repairloader/siteauth"
	"github.com/repairloader/siteauth/forum"
)

//go:embed templates/*.html
var templateFS embed.FS

// Providers says which sign-in options the login page offers
type Providers struct {
	GitHub      bool
	Google      bool
	Email       bool
	Credentials bool
}

type Server struct {
	Forum forum.Store

	// Auth routes, mounted at /auth with the prefix stripped
	Auth http.Handler

	Middleware *sa.Middleware
	Providers  Providers

	router    *mux.Router
	templates map[string]*template.Template
}

func NewServer(store forum.Store, auth http.Handler, middleware *sa.Middleware, providers Providers) (*Server, error) {
	s := &Server{Forum: store, Auth: auth, Middleware: middleware, Providers: providers}
	if err := s.parseTemplates(); err != nil {
		return nil, err
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.Auth != nil {
		r.PathPrefix("/auth/").Handler(http.StripPrefix("/auth", s.Auth))
	}

	pages := r.NewRoute().Subrouter()
	pages.Use(s.Middleware.ExtractSession)
	pages.HandleFunc("/", s.handleHome).Methods(http.MethodGet)
	pages.HandleFunc("/login", s.handleLogin).Methods(http.MethodGet)
	pages.HandleFunc("/signup", s.handleSignup).Methods(http.MethodGet)
	pages.HandleFunc("/forum", s.handleForum).Methods(http.MethodGet)
	pages.Handle("/forum/new", s.Middleware.RequireSession(http.HandlerFunc(s.handleNewThread))).Methods(http.MethodGet)
	pages.HandleFunc("/tools", s.handleTools).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	s.router = r
}

var pageNames = []string{"home", "login", "signup", "forum", "forum_new", "tools", "not_found"}

func (s *Server) parseTemplates() error {
	funcs := template.FuncMap{
		"displayName": func(a *forum.Author) string { return a.DisplayName() },
	}
	s.templates = make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return fmt.Errorf("parsing %s template: %w", name, err)
		}
		s.templates[name] = t
	}
	return nil
}

// page is what every template receives
type page struct {
	Title   string
	Session *sa.AppSession
	Data    any
}

// DisplayName is what the header shows for the signed in user
func (p page) DisplayName() string {
	if p.Session == nil {
		return ""
	}
	switch {
	case p.Session.Handle != "":
		return p.Session.Handle
	case p.Session.Name != "":
		return p.Session.Name
	case p.Session.Email != "":
		return p.Session.Email
	}
	return "Account"
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	t, ok := s.templates[name]
	if !ok {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	var buf strings.Builder
	p := page{Title: title, Session: sa.AppSessionFromContext(r.Context()), Data: data}
	if err := t.Execute(&buf, p); err != nil {
		slog.Error("template failed", "page", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprint(w, buf.String())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "not_found", "Not found", nil)
}
