package site

import (
	"log/slog"
	"net/http"
	"net/url"

	sa "github.com/repairloader/siteauth"
	"github.com/repairloader/siteauth/forum"
)

// number of tools featured on the home page
const featuredTools = 3

// Messages shown for the ?error= codes the auth routes redirect with
var errorMessages = map[string]string{
	sa.ErrCodeOAuthSignin:           "Could not start sign-in with that provider. Please try again.",
	sa.ErrCodeOAuthCallback:         "Sign-in with that provider failed. Please try again.",
	sa.ErrCodeOAuthAccountNotLinked: "That email is already registered. Sign in the way you did before.",
	sa.ErrCodeEmailSignin:           "We could not send the sign-in email. Check the address and try again.",
	sa.ErrCodeVerification:          "That sign-in link is invalid or has expired. Request a new one.",
	sa.ErrCodeCredentialsSignin:     "Invalid email or password.",
	sa.ErrCodeConfiguration:         "That sign-in option is not available right now.",
	sa.ErrCodeSessionRequired:       "Please sign in to continue.",

	sa.ErrCodeMissingField:  "Email and password are required.",
	sa.ErrCodeInvalidEmail:  "Please enter a valid email address.",
	sa.ErrCodeInvalidHandle: "Handles are 3 to 20 letters, digits, dashes or underscores.",
	sa.ErrCodeWeakPassword:  "Passwords need at least 8 characters.",
	sa.ErrCodeEmailExists:   "An account with that email already exists.",
	sa.ErrCodeHandleTaken:   "That handle is already taken.",
	sa.ErrCodeSignupFailed:  "Could not create your account. Please try again.",
}

func errorMessage(code string) string {
	if code == "" {
		return ""
	}
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "Something went wrong. Please try again."
}

type homeData struct {
	Tools []*forum.Tool
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	tools, err := s.Forum.ListTools(r.Context())
	if err != nil {
		slog.Error("listing tools failed", "error", err)
	}
	if len(tools) > featuredTools {
		tools = tools[:featuredTools]
	}
	s.render(w, r, http.StatusOK, "home", "Fix Tech Problems. Share Solutions.", homeData{Tools: tools})
}

type authFormData struct {
	Error       string
	CheckEmail  bool
	CallbackURL string
	Providers   Providers

	// query string carrying the callback to the provider links
	CallbackQuery string
}

func (s *Server) authFormData(r *http.Request) authFormData {
	q := r.URL.Query()
	d := authFormData{
		Error:       errorMessage(q.Get("error")),
		CheckEmail:  q.Get("check") == "email",
		CallbackURL: q.Get("callbackUrl"),
		Providers:   s.Providers,
	}
	if d.CallbackURL != "" {
		d.CallbackQuery = "?" + url.Values{"callbackUrl": {d.CallbackURL}}.Encode()
	}
	return d
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if sa.AppSessionFromContext(r.Context()) != nil && r.URL.Query().Get("error") == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	s.render(w, r, http.StatusOK, "login", "Sign in", s.authFormData(r))
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if sa.AppSessionFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	s.render(w, r, http.StatusOK, "signup", "Create an account", s.authFormData(r))
}

type forumData struct {
	Categories    []*forum.CategorySummary
	RecentThreads []*forum.ThreadSummary
	TotalThreads  int64
	TotalUsers    int64
}

func (s *Server) handleForum(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var d forumData
	var err error
	if d.Categories, err = s.Forum.ListCategories(ctx); err != nil {
		s.serverError(w, r, "listing categories", err)
		return
	}
	if d.TotalThreads, err = s.Forum.CountThreads(ctx); err != nil {
		s.serverError(w, r, "counting threads", err)
		return
	}
	if d.TotalUsers, err = s.Forum.CountUsers(ctx); err != nil {
		s.serverError(w, r, "counting users", err)
		return
	}
	if d.RecentThreads, err = s.Forum.RecentThreads(ctx, 5); err != nil {
		s.serverError(w, r, "listing recent threads", err)
		return
	}
	s.render(w, r, http.StatusOK, "forum", "Forum", d)
}

func (s *Server) handleNewThread(w http.ResponseWriter, r *http.Request) {
	categories, err := s.Forum.ListCategories(r.Context())
	if err != nil {
		s.serverError(w, r, "listing categories", err)
		return
	}
	s.render(w, r, http.StatusOK, "forum_new", "New thread", categories)
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	tools, err := s.Forum.ListTools(r.Context())
	if err != nil {
		s.serverError(w, r, "listing tools", err)
		return
	}
	s.render(w, r, http.StatusOK, "tools", "Diagnostic tools", tools)
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, what string, err error) {
	slog.Error(what+" failed", "path", r.URL.Path, "error", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}
