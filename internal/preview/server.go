// Package preview serves the publisher's artifacts over local HTTP so an
// issue can be reviewed in a browser before sending.
package preview

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/kingdomembassy/newsletter/internal/publish"
	"github.com/kingdomembassy/newsletter/internal/send"
)

var dateKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// Server exposes the newsletter archive read-only, plus a signup
// endpoint for local testing of the welcome email.
type Server struct {
	pub     *publish.Publisher
	welcome send.Provider // nil disables the welcome email
	log     zerolog.Logger
}

// New builds a Server over the publisher's directory.
func New(pub *publish.Publisher, welcome send.Provider, log zerolog.Logger) *Server {
	return &Server{pub: pub, welcome: welcome, log: log}
}

// Router wires the preview routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleLatest).Methods(http.MethodGet)
	r.HandleFunc("/archive", s.handleArchive).Methods(http.MethodGet)
	r.HandleFunc("/issues/{dateKey}", s.handleIssue).Methods(http.MethodGet)
	r.HandleFunc("/subscribe", s.handleSubscribe).Methods(http.MethodPost)
	return r
}

// ListenAndServe blocks serving the preview on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.log.Info().Str("addr", addr).Msg("preview server listening")
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	entries := s.pub.ReadArchive()
	if len(entries) == 0 {
		http.Error(w, "no published issues", http.StatusNotFound)
		return
	}
	s.serveIssueFile(w, r, entries[0].HTMLFile)
}

func (s *Server) handleArchive(w http.ResponseWriter, _ *http.Request) {
	entries := s.pub.ReadArchive()
	if entries == nil {
		entries = []publish.ArchiveEntry{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		s.log.Error().Err(err).Msg("encoding archive response")
	}
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	dateKey := mux.Vars(r)["dateKey"]
	if !dateKeyPattern.MatchString(dateKey) {
		http.Error(w, "invalid issue key", http.StatusBadRequest)
		return
	}
	s.serveIssueFile(w, r, dateKey+".html")
}

func (s *Server) serveIssueFile(w http.ResponseWriter, r *http.Request, name string) {
	path := filepath.Join(s.pub.Dir(), filepath.Base(name))
	if _, err := os.Stat(path); err != nil {
		http.Error(w, "issue not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, path)
}

type subscribeRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// handleSubscribe acknowledges the signup immediately and sends the
// welcome email from a detached goroutine. The send is intentionally
// never joined: a delivery failure is logged and must not affect the
// signup response.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !strings.Contains(req.Email, "@") {
		http.Error(w, "name and a valid email are required", http.StatusBadRequest)
		return
	}

	s.log.Info().Str("email", req.Email).Msg("signup received")

	if s.welcome != nil {
		go func(name, email string) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.welcome.Send(ctx, email, "Welcome to the newsletter", welcomeHTML(name)); err != nil {
				s.log.Error().Str("email", email).Err(err).Msg("welcome email failed")
			}
		}(req.Name, req.Email)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "subscribed"})
}

func welcomeHTML(name string) string {
	greeting := "Welcome"
	if name != "" {
		greeting = "Welcome, " + name
	}
	return "<div style=\"font-family:Georgia,serif\"><h2>" + greeting + "!</h2>" +
		"<p>You are on the list. The newsletter arrives once a month.</p></div>"
}
