// Package instapapertest provides an in-process fake of the Instapaper API.
package instapapertest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Credentials accepted by the fake.
const (
	Username    = "reader@example.com"
	Password    = "hunter2"
	Token       = "fake-token"
	TokenSecret = "fake-secret"
)

// Bookmark is a stored item.
type Bookmark struct {
	ID      int64
	URL     string
	Title   string
	Starred bool
	Text    string
}

// Server is a fake Instapaper API. Folders map folder ids to bookmark ids.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	bookmarks map[int64]Bookmark
	folders   map[string][]int64
	custom    map[string]string
	calls     map[string]int
	stamps    []time.Time
	failNext  map[string]int
}

// New starts a fake server.
func New() *Server {
	s := &Server{
		bookmarks: map[int64]Bookmark{},
		folders:   map[string][]int64{},
		custom:    map[string]string{},
		calls:     map[string]int{},
		failNext:  map[string]int{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/access_token", s.accessToken)
	mux.HandleFunc("/bookmarks/list", s.authed(s.list))
	mux.HandleFunc("/folders/list", s.authed(s.folderList))
	mux.HandleFunc("/bookmarks/get_text", s.authed(s.getText))
	s.Server = httptest.NewServer(mux)
	return s
}

// Add stores b in folder. A numeric folder is registered as a custom folder.
func (s *Server) Add(folder string, b Bookmark) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.bookmarks[b.ID]; ok && b.Text == "" {
		b.Text = existing.Text
	}
	s.bookmarks[b.ID] = b
	s.folders[folder] = append(s.folders[folder], b.ID)
}

// AddCustomFolder registers a custom folder title.
func (s *Server) AddCustomFolder(id, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.custom[id] = title
}

// FailNext makes the next n calls to endpoint answer 429.
func (s *Server) FailNext(endpoint string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[endpoint] = n
}

// Calls returns how often endpoint (e.g. "bookmarks/list") was hit.
func (s *Server) Calls(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[endpoint]
}

// Stamps returns the arrival times of every request.
func (s *Server) Stamps() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.stamps...)
}

func (s *Server) record(r *http.Request) (string, bool) {
	endpoint := strings.TrimPrefix(r.URL.Path, "/")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[endpoint]++
	s.stamps = append(s.stamps, time.Now())
	if s.failNext[endpoint] > 0 {
		s.failNext[endpoint]--
		return endpoint, true
	}
	return endpoint, false
}

func (s *Server) accessToken(w http.ResponseWriter, r *http.Request) {
	if _, fail := s.record(r); fail {
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}
	if !strings.HasPrefix(r.Header.Get("Authorization"), "OAuth ") || r.ParseForm() != nil {
		http.Error(w, "unsigned", http.StatusUnauthorized)
		return
	}
	if r.PostForm.Get("x_auth_mode") != "client_auth" ||
		r.PostForm.Get("x_auth_username") != Username ||
		r.PostForm.Get("x_auth_password") != Password {
		http.Error(w, "Invalid xAuth credentials.", http.StatusUnauthorized)
		return
	}
	_, _ = fmt.Fprintf(w, "oauth_token=%s&oauth_token_secret=%s", Token, TokenSecret)
}

func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, fail := s.record(r); fail {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.Contains(auth, `oauth_token="`+Token+`"`) || !strings.Contains(auth, "oauth_signature=") {
			http.Error(w, `[{"type":"error","error_code":403,"message":"Not logged in"}]`, http.StatusForbidden)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		next(w, r)
	}
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	folder := r.PostForm.Get("folder_id")
	if folder == "" {
		folder = "unread"
	}
	limit, err := strconv.Atoi(r.PostForm.Get("limit"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 25
	}
	have := map[int64]bool{}
	for _, raw := range strings.Split(r.PostForm.Get("have"), ",") {
		// have entries may carry ":hash:progress:timestamp" suffixes.
		id, err := strconv.ParseInt(strings.SplitN(raw, ":", 2)[0], 10, 64)
		if err == nil {
			have[id] = true
		}
	}

	s.mu.Lock()
	out := []map[string]any{
		{"type": "user", "user_id": 1, "username": Username},
		{"type": "meta"},
	}
	for _, id := range s.folders[folder] {
		if have[id] {
			continue
		}
		if len(out)-2 >= limit {
			break
		}
		b := s.bookmarks[id]
		starred := "0"
		if b.Starred {
			starred = "1"
		}
		out = append(out, map[string]any{
			"type":        "bookmark",
			"bookmark_id": b.ID,
			"url":         b.URL,
			"title":       b.Title,
			"starred":     starred,
			"time":        1700000000 + b.ID,
			"progress":    0.5,
			"hash":        fmt.Sprintf("h%d", b.ID),
		})
	}
	s.mu.Unlock()
	writeJSON(w, out)
}

func (s *Server) folderList(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := make([]map[string]any, 0, len(s.custom))
	for id, title := range s.custom {
		n, _ := strconv.ParseInt(id, 10, 64)
		out = append(out, map[string]any{"type": "folder", "folder_id": n, "title": title})
	}
	s.mu.Unlock()
	writeJSON(w, out)
}

func (s *Server) getText(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PostForm.Get("bookmark_id"), 10, 64)
	s.mu.Lock()
	b, ok := s.bookmarks[id]
	s.mu.Unlock()
	if err != nil || !ok {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`[{"type":"error","error_code":1241,"message":"Invalid or missing bookmark_id"}]`))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(b.Text))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
