// Package httpapi exposes the notes and posts services over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rs/cors"

	"github.com/goliatone/go-content-cache/auth"
	"github.com/goliatone/go-content-cache/content"
	"github.com/goliatone/go-content-cache/contentservice"
	"github.com/goliatone/go-content-cache/media"
)

const (
	msgNoFile       = "Файл не предоставлен"
	msgInvalidBody  = "Invalid request body"
	defaultBodySize = 5 << 20
)

// Config tunes the HTTP layer. Zero values take defaults.
type Config struct {
	// BodyLimit caps request bodies in bytes. Larger bodies get 413.
	BodyLimit int64
	// CORSOrigins are allowed with credentials.
	CORSOrigins []string
	// MaxPageSize clamps the pageSize query parameter.
	MaxPageSize int
	// UploadsPrefix is the URL path uploaded files are served under.
	UploadsPrefix string
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Notes *contentservice.Service[*content.Note]
	Posts *contentservice.Service[*content.Post]
	Auth  *auth.Authenticator
	Media media.Sink
	// Uploads serves stored images. Nil disables the static route.
	Uploads http.FileSystem
	Logger  *slog.Logger
}

// Server routes the content API to the services in Deps.
type Server struct {
	deps   Deps
	auth   *auth.Authenticator
	logger *slog.Logger
	cfg    Config
	mux    *http.ServeMux
}

// New registers every route and returns the server.
func New(deps Deps, cfg Config) *Server {
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = defaultBodySize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = content.MaxPageSize
	}
	if cfg.UploadsPrefix == "" {
		cfg.UploadsPrefix = media.DefaultURLPrefix
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		deps:   deps,
		auth:   deps.Auth,
		logger: logger,
		cfg:    cfg,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/uploads/images", s.guard(s.handleUploadImage))

	registerContent(s, "/api/notes", s.deps.Notes)
	registerContent(s, "/api/posts", s.deps.Posts)

	if s.deps.Uploads != nil {
		prefix := strings.TrimSuffix(s.cfg.UploadsPrefix, "/") + "/"
		files := http.FileServer(filesOnly{s.deps.Uploads})
		s.mux.Handle("GET "+prefix, http.StripPrefix(prefix, files))
	}
}

// Handler wraps the routes with CORS, request logging, panic recovery and
// the body size limit.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPut,
			http.MethodPatch, http.MethodPost, http.MethodDelete,
		},
		AllowedHeaders:   []string{"Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
	})
	return c.Handler(s.requestLog(s.recoverer(s.limitBody(s.mux))))
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, decodeError(err))
		return
	}
	res, err := s.auth.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			s.writeError(w, r, content.BadRequest(msgNoFile))
			return
		}
		s.writeError(w, r, decodeError(err))
		return
	}
	upload, err := formUpload(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if upload == nil {
		s.writeError(w, r, content.BadRequest(msgNoFile))
		return
	}

	url, err := s.deps.Media.Store(r.Context(), upload.Data, upload.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeError keeps body size errors intact and reports everything else
// as a malformed body.
func decodeError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return content.Wrap(content.KindBadRequest, msgInvalidBody, err)
}

// filesOnly hides directories so the static route never lists them.
type filesOnly struct {
	fs http.FileSystem
}

// Open rejects directories with fs.ErrNotExist.
func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}
