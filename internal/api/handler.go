package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/shaun/chatsync/internal/auth"
	"github.com/shaun/chatsync/internal/publish"
)

// Publisher publishes one file. Implemented by *publish.Publisher; inject a fake in tests.
type Publisher interface {
	Publish(ctx context.Context, filename, content string) (*publish.Result, error)
}

type Handler struct {
	pub      Publisher
	precheck func() error
	log      *slog.Logger
}

type HandlerOption func(*Handler)

// WithPrecheck runs check before every upload; a non-nil error fails the
// request without touching the publisher.
func WithPrecheck(check func() error) HandlerOption {
	return func(h *Handler) { h.precheck = check }
}

func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) { h.log = l }
}

func NewHandler(pub Publisher, opts ...HandlerOption) *Handler {
	h := &Handler{pub: pub}
	for _, o := range opts {
		o(h)
	}
	if h.log == nil {
		h.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return h
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: msg})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Upload publishes {content, filename} and answers {success, url}. Every
// failure is answered with 500 and {error}.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	log := h.log.With("request_id", RequestIDFromContext(r.Context()), "user", auth.UserFromRequest(r))

	if h.precheck != nil {
		if err := h.precheck(); err != nil {
			log.Error("upload rejected", "error", err)
			respondError(w, err.Error())
			return
		}
	}

	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("upload body too large", "limit", tooLarge.Limit)
		}
		respondError(w, "invalid json: "+err.Error())
		return
	}

	res, err := h.pub.Publish(r.Context(), req.Filename, req.Content)
	if err != nil {
		log.Error("upload failed", "filename", req.Filename, "error", err)
		respondError(w, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, PublishResponse{Success: true, URL: res.URL})
}
