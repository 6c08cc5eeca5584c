package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/ppiankov/reportlens/internal/backend"
	"github.com/ppiankov/reportlens/internal/chat"
	"github.com/ppiankov/reportlens/internal/factcheck"
	"github.com/ppiankov/reportlens/internal/statements"
	"github.com/ppiankov/reportlens/internal/store"
	"github.com/ppiankov/reportlens/internal/upload"
	"github.com/ppiankov/reportlens/internal/viewer"
)

const maxJSONBody = 1 << 20

var (
	errBadRequest = errors.New("bad request")
	errNotFound   = errors.New("not found")
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps err to a response status, using fallback for errors
// with no specific mapping
func statusFor(err error, fallback int) int {
	var statusErr *backend.StatusError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrNotAssistant),
		errors.Is(err, viewer.ErrClaimIndex),
		errors.Is(err, viewer.ErrPageCount),
		errors.Is(err, upload.ErrFileType),
		errors.Is(err, upload.ErrFileTooLarge),
		errors.Is(err, upload.ErrEmptyData),
		errors.Is(err, upload.ErrFilename):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrInFlight),
		errors.Is(err, factcheck.ErrPending),
		errors.Is(err, viewer.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, errNotFound),
		errors.Is(err, chat.ErrMessageNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, backend.ErrInvalidResponse),
		errors.Is(err, statements.ErrNoStatements),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &statusErr):
		return http.StatusBadGateway
	}
	return fallback
}

// decodeJSON reads an optional JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: invalid request body", errBadRequest)
	}
	return nil
}
