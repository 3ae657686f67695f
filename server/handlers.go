// Package server exposes the HTTP API handlers.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/casthouse/streamgate/backend/chat"
	"github.com/casthouse/streamgate/backend/db"
	"github.com/casthouse/streamgate/backend/moderation"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db       *sql.DB
	ctx      context.Context
	svc      *moderation.Service
	messages *chat.Store
	started  time.Time
}

// NewHandlers creates a new Handlers instance wired over the Postgres
// storage and message backends.
func NewHandlers(ctx context.Context, database *sql.DB) *Handlers {
	messages := chat.NewStore(database)
	return &Handlers{
		db:       database,
		ctx:      ctx,
		svc:      moderation.NewService(db.NewModerationStore(database), messages),
		messages: messages,
		started:  time.Now(),
	}
}

// writeJSON encodes v with the JSON content type.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps engine errors onto the HTTP taxonomy: validation failures
// are the caller's fault (400), everything else is an operational failure
// (500). Internal details stay out of 500 bodies.
func writeErr(w http.ResponseWriter, err error) {
	if errors.Is(err, moderation.ErrValidation) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
