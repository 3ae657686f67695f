package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/casthouse/streamgate/backend/moderation"
	"github.com/casthouse/streamgate/backend/telemetry"
)

// defaultActor is recorded when the admin tooling omits adminUsername.
const defaultActor = "admin"

// moderationRequest is the shared body shape of the mutation endpoints.
// Unused fields are simply left empty by each endpoint.
type moderationRequest struct {
	Fingerprint   string              `json:"fingerprint"`
	IP            string              `json:"ip"`
	Username      string              `json:"username"`
	Reason        string              `json:"reason"`
	Duration      moderation.Duration `json:"duration"`
	AdminUsername string              `json:"adminUsername"`
}

func decodeModerationRequest(w http.ResponseWriter, r *http.Request) (*moderationRequest, bool) {
	var req moderationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json: " + err.Error()})
		return nil, false
	}
	if req.AdminUsername == "" {
		req.AdminUsername = defaultActor
	}
	return &req, true
}

// HandleBannedList returns all currently active bans, newest first.
func (h *Handlers) HandleBannedList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	bans, err := h.svc.Registry().ActiveBans(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bans)
}

// HandleMutedList returns all currently active mutes, newest first.
func (h *Handlers) HandleMutedList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	mutes, err := h.svc.Registry().ActiveMutes(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutes)
}

// HandleBan issues a ban against a fingerprint, an ip, or both.
func (h *Handlers) HandleBan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, ok := decodeModerationRequest(w, r)
	if !ok {
		return
	}
	id := moderation.ResolveIdentity(req.Fingerprint, req.IP)
	rec, err := h.svc.Ban(r.Context(), id, req.Username, req.Reason, req.Duration, req.AdminUsername)
	if err != nil {
		writeErr(w, err)
		return
	}
	telemetry.LoggerWithCorr(r.Context()).Info("ban issued",
		slog.String("fingerprint", id.Fingerprint), slog.String("ip", id.Address),
		slog.String("by", req.AdminUsername), slog.String("component", "moderation_api"))
	writeJSON(w, http.StatusOK, rec)
}

// HandleUnban lifts all active bans matching the identity.
func (h *Handlers) HandleUnban(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, ok := decodeModerationRequest(w, r)
	if !ok {
		return
	}
	id := moderation.ResolveIdentity(req.Fingerprint, req.IP)
	affected, err := h.svc.Unban(r.Context(), id, req.AdminUsername)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"affected": affected})
}

// HandleMute issues a time-bounded mute against a fingerprint.
func (h *Handlers) HandleMute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, ok := decodeModerationRequest(w, r)
	if !ok {
		return
	}
	id := moderation.ResolveIdentity(req.Fingerprint, req.IP)
	rec, err := h.svc.Mute(r.Context(), id, req.Username, req.Reason, req.Duration, req.AdminUsername)
	if err != nil {
		writeErr(w, err)
		return
	}
	telemetry.LoggerWithCorr(r.Context()).Info("mute issued",
		slog.String("fingerprint", id.Fingerprint), slog.Int("escalation", rec.EscalationCount),
		slog.String("by", req.AdminUsername), slog.String("component", "moderation_api"))
	writeJSON(w, http.StatusOK, rec)
}

// HandleUnmute lifts all active mutes for the fingerprint.
func (h *Handlers) HandleUnmute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, ok := decodeModerationRequest(w, r)
	if !ok {
		return
	}
	id := moderation.ResolveIdentity(req.Fingerprint, req.IP)
	affected, err := h.svc.Unmute(r.Context(), id, req.AdminUsername)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"affected": affected})
}

// HandleActions returns recent audit entries, newest first.
func (h *Handlers) HandleActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := parseIntQuery(r, "limit", 100)
	entries, err := h.svc.Audit().Recent(r.Context(), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleClearMutes purges expired mute rows. Storage compaction only;
// skipping it forever is safe.
func (h *Handlers) HandleClearMutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	removed, err := h.svc.Registry().PurgeExpiredMutes(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

// HandleMessageDelete removes a chat message and audits the removal.
// Route: DELETE /moderation/message/{id}.
func (h *Handlers) HandleMessageDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	messageID := strings.TrimPrefix(r.URL.Path, "/moderation/message/")
	if messageID == "" || strings.Contains(messageID, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message id required"})
		return
	}
	actor := defaultActor
	// Body is optional on DELETE; only read it when present.
	if r.Body != nil {
		var req moderationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.AdminUsername != "" {
			actor = req.AdminUsername
		}
	}
	if err := h.svc.RecordMessageDeleted(r.Context(), messageID, actor); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message_id": messageID})
}
