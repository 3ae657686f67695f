package server

import (
	"net/http"
	"time"

	"github.com/casthouse/streamgate/backend/telemetry"
)

// HandleStatus returns a monitoring summary: current restriction counts,
// audit and chat volume, and uptime. It also refreshes the active-ban and
// active-mute gauges so Prometheus stays in step with the dashboard.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	bans, err := h.svc.Registry().ActiveBans(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	mutes, err := h.svc.Registry().ActiveMutes(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	telemetry.SetActiveRestrictions(len(bans), len(mutes))

	var auditTotal, chatTotal int
	_ = h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_logs`).Scan(&auditTotal)
	_ = h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_messages`).Scan(&chatTotal)

	writeJSON(w, http.StatusOK, map[string]any{
		"active_bans":    len(bans),
		"active_mutes":   len(mutes),
		"audit_entries":  auditTotal,
		"chat_messages":  chatTotal,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}
