package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/stockwise/stockwise-core/internal/audit"
)

// auditChanSize is the buffer size for the async audit trail channel.
// Entries beyond this are dropped (best-effort) to avoid back-pressure on requests.
const auditChanSize = 256

// auditLog enqueues an audit entry for asynchronous write (best-effort).
// If the channel is full the entry is dropped and a warning is logged.
func (s *Server) auditLog(action, entityType, entityID, actor string, details map[string]any) {
	if s.auditRepo == nil || s.auditCh == nil {
		return
	}

	entry := &audit.Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Actor:      actor,
		Details:    details,
	}

	select {
	case s.auditCh <- entry:
	default:
		s.logger.Warn("audit channel full, dropping entry",
			"action", action,
			"entity_type", entityType,
		)
	}
}

// drainAuditTrail reads entries from the audit channel and writes them serially.
// This avoids unbounded goroutine creation and is kinder to SQLite's serial
// write model. It runs until the context is cancelled, then drains remaining
// entries.
func (s *Server) drainAuditTrail(ctx context.Context) {
	for {
		select {
		case entry := <-s.auditCh:
			if err := s.auditRepo.Record(context.Background(), entry); err != nil {
				s.logger.Error("audit write failed",
					"action", entry.Action,
					"entity_type", entry.EntityType,
					"error", err,
				)
			}
		case <-ctx.Done():
			for {
				select {
				case entry := <-s.auditCh:
					if err := s.auditRepo.Record(context.Background(), entry); err != nil {
						s.logger.Error("audit write failed during shutdown",
							"action", entry.Action,
							"error", err,
						)
					}
				default:
					return
				}
			}
		}
	}
}

// handleListAuditTrail returns paginated audit entries with optional filters.
//
// Query parameters:
//   - action: filter by action type (sign_in, refresh, denied, create, update, delete)
//   - entity_type: filter by entity type (user, product, product_type, person, token)
//   - actor: filter by acting username
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditTrail(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeInternalError(w, "audit trail not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		Actor:      q.Get("actor"),
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
