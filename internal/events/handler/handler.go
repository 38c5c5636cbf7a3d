package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/events"
	"caseflow/internal/platform/middleware"
	"caseflow/internal/transport/http/shared"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// Service defines the interface for timeline queries.
type Service interface {
	TimelineFor(ctx context.Context, caseID id.CaseID) ([]events.CaseEvent, error)
	RecentFor(ctx context.Context, caseID id.CaseID, limit int) ([]events.CaseEvent, error)
	FilterByType(ctx context.Context, caseID id.CaseID, eventType events.EventType) ([]events.CaseEvent, error)
	FilterByActorRole(ctx context.Context, caseID id.CaseID, role id.Role) ([]events.CaseEvent, error)
	LatestFor(ctx context.Context, caseID id.CaseID) (*events.CaseEvent, error)
}

// Handler serves the case timeline read surface.
type Handler struct {
	logger       *slog.Logger
	log          Service
	jwtValidator middleware.JWTValidator
}

// New creates a new timeline Handler.
func New(log Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		log:          log,
		jwtValidator: jwtValidator,
	}
}

// Register registers the timeline routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

		r.Get("/cases/{caseID}/events", h.handleTimeline)
		r.Get("/cases/{caseID}/events/latest", h.handleLatest)
	})
}

// handleTimeline returns a case's events oldest to newest. Query params
// narrow it: ?type= filters by event type, ?role= by actor role, and
// ?limit=N switches to the N most recent events, newest first.
func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var timeline []events.CaseEvent
	switch {
	case r.URL.Query().Get("type") != "":
		timeline, err = h.log.FilterByType(ctx, caseID, events.EventType(r.URL.Query().Get("type")))
	case r.URL.Query().Get("role") != "":
		var role id.Role
		role, err = id.ParseRole(r.URL.Query().Get("role"))
		if err == nil {
			timeline, err = h.log.FilterByActorRole(ctx, caseID, role)
		}
	case r.URL.Query().Get("limit") != "":
		var limit int
		limit, err = strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil || limit <= 0 {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer"))
			return
		}
		timeline, err = h.log.RecentFor(ctx, caseID, limit)
	default:
		timeline, err = h.log.TimelineFor(ctx, caseID)
	}
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "timeline query failed",
				"request_id", middleware.GetRequestID(ctx),
				"error", err.Error(),
			)
			shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "timeline query failed"))
			return
		}
		shared.WriteError(w, err)
		return
	}

	if timeline == nil {
		timeline = []events.CaseEvent{}
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"events": timeline})
}

func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	event, err := h.log.LatestFor(ctx, caseID)
	if err != nil {
		h.logger.ErrorContext(ctx, "latest event query failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "timeline query failed"))
		return
	}
	if event == nil {
		shared.WriteError(w, dErrors.Newf(dErrors.CodeNotFound, "case %s has no events", caseID))
		return
	}
	shared.WriteJSON(w, http.StatusOK, event)
}
