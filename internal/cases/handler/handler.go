package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/cases"
	"caseflow/internal/platform/middleware"
	"caseflow/internal/transport/http/shared"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// Service defines the interface for state-machine operations.
type Service interface {
	OpenCase(ctx context.Context, actor id.Actor, title string, firFiled bool, lawyer, client *id.ActorID) (*cases.Case, error)
	PoliceSubmitToCourt(ctx context.Context, caseID id.CaseID, actor id.Actor) (*cases.Case, error)
	JudgeTakeCognizance(ctx context.Context, caseID id.CaseID, actor id.Actor) (*cases.Case, error)
	JudgeAdvanceStage(ctx context.Context, caseID id.CaseID, actor id.Actor) (*cases.Case, error)
	LawyerSaveDraft(ctx context.Context, caseID id.CaseID, actor id.Actor, content string) (*cases.Case, error)
	LitigantApproveDraft(ctx context.Context, caseID id.CaseID, actor id.Actor) (*cases.Case, error)
	LitigantRejectDraft(ctx context.Context, caseID id.CaseID, actor id.Actor, reason string) (*cases.Case, error)
	MarkSummonsServed(ctx context.Context, caseID id.CaseID, actor id.Actor) (*cases.Case, error)
	UpdateBSACertification(ctx context.Context, caseID id.CaseID, actor id.Actor, certified bool, details string) (*cases.Case, error)
	PutOnHold(ctx context.Context, caseID id.CaseID, actor id.Actor, reason string) (*cases.Case, error)
	Resume(ctx context.Context, caseID id.CaseID, actor id.Actor) (*cases.Case, error)
	Get(ctx context.Context, caseID id.CaseID) (*cases.Case, error)
	JudgePool(ctx context.Context) ([]cases.Case, error)
}

// Handler handles case lifecycle endpoints.
type Handler struct {
	logger       *slog.Logger
	cases        Service
	jwtValidator middleware.JWTValidator
}

// New creates a new case Handler.
func New(svc Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		cases:        svc,
		jwtValidator: jwtValidator,
	}
}

// Register registers the case routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

		r.Route("/cases", func(r chi.Router) {
			r.Post("/", h.handleOpenCase)
			r.Get("/pool", h.handleJudgePool)
			r.Route("/{caseID}", func(r chi.Router) {
				r.Get("/", h.handleGetCase)
				r.Post("/submit", h.handlePoliceSubmit)
				r.Post("/cognizance", h.handleTakeCognizance)
				r.Post("/advance", h.handleAdvanceStage)
				r.Post("/draft", h.handleSaveDraft)
				r.Post("/draft/approve", h.handleApproveDraft)
				r.Post("/draft/reject", h.handleRejectDraft)
				r.Post("/summons", h.handleMarkSummons)
				r.Post("/bsa", h.handleUpdateBSA)
				r.Post("/hold", h.handlePutOnHold)
				r.Post("/resume", h.handleResume)
			})
		})
	})
}

type openCaseRequest struct {
	Title    string  `json:"title"`
	FIRFiled bool    `json:"fir_filed"`
	LawyerID *string `json:"lawyer_id,omitempty"`
	ClientID *string `json:"client_id,omitempty"`
}

type draftRequest struct {
	Content string `json:"content"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type bsaRequest struct {
	Certified bool   `json:"certified"`
	Details   string `json:"details,omitempty"`
}

func (h *Handler) handleOpenCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)

	var req openCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	lawyer, err := optionalActorID(req.LawyerID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	client, err := optionalActorID(req.ClientID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	c, err := h.cases.OpenCase(ctx, actor, req.Title, req.FIRFiled, lawyer, client)
	if err != nil {
		h.writeServiceError(ctx, w, "open case", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, c.Snapshot())
}

func (h *Handler) handleGetCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	c, err := h.cases.Get(ctx, caseID)
	if err != nil {
		h.writeServiceError(ctx, w, "get case", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, c.Snapshot())
}

func (h *Handler) handleJudgePool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pool, err := h.cases.JudgePool(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "list judge pool", err)
		return
	}
	snapshots := make([]cases.Snapshot, 0, len(pool))
	for i := range pool {
		snapshots = append(snapshots, pool[i].Snapshot())
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"cases": snapshots})
}

func (h *Handler) handlePoliceSubmit(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, "submit to court", func(ctx context.Context, caseID id.CaseID, actor id.Actor) (*cases.Case, error) {
		return h.cases.PoliceSubmitToCourt(ctx, caseID, actor)
	})
}

func (h *Handler) handleTakeCognizance(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, "take cognizance", func(ctx context.Context, caseID id.CaseID, actor id.Actor) (*cases.Case, error) {
		return h.cases.JudgeTakeCognizance(ctx, caseID, actor)
	})
}

func (h *Handler) handleAdvanceStage(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, "advance stage", func(ctx context.Context, caseID id.CaseID, actor id.Actor) (*cases.Case, error) {
		return h.cases.JudgeAdvanceStage(ctx, caseID, actor)
	})
}

func (h *Handler) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	h.runCommand(w, r, "save draft", func(ctx context.Context, caseID id.CaseID, actor id.Actor) (*cases.Case, error) {
		return h.cases.LawyerSaveDraft(ctx, caseID, actor, req.Content)
	})
}

func (h *Handler) handleApproveDraft(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, "approve draft", func(ctx context.Context, caseID id.CaseID, actor id.Actor) (*cases.Case, error) {
		return h.cases.LitigantApproveDraft(ctx, caseID, actor)
	})
}

func (h *Handler) handleRejectDraft(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	h.runCommand(w, r, "reject draft", func(ctx context.Context, caseID id.CaseID, actor id.Actor) (*cases.Case, error) {
		return h.cases.LitigantRejectDraft(ctx, caseID, actor, req.Reason)
	})
}

func (h *Handler) handleMarkSummons(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, "mark summons served", func(ctx context.Context, caseID id.CaseID, actor id.Actor) (*cases.Case, error) {
		return h.cases.MarkSummonsServed(ctx, caseID, actor)
	})
}

func (h *Handler) handleUpdateBSA(w http.ResponseWriter, r *http.Request) {
	var req bsaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	h.runCommand(w, r, "update bsa certification", func(ctx context.Context, caseID id.CaseID, actor id.Actor) (*cases.Case, error) {
		return h.cases.UpdateBSACertification(ctx, caseID, actor, req.Certified, req.Details)
	})
}

func (h *Handler) handlePutOnHold(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	h.runCommand(w, r, "put on hold", func(ctx context.Context, caseID id.CaseID, actor id.Actor) (*cases.Case, error) {
		return h.cases.PutOnHold(ctx, caseID, actor, req.Reason)
	})
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, "resume", func(ctx context.Context, caseID id.CaseID, actor id.Actor) (*cases.Case, error) {
		return h.cases.Resume(ctx, caseID, actor)
	})
}

// runCommand is the shared body of every transition endpoint: parse the case
// id, run the operation as the authenticated actor, return the new snapshot.
func (h *Handler) runCommand(
	w http.ResponseWriter,
	r *http.Request,
	name string,
	op func(ctx context.Context, caseID id.CaseID, actor id.Actor) (*cases.Case, error),
) {
	ctx := r.Context()
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	actor := middleware.GetActor(ctx)

	c, err := op(ctx, caseID, actor)
	if err != nil {
		h.writeServiceError(ctx, w, name, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, c.Snapshot())
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, name string, err error) {
	requestID := middleware.GetRequestID(ctx)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "case operation failed",
			"operation", name,
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "operation failed"))
		return
	}
	h.logger.WarnContext(ctx, "case operation rejected",
		"operation", name,
		"request_id", requestID,
		"error", err.Error(),
	)
	shared.WriteError(w, err)
}

func optionalActorID(s *string) (*id.ActorID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	actorID, err := id.ParseActorID(*s)
	if err != nil {
		return nil, err
	}
	return &actorID, nil
}
