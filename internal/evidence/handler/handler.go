package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/evidence"
	"caseflow/internal/platform/middleware"
	"caseflow/internal/transport/http/shared"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// maxUploadBytes caps evidence uploads at 32 MiB.
const maxUploadBytes = 32 << 20

// Service defines the interface for evidence ledger operations.
type Service interface {
	AppendBlock(ctx context.Context, caseID id.CaseID, actor id.Actor, upload evidence.Upload) (*evidence.Block, error)
	VerifyBlock(ctx context.Context, blockID id.BlockID) (*evidence.BlockVerification, error)
	VerifyChain(ctx context.Context, caseID id.CaseID) (*evidence.ChainReport, error)
	ListForCase(ctx context.Context, caseID id.CaseID) ([]evidence.Block, error)
	GetBlock(ctx context.Context, blockID id.BlockID) (*evidence.Block, error)
}

// Handler handles evidence ledger endpoints.
type Handler struct {
	logger       *slog.Logger
	ledger       Service
	jwtValidator middleware.JWTValidator
}

// New creates a new evidence Handler.
func New(ledger Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		ledger:       ledger,
		jwtValidator: jwtValidator,
	}
}

// Register registers the evidence routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

		r.Route("/cases/{caseID}/evidence", func(r chi.Router) {
			r.Post("/", h.handleUpload)
			r.Get("/", h.handleList)
			r.Post("/verify", h.handleVerifyChain)
		})
		r.Route("/evidence/{blockID}", func(r chi.Router) {
			r.Get("/", h.handleGetBlock)
			r.Post("/verify", h.handleVerifyBlock)
		})
	})
}

// handleUpload accepts a multipart form with a "file" part plus title,
// description, and evidence_type fields.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)

	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid multipart request"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "file part is required"))
		return
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "unreadable file part"))
		return
	}

	evidenceType, err := evidence.ParseEvidenceType(r.FormValue("evidence_type"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	block, err := h.ledger.AppendBlock(ctx, caseID, actor, evidence.Upload{
		Title:        r.FormValue("title"),
		Description:  r.FormValue("description"),
		EvidenceType: evidenceType,
		FileBytes:    fileBytes,
		FileName:     header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
	})
	if err != nil {
		h.writeServiceError(ctx, w, "append block", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, block.Snapshot())
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	blocks, err := h.ledger.ListForCase(ctx, caseID)
	if err != nil {
		h.writeServiceError(ctx, w, "list evidence", err)
		return
	}
	snapshots := make([]evidence.Snapshot, 0, len(blocks))
	for i := range blocks {
		snapshots = append(snapshots, blocks[i].Snapshot())
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"blocks": snapshots})
}

func (h *Handler) handleVerifyChain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	report, err := h.ledger.VerifyChain(ctx, caseID)
	if err != nil {
		h.writeServiceError(ctx, w, "verify chain", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	blockID, err := id.ParseBlockID(chi.URLParam(r, "blockID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	block, err := h.ledger.GetBlock(ctx, blockID)
	if err != nil {
		h.writeServiceError(ctx, w, "get block", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, block.Snapshot())
}

func (h *Handler) handleVerifyBlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	blockID, err := id.ParseBlockID(chi.URLParam(r, "blockID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	verdict, err := h.ledger.VerifyBlock(ctx, blockID)
	if err != nil {
		h.writeServiceError(ctx, w, "verify block", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, verdict)
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, name string, err error) {
	requestID := middleware.GetRequestID(ctx)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "evidence operation failed",
			"operation", name,
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "operation failed"))
		return
	}
	h.logger.WarnContext(ctx, "evidence operation rejected",
		"operation", name,
		"request_id", requestID,
		"error", err.Error(),
	)
	shared.WriteError(w, err)
}
