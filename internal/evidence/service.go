package evidence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"caseflow/internal/broadcast"
	"caseflow/internal/caselock"
	"caseflow/internal/events"
	"caseflow/internal/evidence/metrics"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/platform/sentinel"
	"caseflow/pkg/platform/tx"
)

// Broadcaster is the post-commit notification contract, identical to the one
// the state machine uses.
type Broadcaster interface {
	Publish(topic broadcast.Topic, payload map[string]string)
}

// CaseChecker answers whether a case exists. The ledger refuses to grow a
// chain for a case nobody opened.
type CaseChecker interface {
	Exists(ctx context.Context, caseID id.CaseID) (bool, error)
}

// Upload is the input for one evidence append.
type Upload struct {
	Title        string
	Description  string
	EvidenceType EvidenceType
	FileBytes    []byte
	FileName     string
	ContentType  string
}

// Ledger owns each case's hash chain: it is the only writer of evidence
// blocks and the authority on their integrity.
type Ledger struct {
	store   Store
	log     *events.Log
	locks   caselock.Locker
	runner  *tx.Runner
	notify  Broadcaster
	cases   CaseChecker
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewLedger wires the evidence ledger. metrics may be nil in tests.
func NewLedger(
	store Store,
	log *events.Log,
	locks caselock.Locker,
	runner *tx.Runner,
	notify Broadcaster,
	cases CaseChecker,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Ledger {
	return &Ledger{
		store:   store,
		log:     log,
		locks:   locks,
		runner:  runner,
		notify:  notify,
		cases:   cases,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("caseflow/evidence"),
		now:     time.Now,
	}
}

// WithClock overrides the ledger clock. Tests use this to pin timestamps.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// AppendBlock links a new evidence block onto the case's chain. The append
// runs under the case's exclusive lock: two concurrent appends reading the
// same tail would mint the same index and break the linkage.
func (l *Ledger) AppendBlock(ctx context.Context, caseID id.CaseID, actor id.Actor, upload Upload) (*Block, error) {
	ctx, span := l.tracer.Start(ctx, "evidence.append_block")
	defer span.End()

	if upload.Title == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "evidence title is required")
	}
	if len(upload.FileBytes) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "evidence file is empty")
	}
	if !validEvidenceTypes[upload.EvidenceType] {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown evidence type %q", upload.EvidenceType)
	}

	exists, err := l.cases.Exists(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("check case: %w", err)
	}
	if !exists {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "case %s not found", caseID)
	}

	release, err := l.locks.Acquire(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("acquire case lock: %w", err)
	}
	defer release()

	var block *Block
	err = l.runner.WithinTx(ctx, func(ctx context.Context) error {
		previousHash := GenesisHash
		index := 0
		tail, err := l.store.Tail(ctx, caseID)
		switch {
		case err == nil:
			previousHash = tail.BlockHash
			index = tail.BlockIndex + 1
		case errors.Is(err, sentinel.ErrNotFound):
			// First block of the chain.
		default:
			return fmt.Errorf("load chain tail: %w", err)
		}

		uploadedAt := l.now()
		fileHash := FileHash(upload.FileBytes)
		block = &Block{
			ID:                id.NewBlockID(),
			CaseID:            caseID,
			Title:             upload.Title,
			Description:       upload.Description,
			EvidenceType:      upload.EvidenceType,
			FileHash:          fileHash,
			BlockHash:         BlockHash(fileHash, previousHash, uploadedAt, upload.Title),
			PreviousBlockHash: previousHash,
			BlockIndex:        index,
			UploaderID:        actor.ID,
			UploaderRole:      actor.Role,
			Status:            StatusVerified,
			FileName:          upload.FileName,
			FileSize:          int64(len(upload.FileBytes)),
			ContentType:       upload.ContentType,
			UploadedAt:        uploadedAt,
		}
		if err := l.store.Insert(ctx, block); err != nil {
			return fmt.Errorf("persist block: %w", err)
		}

		_, err = l.log.Append(ctx, &events.CaseEvent{
			CaseID:     caseID,
			Type:       events.TypeEvidenceUpload,
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			ActorName:  actor.Name,
			Summary:    fmt.Sprintf("Evidence %q appended at block %d", upload.Title, index),
			RecordedAt: uploadedAt,
			Payload: map[string]string{
				"block_index":   fmt.Sprintf("%d", index),
				"block_hash":    block.BlockHash,
				"evidence_type": string(upload.EvidenceType),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	l.notify.Publish(broadcast.CaseEvents(caseID), map[string]string{
		"event_type":  string(events.TypeEvidenceUpload),
		"case_id":     caseID.String(),
		"block_index": fmt.Sprintf("%d", block.BlockIndex),
		"title":       block.Title,
	})
	if l.metrics != nil {
		l.metrics.RecordAppend(string(block.EvidenceType))
	}
	l.logger.InfoContext(ctx, "evidence block appended",
		"case_id", caseID.String(),
		"block_index", block.BlockIndex,
		"block_hash", block.BlockHash,
	)
	return block, nil
}

// VerifyBlock recomputes one block's hash from its stored fields. A mismatch
// downgrades the stored status to TAMPERED; the verdict is returned either
// way, never an error.
func (l *Ledger) VerifyBlock(ctx context.Context, blockID id.BlockID) (*BlockVerification, error) {
	ctx, span := l.tracer.Start(ctx, "evidence.verify_block")
	defer span.End()

	b, err := l.store.Get(ctx, blockID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "evidence block %s not found", blockID)
		}
		return nil, fmt.Errorf("load block: %w", err)
	}

	verdict := l.checkBlock(b)
	if !verdict.Valid {
		if err := l.downgrade(ctx, b); err != nil {
			return nil, err
		}
		verdict.Status = StatusTampered
	}
	if l.metrics != nil {
		l.metrics.RecordVerification("block", verdict.Valid)
	}
	return &verdict, nil
}

// VerifyChain walks the case's chain in ascending block index, checking both
// the predecessor linkage and each block-hash recomputation. Every block at
// and after the first failure is reported suspect, and blocks that fail
// their own checks are downgraded in storage.
func (l *Ledger) VerifyChain(ctx context.Context, caseID id.CaseID) (*ChainReport, error) {
	ctx, span := l.tracer.Start(ctx, "evidence.verify_chain")
	defer span.End()

	blocks, err := l.store.ListByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("load chain: %w", err)
	}

	report := &ChainReport{
		CaseID: caseID,
		Valid:  true,
		Blocks: make([]BlockVerification, 0, len(blocks)),
	}
	expectedPrev := GenesisHash
	expectedIndex := 0
	for i := range blocks {
		b := &blocks[i]
		verdict := l.checkBlock(b)
		if b.BlockIndex != expectedIndex {
			verdict.Valid = false
			verdict.Reason = fmt.Sprintf("block index %d, expected %d", b.BlockIndex, expectedIndex)
		}
		if verdict.Valid && b.PreviousBlockHash != expectedPrev {
			verdict.Valid = false
			verdict.Reason = "previous block hash does not match predecessor"
		}
		if !verdict.Valid {
			if report.FirstFailure == nil {
				idx := b.BlockIndex
				report.FirstFailure = &idx
			}
			report.Valid = false
			if err := l.downgrade(ctx, b); err != nil {
				return nil, err
			}
			verdict.Status = StatusTampered
		} else if report.FirstFailure != nil {
			// Ordering is no longer proven past the first failure.
			verdict.Valid = false
			verdict.Reason = "downstream of first chain failure"
		}
		report.Blocks = append(report.Blocks, verdict)

		expectedPrev = b.BlockHash
		expectedIndex = b.BlockIndex + 1
	}

	if l.metrics != nil {
		l.metrics.RecordVerification("chain", report.Valid)
	}
	if !report.Valid {
		l.logger.WarnContext(ctx, "chain integrity violation",
			"case_id", caseID.String(),
			"first_failure", *report.FirstFailure,
		)
	}
	return report, nil
}

// ListForCase returns the case's blocks in chain order.
func (l *Ledger) ListForCase(ctx context.Context, caseID id.CaseID) ([]Block, error) {
	return l.store.ListByCase(ctx, caseID)
}

// GetBlock returns one block by id.
func (l *Ledger) GetBlock(ctx context.Context, blockID id.BlockID) (*Block, error) {
	b, err := l.store.Get(ctx, blockID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "evidence block %s not found", blockID)
		}
		return nil, fmt.Errorf("load block: %w", err)
	}
	return b, nil
}

// ChainedCases lists every case with at least one block, for the sweep.
func (l *Ledger) ChainedCases(ctx context.Context) ([]id.CaseID, error) {
	return l.store.CaseIDs(ctx)
}

// checkBlock is the verification primitive: recompute the block hash from
// stored fields and compare.
func (l *Ledger) checkBlock(b *Block) BlockVerification {
	verdict := BlockVerification{
		BlockID:    b.ID,
		BlockIndex: b.BlockIndex,
		Valid:      true,
		Status:     b.Status,
	}
	recomputed := BlockHash(b.FileHash, b.PreviousBlockHash, b.UploadedAt, b.Title)
	if recomputed != b.BlockHash {
		verdict.Valid = false
		verdict.Reason = "stored block hash does not match recomputation"
	}
	return verdict
}

// downgrade flips a block to TAMPERED. Statuses only ever move down; a block
// already marked TAMPERED stays that way.
func (l *Ledger) downgrade(ctx context.Context, b *Block) error {
	if b.Status == StatusTampered {
		return nil
	}
	if err := l.store.UpdateStatus(ctx, b.ID, StatusTampered); err != nil {
		return fmt.Errorf("downgrade block status: %w", err)
	}
	b.Status = StatusTampered
	return nil
}
