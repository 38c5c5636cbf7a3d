package evidence

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"caseflow/internal/broadcast"
	"caseflow/internal/caselock"
	"caseflow/internal/events"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/platform/tx"
)

type stubCaseChecker struct {
	mu    sync.Mutex
	known map[id.CaseID]bool
}

func (s *stubCaseChecker) add(caseID id.CaseID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.known[caseID] = true
}

func (s *stubCaseChecker) Exists(_ context.Context, caseID id.CaseID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.known[caseID], nil
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []broadcast.Topic
}

func (r *recordingBroadcaster) Publish(topic broadcast.Topic, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, topic)
}

type LedgerSuite struct {
	suite.Suite

	ctx      context.Context
	ledger   *Ledger
	store    *InMemoryStore
	eventLog *events.Log
	checker  *stubCaseChecker
	notify   *recordingBroadcaster

	uploader id.Actor
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
	s.eventLog = events.NewLog(events.NewInMemoryStore(), nil)
	s.checker = &stubCaseChecker{known: make(map[id.CaseID]bool)}
	s.notify = &recordingBroadcaster{}
	s.uploader = id.Actor{ID: id.NewActorID(), Role: id.RolePolice, Name: "Officer Rao"}

	s.ledger = NewLedger(
		s.store,
		s.eventLog,
		caselock.NewMemoryLocker(),
		tx.NewRunner(nil),
		s.notify,
		s.checker,
		nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

// newCase registers a fresh case with the checker so appends on it succeed.
func (s *LedgerSuite) newCase() id.CaseID {
	caseID := id.NewCaseID()
	s.checker.add(caseID)
	return caseID
}

func (s *LedgerSuite) append(caseID id.CaseID, title string, content []byte) *Block {
	block, err := s.ledger.AppendBlock(s.ctx, caseID, s.uploader, Upload{
		Title:        title,
		EvidenceType: TypePhoto,
		FileBytes:    content,
		FileName:     title + ".jpg",
		ContentType:  "image/jpeg",
	})
	s.Require().NoError(err)
	return block
}

func (s *LedgerSuite) TestAppendBlock() {
	s.Run("first block links to genesis", func() {
		caseID := s.newCase()
		block := s.append(caseID, "photo1", []byte("camera roll 1"))
		s.Equal(0, block.BlockIndex)
		s.Equal(GenesisHash, block.PreviousBlockHash)
		s.Equal(FileHash([]byte("camera roll 1")), block.FileHash)
		s.Equal(BlockHash(block.FileHash, GenesisHash, block.UploadedAt, "photo1"), block.BlockHash)
		s.Equal(StatusVerified, block.Status)
		s.Equal(s.uploader.ID, block.UploaderID)
	})

	s.Run("second block links to the first", func() {
		caseID := s.newCase()
		first := s.append(caseID, "photo1", []byte("camera roll 1"))
		second := s.append(caseID, "photo2", []byte("camera roll 2"))
		s.Equal(1, second.BlockIndex)
		s.Equal(first.BlockHash, second.PreviousBlockHash)
	})

	s.Run("logs EVIDENCE_UPLOADED", func() {
		caseID := s.newCase()
		s.append(caseID, "photo1", []byte("camera roll 1"))
		uploads, err := s.eventLog.FilterByType(s.ctx, caseID, events.TypeEvidenceUpload)
		s.Require().NoError(err)
		s.Require().Len(uploads, 1)
		s.Equal("0", uploads[0].Payload["block_index"])
		s.Contains(s.notify.sent, broadcast.CaseEvents(caseID))
	})

	s.Run("rejects unknown case", func() {
		_, err := s.ledger.AppendBlock(s.ctx, id.NewCaseID(), s.uploader, Upload{
			Title:        "photo1",
			EvidenceType: TypePhoto,
			FileBytes:    []byte("x"),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rejects empty file", func() {
		_, err := s.ledger.AppendBlock(s.ctx, s.newCase(), s.uploader, Upload{
			Title:        "photo1",
			EvidenceType: TypePhoto,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects unknown evidence type", func() {
		_, err := s.ledger.AppendBlock(s.ctx, s.newCase(), s.uploader, Upload{
			Title:        "photo1",
			EvidenceType: EvidenceType("HOLOGRAM"),
			FileBytes:    []byte("x"),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("concurrent appends keep the chain gapless", func() {
		caseID := s.newCase()
		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				_, err := s.ledger.AppendBlock(s.ctx, caseID, s.uploader, Upload{
					Title:        "concurrent",
					EvidenceType: TypePhoto,
					FileBytes:    []byte{byte(n)},
				})
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			s.Require().NoError(err)
		}

		blocks, err := s.ledger.ListForCase(s.ctx, caseID)
		s.Require().NoError(err)
		s.Require().Len(blocks, 8)
		prev := GenesisHash
		for i, b := range blocks {
			s.Equal(i, b.BlockIndex)
			s.Equal(prev, b.PreviousBlockHash)
			prev = b.BlockHash
		}
	})
}

func (s *LedgerSuite) TestVerifyChain() {
	s.Run("empty chain is valid", func() {
		report, err := s.ledger.VerifyChain(s.ctx, s.newCase())
		s.Require().NoError(err)
		s.True(report.Valid)
		s.Empty(report.Blocks)
	})

	s.Run("untouched two-block chain is valid", func() {
		caseID := s.newCase()
		s.append(caseID, "photo1", []byte("camera roll 1"))
		s.append(caseID, "photo2", []byte("camera roll 2"))

		report, err := s.ledger.VerifyChain(s.ctx, caseID)
		s.Require().NoError(err)
		s.True(report.Valid)
		s.Nil(report.FirstFailure)
		s.Len(report.Blocks, 2)
	})

	s.Run("tampered file hash is caught at its index", func() {
		caseID := s.newCase()
		s.append(caseID, "photo1", []byte("camera roll 1"))
		second := s.append(caseID, "photo2", []byte("camera roll 2"))

		// Flip one bit of the stored file hash of block 1.
		s.store.Corrupt(second.ID, func(b *Block) {
			tampered := []byte(b.FileHash)
			tampered[0] ^= 1
			b.FileHash = string(tampered)
		})

		report, err := s.ledger.VerifyChain(s.ctx, caseID)
		s.Require().NoError(err)
		s.False(report.Valid)
		s.Require().NotNil(report.FirstFailure)
		s.Equal(1, *report.FirstFailure)
		s.True(report.Blocks[0].Valid)
		s.False(report.Blocks[1].Valid)

		// The downgrade is persisted.
		stored, err := s.ledger.GetBlock(s.ctx, second.ID)
		s.Require().NoError(err)
		s.Equal(StatusTampered, stored.Status)
	})

	s.Run("failure early in the chain marks downstream blocks suspect", func() {
		caseID := s.newCase()
		first := s.append(caseID, "photo1", []byte("camera roll 1"))
		s.append(caseID, "photo2", []byte("camera roll 2"))
		third := s.append(caseID, "photo3", []byte("camera roll 3"))

		s.store.Corrupt(first.ID, func(b *Block) {
			b.FileHash = FileHash([]byte("forged"))
		})

		report, err := s.ledger.VerifyChain(s.ctx, caseID)
		s.Require().NoError(err)
		s.False(report.Valid)
		s.Require().NotNil(report.FirstFailure)
		s.Equal(0, *report.FirstFailure)
		for _, verdict := range report.Blocks {
			s.False(verdict.Valid)
		}

		// Only the failing block is downgraded; the rest stay suspect but
		// not proven tampered.
		stored, err := s.ledger.GetBlock(s.ctx, first.ID)
		s.Require().NoError(err)
		s.Equal(StatusTampered, stored.Status)
		storedThird, err := s.ledger.GetBlock(s.ctx, third.ID)
		s.Require().NoError(err)
		s.Equal(StatusVerified, storedThird.Status)
	})
}

func (s *LedgerSuite) TestVerifyBlock() {
	s.Run("valid block stays verified", func() {
		block := s.append(s.newCase(), "photo1", []byte("camera roll 1"))
		verdict, err := s.ledger.VerifyBlock(s.ctx, block.ID)
		s.Require().NoError(err)
		s.True(verdict.Valid)
		s.Equal(StatusVerified, verdict.Status)
	})

	s.Run("mismatch downgrades to tampered and never upgrades back", func() {
		block := s.append(s.newCase(), "photo1", []byte("camera roll 1"))
		s.store.Corrupt(block.ID, func(b *Block) {
			b.Title = "photo1 (edited)"
		})

		verdict, err := s.ledger.VerifyBlock(s.ctx, block.ID)
		s.Require().NoError(err)
		s.False(verdict.Valid)
		s.Equal(StatusTampered, verdict.Status)

		// Restoring the field does not restore the status.
		s.store.Corrupt(block.ID, func(b *Block) {
			b.Title = "photo1"
		})
		verdict, err = s.ledger.VerifyBlock(s.ctx, block.ID)
		s.Require().NoError(err)
		s.True(verdict.Valid)
		s.Equal(StatusTampered, verdict.Status)
	})

	s.Run("unknown block", func() {
		_, err := s.ledger.VerifyBlock(s.ctx, id.NewBlockID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
