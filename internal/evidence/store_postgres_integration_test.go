//go:build integration

package evidence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"caseflow/internal/evidence"
	id "caseflow/pkg/domain"
	"caseflow/pkg/platform/sentinel"
	"caseflow/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *evidence.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = evidence.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "evidence_blocks")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newBlock(caseID id.CaseID, index int, prevHash string) *evidence.Block {
	at := time.Now().UTC().Truncate(time.Microsecond)
	fileHash := evidence.FileHash([]byte(caseID.String() + "-" + string(rune('a'+index))))
	return &evidence.Block{
		ID:                id.NewBlockID(),
		CaseID:            caseID,
		Title:             "Exhibit",
		EvidenceType:      evidence.TypeDocument,
		FileHash:          fileHash,
		BlockHash:         evidence.BlockHash(fileHash, prevHash, at, "Exhibit"),
		PreviousBlockHash: prevHash,
		BlockIndex:        index,
		UploaderID:        id.NewActorID(),
		UploaderRole:      id.RolePolice,
		Status:            evidence.StatusVerified,
		FileName:          "exhibit.pdf",
		FileSize:          512,
		ContentType:       "application/pdf",
		UploadedAt:        at,
	}
}

func (s *PostgresStoreSuite) TestInsertAndGetRoundTrip() {
	ctx := context.Background()
	caseID := id.NewCaseID()
	b := s.newBlock(caseID, 0, evidence.GenesisHash)
	b.Description = "seized at the scene"
	s.Require().NoError(s.store.Insert(ctx, b))

	got, err := s.store.Get(ctx, b.ID)
	s.Require().NoError(err)
	s.Equal(b.ID, got.ID)
	s.Equal(b.CaseID, got.CaseID)
	s.Equal("seized at the scene", got.Description)
	s.Equal(b.FileHash, got.FileHash)
	s.Equal(b.BlockHash, got.BlockHash)
	s.Equal(evidence.GenesisHash, got.PreviousBlockHash)
	s.Equal(0, got.BlockIndex)
	s.Equal(evidence.StatusVerified, got.Status)
	s.Equal(int64(512), got.FileSize)
}

func (s *PostgresStoreSuite) TestTailFollowsHighestIndex() {
	ctx := context.Background()
	caseID := id.NewCaseID()

	_, err := s.store.Tail(ctx, caseID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	genesis := s.newBlock(caseID, 0, evidence.GenesisHash)
	s.Require().NoError(s.store.Insert(ctx, genesis))
	second := s.newBlock(caseID, 1, genesis.BlockHash)
	s.Require().NoError(s.store.Insert(ctx, second))

	tail, err := s.store.Tail(ctx, caseID)
	s.Require().NoError(err)
	s.Equal(second.ID, tail.ID)
	s.Equal(1, tail.BlockIndex)
}

func (s *PostgresStoreSuite) TestDuplicateIndexRejected() {
	ctx := context.Background()
	caseID := id.NewCaseID()

	first := s.newBlock(caseID, 0, evidence.GenesisHash)
	s.Require().NoError(s.store.Insert(ctx, first))

	// Same slot in the same chain must hit the unique constraint.
	dupe := s.newBlock(caseID, 0, evidence.GenesisHash)
	dupe.UploadedAt = first.UploadedAt.Add(time.Second)
	dupe.BlockHash = evidence.BlockHash(dupe.FileHash, evidence.GenesisHash, dupe.UploadedAt, dupe.Title)
	err := s.store.Insert(ctx, dupe)
	s.Require().Error(err)

	// Same index in a different chain is fine.
	other := s.newBlock(id.NewCaseID(), 0, evidence.GenesisHash)
	s.Require().NoError(s.store.Insert(ctx, other))
}

func (s *PostgresStoreSuite) TestListByCaseAscending() {
	ctx := context.Background()
	caseID := id.NewCaseID()

	prev := evidence.GenesisHash
	for i := 0; i < 3; i++ {
		b := s.newBlock(caseID, i, prev)
		s.Require().NoError(s.store.Insert(ctx, b))
		prev = b.BlockHash
	}

	chain, err := s.store.ListByCase(ctx, caseID)
	s.Require().NoError(err)
	s.Require().Len(chain, 3)
	for i, b := range chain {
		s.Equal(i, b.BlockIndex)
		if i > 0 {
			s.Equal(chain[i-1].BlockHash, b.PreviousBlockHash)
		}
	}
}

func (s *PostgresStoreSuite) TestUpdateStatus() {
	ctx := context.Background()
	b := s.newBlock(id.NewCaseID(), 0, evidence.GenesisHash)
	s.Require().NoError(s.store.Insert(ctx, b))

	s.Require().NoError(s.store.UpdateStatus(ctx, b.ID, evidence.StatusTampered))

	got, err := s.store.Get(ctx, b.ID)
	s.Require().NoError(err)
	s.Equal(evidence.StatusTampered, got.Status)

	err = s.store.UpdateStatus(ctx, id.NewBlockID(), evidence.StatusTampered)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestCaseIDsDistinct() {
	ctx := context.Background()
	caseA, caseB := id.NewCaseID(), id.NewCaseID()

	a0 := s.newBlock(caseA, 0, evidence.GenesisHash)
	s.Require().NoError(s.store.Insert(ctx, a0))
	a1 := s.newBlock(caseA, 1, a0.BlockHash)
	s.Require().NoError(s.store.Insert(ctx, a1))
	b0 := s.newBlock(caseB, 0, evidence.GenesisHash)
	s.Require().NoError(s.store.Insert(ctx, b0))

	ids, err := s.store.CaseIDs(ctx)
	s.Require().NoError(err)
	s.Require().Len(ids, 2)
	s.ElementsMatch([]id.CaseID{caseA, caseB}, ids)
}
