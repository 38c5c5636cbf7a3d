package evidence

import (
	"time"

	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// EvidenceType is the closed set of evidence categories.
type EvidenceType string

const (
	TypeDocument EvidenceType = "DOCUMENT"
	TypePhoto    EvidenceType = "PHOTO"
	TypeVideo    EvidenceType = "VIDEO"
	TypeAudio    EvidenceType = "AUDIO"
	TypeOther    EvidenceType = "OTHER"
)

var validEvidenceTypes = map[EvidenceType]bool{
	TypeDocument: true,
	TypePhoto:    true,
	TypeVideo:    true,
	TypeAudio:    true,
	TypeOther:    true,
}

// ParseEvidenceType constructs an EvidenceType from external input.
func ParseEvidenceType(s string) (EvidenceType, error) {
	t := EvidenceType(s)
	if !validEvidenceTypes[t] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown evidence type %q", s)
	}
	return t, nil
}

// VerificationStatus is the integrity verdict on a block. It only ever moves
// down: VERIFIED may become TAMPERED, never the other way around without
// re-investigation outside this system.
type VerificationStatus string

const (
	StatusPending  VerificationStatus = "PENDING"
	StatusVerified VerificationStatus = "VERIFIED"
	StatusTampered VerificationStatus = "TAMPERED"
)

// Block is one link in a case's hash chain. Everything except Status is
// immutable once written.
type Block struct {
	ID     id.BlockID
	CaseID id.CaseID

	Title        string
	Description  string
	EvidenceType EvidenceType

	// FileHash fingerprints the uploaded bytes; BlockHash binds this block to
	// its predecessor via PreviousBlockHash.
	FileHash          string
	BlockHash         string
	PreviousBlockHash string

	// BlockIndex is 0-based and strictly increasing per case, no gaps.
	BlockIndex int

	UploaderID   id.ActorID
	UploaderRole id.Role

	Status VerificationStatus

	FileName    string
	FileSize    int64
	ContentType string

	UploadedAt time.Time
}

// BlockVerification is the verdict on a single block from a verification
// pass.
type BlockVerification struct {
	BlockID    id.BlockID         `json:"block_id"`
	BlockIndex int                `json:"block_index"`
	Valid      bool               `json:"valid"`
	Status     VerificationStatus `json:"status"`
	Reason     string             `json:"reason,omitempty"`
}

// ChainReport is the result of walking a case's whole chain. Blocks at and
// after the first failure are suspect even when their own hashes still line
// up, because the chain no longer proves their ordering.
type ChainReport struct {
	CaseID       id.CaseID           `json:"case_id"`
	Valid        bool                `json:"valid"`
	FirstFailure *int                `json:"first_failure,omitempty"`
	Blocks       []BlockVerification `json:"blocks"`
}

// Snapshot is the read model for one block.
type Snapshot struct {
	ID                id.BlockID         `json:"id"`
	CaseID            id.CaseID          `json:"case_id"`
	Title             string             `json:"title"`
	Description       string             `json:"description,omitempty"`
	EvidenceType      EvidenceType       `json:"evidence_type"`
	FileHash          string             `json:"file_hash"`
	BlockHash         string             `json:"block_hash"`
	PreviousBlockHash string             `json:"previous_block_hash"`
	BlockIndex        int                `json:"block_index"`
	UploaderID        id.ActorID         `json:"uploader_id"`
	UploaderRole      id.Role            `json:"uploader_role"`
	Status            VerificationStatus `json:"status"`
	FileName          string             `json:"file_name,omitempty"`
	FileSize          int64              `json:"file_size,omitempty"`
	ContentType       string             `json:"content_type,omitempty"`
	UploadedAt        time.Time          `json:"uploaded_at"`
}

// Snapshot converts the block into its read model.
func (b *Block) Snapshot() Snapshot {
	return Snapshot{
		ID:                b.ID,
		CaseID:            b.CaseID,
		Title:             b.Title,
		Description:       b.Description,
		EvidenceType:      b.EvidenceType,
		FileHash:          b.FileHash,
		BlockHash:         b.BlockHash,
		PreviousBlockHash: b.PreviousBlockHash,
		BlockIndex:        b.BlockIndex,
		UploaderID:        b.UploaderID,
		UploaderRole:      b.UploaderRole,
		Status:            b.Status,
		FileName:          b.FileName,
		FileSize:          b.FileSize,
		ContentType:       b.ContentType,
		UploadedAt:        b.UploadedAt,
	}
}
