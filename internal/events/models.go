package events

import (
	"time"

	id "caseflow/pkg/domain"
)

// EventType is the closed vocabulary of things the engine records. Unknown
// strings never enter the log; parse at trust boundaries.
type EventType string

const (
	TypePoliceSubmit    EventType = "POLICE_SUBMIT"
	TypeJudgeCognizance EventType = "JUDGE_COGNIZANCE"
	TypeStageChange     EventType = "STAGE_CHANGE"
	TypeStatusChange    EventType = "STATUS_CHANGE"
	TypeLawyerDraftSave EventType = "LAWYER_DRAFT_SAVE"
	TypeLitigantApprove EventType = "LITIGANT_APPROVE"
	TypeLitigantReject  EventType = "LITIGANT_REJECT"
	TypeSummonsServed   EventType = "SUMMONS_SERVED"
	TypeBSAValidated    EventType = "BSA_VALIDATED"
	TypeBSAFailed       EventType = "BSA_FAILED"
	TypeEvidenceUpload  EventType = "EVIDENCE_UPLOADED"
	TypeCaseOnHold      EventType = "CASE_ON_HOLD"
	TypeCaseResumed     EventType = "CASE_RESUMED"
)

var validTypes = map[EventType]bool{
	TypePoliceSubmit:    true,
	TypeJudgeCognizance: true,
	TypeStageChange:     true,
	TypeStatusChange:    true,
	TypeLawyerDraftSave: true,
	TypeLitigantApprove: true,
	TypeLitigantReject:  true,
	TypeSummonsServed:   true,
	TypeBSAValidated:    true,
	TypeBSAFailed:       true,
	TypeEvidenceUpload:  true,
	TypeCaseOnHold:      true,
	TypeCaseResumed:     true,
}

// IsValid reports whether the type belongs to the closed vocabulary.
func (t EventType) IsValid() bool { return validTypes[t] }

// CaseEvent is one immutable audit record. Once appended it is never updated
// or deleted. Status and stage snapshots are nullable because not every event
// moves the case (a draft save changes neither).
type CaseEvent struct {
	ID         id.EventID        `json:"id"`
	CaseID     id.CaseID         `json:"case_id"`
	Type       EventType         `json:"type"`
	ActorID    id.ActorID        `json:"actor_id"`
	ActorRole  id.Role           `json:"actor_role"`
	ActorName  string            `json:"actor_name,omitempty"`
	Payload    map[string]string `json:"payload,omitempty"`
	PrevStatus *string           `json:"prev_status,omitempty"`
	NewStatus  *string           `json:"new_status,omitempty"`
	PrevStage  *int              `json:"prev_stage,omitempty"`
	NewStage   *int              `json:"new_stage,omitempty"`
	Summary    string            `json:"summary,omitempty"`
	RecordedAt time.Time         `json:"recorded_at"`
	// Seq breaks timestamp ties by insertion order. Assigned by the store.
	Seq int64 `json:"seq"`
}
