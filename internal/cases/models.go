package cases

import (
	"time"

	id "caseflow/pkg/domain"
)

// Status is the closed set of top-level case states. Persisted as text but
// never constructed from free strings outside ParseStatus.
type Status string

const (
	StatusPending           Status = "PENDING"
	StatusFIRFiled          Status = "FIR_FILED"
	StatusPendingCognizance Status = "PENDING_COGNIZANCE"
	StatusInAdmission       Status = "IN_ADMISSION"
	StatusTrialReady        Status = "TRIAL_READY"
	StatusJudgmentPending   Status = "JUDGMENT_PENDING"
	StatusCompleted         Status = "COMPLETED"
	StatusClosed            Status = "CLOSED"
	StatusOnHold            Status = "ON_HOLD"
)

var validStatuses = map[Status]bool{
	StatusPending:           true,
	StatusFIRFiled:          true,
	StatusPendingCognizance: true,
	StatusInAdmission:       true,
	StatusTrialReady:        true,
	StatusJudgmentPending:   true,
	StatusCompleted:         true,
	StatusClosed:            true,
	StatusOnHold:            true,
}

// IsValid reports whether the status belongs to the closed set.
func (s Status) IsValid() bool { return validStatuses[s] }

// IsTerminal reports whether a case can still move. ON_HOLD is reachable from
// any non-terminal status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusClosed
}

func (s Status) String() string { return string(s) }

// Stage is one of the 8 ordered judicial steps. Zero means "not admitted
// yet"; stages are meaningful only once the case reaches IN_ADMISSION.
type Stage int

const (
	StageNone       Stage = 0
	StageCognizance Stage = 1
	StageSummons    Stage = 2
	StageAppearance Stage = 3
	StageEvidence   Stage = 4
	StageArguments  Stage = 5
	StageJudgment   Stage = 6
	StageVerdict    Stage = 7
)

// MaxStage is the last judicial stage; advances beyond it are rejected.
const MaxStage = StageVerdict

// TrialStage is the first stage gated on trial readiness (summons + BSA).
const TrialStage = StageEvidence

var stageNames = map[Stage]string{
	StageNone:       "Intake",
	StageCognizance: "Cognizance",
	StageSummons:    "Summons",
	StageAppearance: "Appearance",
	StageEvidence:   "Evidence",
	StageArguments:  "Arguments",
	StageJudgment:   "Judgment",
	StageVerdict:    "Verdict",
}

// Name returns the human label for the stage.
func (s Stage) Name() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "Unknown"
}

// DraftStatus tracks the lawyer/litigant draft-review cycle. It is a
// sub-state independent of the top-level case status.
type DraftStatus string

const (
	DraftNone           DraftStatus = "NONE"
	DraftAwaitingClient DraftStatus = "AWAITING_CLIENT"
	DraftApproved       DraftStatus = "APPROVED"
	DraftRejected       DraftStatus = "REJECTED"
)

// Case is the aggregate root for one legal matter. All mutation goes through
// the state machine service; stores only load and persist it.
type Case struct {
	ID    id.CaseID
	Title string

	Status       Status
	CurrentStage Stage

	// Ownership references by id, never embedded.
	AssignedJudge *id.ActorID
	Lawyer        *id.ActorID
	Client        *id.ActorID

	DraftStatus  DraftStatus
	DraftContent string

	// Trial-readiness gates, both required to enter the Evidence stage.
	SummonsDelivered bool
	BSA634Certified  bool

	// HeldFrom remembers the status a case had when it was put ON_HOLD so
	// Resume can restore it.
	HeldFrom *Status

	CreatedAt time.Time
	UpdatedAt time.Time

	// Version guards the read-modify-write cycle in the postgres store.
	Version int64
}

// Snapshot is the read model returned by commands and queries.
type Snapshot struct {
	ID               id.CaseID   `json:"id"`
	Title            string      `json:"title"`
	Status           Status      `json:"status"`
	CurrentStage     Stage       `json:"current_stage"`
	StageName        string      `json:"stage_name"`
	AssignedJudge    *string     `json:"assigned_judge,omitempty"`
	Lawyer           *string     `json:"lawyer,omitempty"`
	Client           *string     `json:"client,omitempty"`
	DraftStatus      DraftStatus `json:"draft_status"`
	SummonsDelivered bool        `json:"summons_delivered"`
	BSA634Certified  bool        `json:"bsa634_certified"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Snapshot converts the aggregate into its read model.
func (c *Case) Snapshot() Snapshot {
	snap := Snapshot{
		ID:               c.ID,
		Title:            c.Title,
		Status:           c.Status,
		CurrentStage:     c.CurrentStage,
		StageName:        c.CurrentStage.Name(),
		DraftStatus:      c.DraftStatus,
		SummonsDelivered: c.SummonsDelivered,
		BSA634Certified:  c.BSA634Certified,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
	if c.AssignedJudge != nil {
		s := c.AssignedJudge.String()
		snap.AssignedJudge = &s
	}
	if c.Lawyer != nil {
		s := c.Lawyer.String()
		snap.Lawyer = &s
	}
	if c.Client != nil {
		s := c.Client.String()
		snap.Client = &s
	}
	return snap
}

// TrialReady reports whether both readiness gates are satisfied.
func (c *Case) TrialReady() bool {
	return c.SummonsDelivered && c.BSA634Certified
}
