package cases

import id "caseflow/pkg/domain"

// Operation names each state-machine entry point for policy lookups and
// error reports.
type Operation string

const (
	OpOpenCase       Operation = "open_case"
	OpPoliceSubmit   Operation = "police_submit_to_court"
	OpTakeCognizance Operation = "judge_take_cognizance"
	OpAdvanceStage   Operation = "judge_advance_stage"
	OpSaveDraft      Operation = "lawyer_save_draft"
	OpApproveDraft   Operation = "litigant_approve_draft"
	OpRejectDraft    Operation = "litigant_reject_draft"
	OpMarkSummons    Operation = "mark_summons_served"
	OpUpdateBSA      Operation = "update_bsa_certification"
	OpPutOnHold      Operation = "put_on_hold"
	OpResume         Operation = "resume"
)

// Policy is the transition and permission table the state machine enforces.
// It is injected at construction so tests can run against a narrowed table
// and deployments can tune role permissions without touching the machine.
type Policy struct {
	// Transitions lists the statuses reachable from each status. Operations
	// consult it before mutating; a move absent from the table is invalid no
	// matter which operation asked for it.
	Transitions map[Status][]Status

	// Permissions lists the roles allowed to invoke each operation.
	Permissions map[Operation][]id.Role
}

// DefaultPolicy returns the production transition table from the case
// lifecycle model: intake → cognizance → admission → (stage-gated) trial →
// judgment → completion, with ON_HOLD reachable from any non-terminal state.
func DefaultPolicy() Policy {
	return Policy{
		Transitions: map[Status][]Status{
			StatusPending:           {StatusPendingCognizance, StatusOnHold, StatusClosed},
			StatusFIRFiled:          {StatusPendingCognizance, StatusOnHold, StatusClosed},
			StatusPendingCognizance: {StatusInAdmission, StatusOnHold, StatusClosed},
			StatusInAdmission:       {StatusTrialReady, StatusJudgmentPending, StatusOnHold, StatusClosed},
			StatusTrialReady:        {StatusJudgmentPending, StatusOnHold, StatusClosed},
			StatusJudgmentPending:   {StatusCompleted, StatusOnHold, StatusClosed},
			StatusOnHold: {
				StatusPending, StatusFIRFiled, StatusPendingCognizance,
				StatusInAdmission, StatusTrialReady, StatusJudgmentPending,
				StatusClosed,
			},
		},
		Permissions: map[Operation][]id.Role{
			OpOpenCase:       {id.RolePolice, id.RoleLawyer},
			OpPoliceSubmit:   {id.RolePolice},
			OpTakeCognizance: {id.RoleJudge},
			OpAdvanceStage:   {id.RoleJudge},
			OpSaveDraft:      {id.RoleLawyer},
			OpApproveDraft:   {id.RoleLitigant},
			OpRejectDraft:    {id.RoleLitigant},
			OpMarkSummons:    {id.RoleSystem, id.RolePolice},
			OpUpdateBSA:      {id.RoleSystem, id.RoleJudge},
			OpPutOnHold:      {id.RoleJudge},
			OpResume:         {id.RoleJudge},
		},
	}
}

// allows reports whether the table permits moving from one status to another.
func (p Policy) allows(from, to Status) bool {
	for _, next := range p.Transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// permits reports whether the role may invoke the operation. An operation
// missing from the table is denied to everyone.
func (p Policy) permits(op Operation, role id.Role) bool {
	for _, allowed := range p.Permissions[op] {
		if allowed == role {
			return true
		}
	}
	return false
}
