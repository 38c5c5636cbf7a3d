package cases

import (
	"fmt"

	dErrors "caseflow/pkg/domain-errors"
)

// invalidTransition builds the guard-failure error every operation raises
// when the current state does not admit it. Callers get the current state and
// the attempted operation back, enough for a precise user-facing message.
func invalidTransition(op Operation, c *Case, reason string) error {
	return dErrors.Newf(dErrors.CodeInvalidTransition,
		"operation %s not allowed: %s", op, reason).
		WithDetail("operation", string(op)).
		WithDetail("current_status", string(c.Status)).
		WithDetail("current_stage", fmt.Sprintf("%d", c.CurrentStage))
}

// notTrialReady reports a stage advance blocked by the readiness gates. The
// details spell out which gate is missing so the caller knows what to fix.
func notTrialReady(c *Case) error {
	return dErrors.New(dErrors.CodeNotTrialReady,
		"cannot enter trial stage: summons delivery and BSA 63/4 certification are both required").
		WithDetail("summons_delivered", fmt.Sprintf("%t", c.SummonsDelivered)).
		WithDetail("bsa634_certified", fmt.Sprintf("%t", c.BSA634Certified)).
		WithDetail("current_stage", fmt.Sprintf("%d", c.CurrentStage))
}

// notPermitted reports a role that may not invoke the operation at all.
func notPermitted(op Operation, role string) error {
	return dErrors.Newf(dErrors.CodeForbidden,
		"role %s may not perform %s", role, op).
		WithDetail("operation", string(op)).
		WithDetail("role", role)
}
