package cases

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
	"caseflow/internal/cases/metrics"
	"caseflow/internal/events"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/platform/sentinel"
	"caseflow/pkg/platform/tx"
)

// Broadcaster is the outbound notification contract. Publish must be called
// only after the durable write committed and must never block or fail the
// command.
type Broadcaster interface {
	Publish(topic broadcast.Topic, payload map[string]string)
}

// Service is the single authority for changing a case's status, stage, and
// draft sub-state. Every change is preceded by a policy check under the
// case's exclusive lock and followed by exactly one audit event per
// transition, committed in the same transaction as the state change.
type Service struct {
	store   Store
	log     *events.Log
	locks   caselock.Locker
	runner  *tx.Runner
	notify  Broadcaster
	policy  Policy
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewService wires the state machine. metrics may be nil in tests.
func NewService(
	store Store,
	log *events.Log,
	locks caselock.Locker,
	runner *tx.Runner,
	notify Broadcaster,
	policy Policy,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:   store,
		log:     log,
		locks:   locks,
		runner:  runner,
		notify:  notify,
		policy:  policy,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("caseflow/cases"),
		now:     time.Now,
	}
}

// WithClock overrides the service clock. Tests use this to pin timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// pendingBroadcast is a notification held until the transaction commits.
type pendingBroadcast struct {
	topic   broadcast.Topic
	payload map[string]string
}

// effect is what one operation does beyond mutating the aggregate: the audit
// events it appends inside the transaction and the notifications it sends
// after commit.
type effect struct {
	events     []*events.CaseEvent
	broadcasts []pendingBroadcast
}

// execute runs one state-machine operation under the case's exclusive lock.
// The mutate closure guards and mutates the loaded aggregate and describes
// its effect; execute persists everything atomically and dispatches the
// broadcasts only after the commit succeeded.
func (s *Service) execute(
	ctx context.Context,
	op Operation,
	actor id.Actor,
	caseID id.CaseID,
	mutate func(c *Case) (*effect, error),
) (*Case, error) {
	ctx, span := s.tracer.Start(ctx, string(op))
	defer span.End()

	if !s.policy.permits(op, actor.Role) {
		err := notPermitted(op, string(actor.Role))
		s.recordFailure(op, err)
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("acquire case lock: %w", err)
	}
	defer release()

	var (
		updated *Case
		eff     *effect
	)
	err = s.runner.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.store.Get(ctx, caseID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Newf(dErrors.CodeNotFound, "case %s not found", caseID)
			}
			return fmt.Errorf("load case: %w", err)
		}

		eff, err = mutate(c)
		if err != nil {
			return err
		}

		c.UpdatedAt = s.now()
		if err := s.store.Update(ctx, c); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Wrap(dErrors.CodeConflict, "case was modified concurrently", err)
			}
			return fmt.Errorf("persist case: %w", err)
		}
		for _, event := range eff.events {
			if _, err := s.log.Append(ctx, event); err != nil {
				return err
			}
		}
		updated = c
		return nil
	})
	if err != nil {
		s.recordFailure(op, err)
		return nil, err
	}

	// The durable write is committed; delivery is best effort from here on.
	for _, b := range eff.broadcasts {
		s.notify.Publish(b.topic, b.payload)
	}
	if s.metrics != nil {
		s.metrics.RecordTransition(string(op))
	}
	s.logger.InfoContext(ctx, "case transition applied",
		"operation", string(op),
		"case_id", caseID.String(),
		"status", string(updated.Status),
		"stage", int(updated.CurrentStage),
	)
	return updated, nil
}

func (s *Service) recordFailure(op Operation, err error) {
	if s.metrics != nil {
		s.metrics.RecordGuardFailure(string(op), string(dErrors.CodeOf(err)))
	}
}

// newEvent stamps the shared fields every operation event carries.
func (s *Service) newEvent(c *Case, eventType events.EventType, actor id.Actor, summary string) *events.CaseEvent {
	return &events.CaseEvent{
		CaseID:     c.ID,
		Type:       eventType,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		ActorName:  actor.Name,
		Summary:    summary,
		RecordedAt: s.now(),
	}
}

func statusSnapshot(ev *events.CaseEvent, prev, next Status) {
	p, n := string(prev), string(next)
	ev.PrevStatus, ev.NewStatus = &p, &n
}

// setStatus applies a status change after consulting the transition table.
// Operation guards catch the meaningful violations first; this keeps a buggy
// guard from ever writing a move the table does not admit.
func (s *Service) setStatus(op Operation, c *Case, to Status) error {
	if !s.policy.allows(c.Status, to) {
		return invalidTransition(op, c,
			fmt.Sprintf("status %s is not reachable from %s", to, c.Status))
	}
	c.Status = to
	return nil
}

func stageSnapshot(ev *events.CaseEvent, prev, next Stage) {
	p, n := int(prev), int(next)
	ev.PrevStage, ev.NewStage = &p, &n
}

// OpenCase creates the aggregate at intake. Police intake starts at
// FIR_FILED, everything else at PENDING. Creation is not a transition, so no
// event is logged; the first audit record is the submission to court.
func (s *Service) OpenCase(ctx context.Context, actor id.Actor, title string, firFiled bool, lawyer, client *id.ActorID) (*Case, error) {
	ctx, span := s.tracer.Start(ctx, string(OpOpenCase))
	defer span.End()

	if !s.policy.permits(OpOpenCase, actor.Role) {
		err := notPermitted(OpOpenCase, string(actor.Role))
		s.recordFailure(OpOpenCase, err)
		return nil, err
	}
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "case title is required")
	}

	now := s.now()
	c := &Case{
		ID:           id.NewCaseID(),
		Title:        title,
		Status:       StatusPending,
		CurrentStage: StageNone,
		DraftStatus:  DraftNone,
		Lawyer:       lawyer,
		Client:       client,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if firFiled {
		c.Status = StatusFIRFiled
	}

	err := s.runner.WithinTx(ctx, func(ctx context.Context) error {
		return s.store.Create(ctx, c)
	})
	if err != nil {
		return nil, fmt.Errorf("create case: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordTransition(string(OpOpenCase))
	}
	return c, nil
}

// PoliceSubmitToCourt moves an intake case into the cognizance queue and
// announces it on the judge-assignment pool.
func (s *Service) PoliceSubmitToCourt(ctx context.Context, caseID id.CaseID, actor id.Actor) (*Case, error) {
	return s.execute(ctx, OpPoliceSubmit, actor, caseID, func(c *Case) (*effect, error) {
		if c.Status != StatusFIRFiled && c.Status != StatusPending {
			return nil, invalidTransition(OpPoliceSubmit, c,
				"case must be at intake (FIR_FILED or PENDING) to submit to court")
		}
		prev := c.Status
		if err := s.setStatus(OpPoliceSubmit, c, StatusPendingCognizance); err != nil {
			return nil, err
		}

		ev := s.newEvent(c, events.TypePoliceSubmit, actor, "Police submitted case to court")
		statusSnapshot(ev, prev, c.Status)

		return &effect{
			events: []*events.CaseEvent{ev},
			broadcasts: []pendingBroadcast{
				{broadcast.CaseStatus(c.ID), statusPayload(c, prev)},
				{broadcast.CaseEvents(c.ID), eventPayload(ev)},
				{broadcast.JudgeUnassigned, map[string]string{
					"case_id": c.ID.String(),
					"title":   c.Title,
				}},
			},
		}, nil
	})
}

// JudgeTakeCognizance admits the case, binds the judge, and enters stage 1.
func (s *Service) JudgeTakeCognizance(ctx context.Context, caseID id.CaseID, actor id.Actor) (*Case, error) {
	return s.execute(ctx, OpTakeCognizance, actor, caseID, func(c *Case) (*effect, error) {
		if c.Status != StatusPendingCognizance {
			return nil, invalidTransition(OpTakeCognizance, c,
				"case must be awaiting cognizance")
		}
		prevStatus := c.Status
		prevStage := c.CurrentStage
		if err := s.setStatus(OpTakeCognizance, c, StatusInAdmission); err != nil {
			return nil, err
		}
		c.CurrentStage = StageCognizance
		judgeID := actor.ID
		c.AssignedJudge = &judgeID

		ev := s.newEvent(c, events.TypeJudgeCognizance, actor, "Judge took cognizance of the case")
		statusSnapshot(ev, prevStatus, c.Status)
		stageSnapshot(ev, prevStage, c.CurrentStage)

		return &effect{
			events: []*events.CaseEvent{ev},
			broadcasts: []pendingBroadcast{
				{broadcast.CaseStatus(c.ID), statusPayload(c, prevStatus)},
				{broadcast.CaseStage(c.ID), stagePayload(c, prevStage)},
				{broadcast.CaseEvents(c.ID), eventPayload(ev)},
			},
		}, nil
	})
}

// JudgeAdvanceStage moves the case one judicial stage forward. Entering the
// Evidence stage requires both trial-readiness gates; entering Judgment and
// Verdict force the matching terminal-arc statuses.
func (s *Service) JudgeAdvanceStage(ctx context.Context, caseID id.CaseID, actor id.Actor) (*Case, error) {
	return s.execute(ctx, OpAdvanceStage, actor, caseID, func(c *Case) (*effect, error) {
		if c.AssignedJudge == nil || *c.AssignedJudge != actor.ID {
			return nil, notPermitted(OpAdvanceStage, string(actor.Role))
		}
		if c.Status.IsTerminal() || c.Status == StatusOnHold {
			return nil, invalidTransition(OpAdvanceStage, c,
				"case is not in an active judicial state")
		}
		if c.CurrentStage < StageCognizance {
			return nil, invalidTransition(OpAdvanceStage, c,
				"cognizance has not been taken yet")
		}
		if c.CurrentStage >= MaxStage {
			return nil, invalidTransition(OpAdvanceStage, c,
				"case is already at the final stage")
		}
		next := c.CurrentStage + 1
		if next == TrialStage && !c.TrialReady() {
			return nil, notTrialReady(c)
		}

		prevStatus := c.Status
		prevStage := c.CurrentStage
		c.CurrentStage = next
		switch next {
		case StageJudgment:
			if err := s.setStatus(OpAdvanceStage, c, StatusJudgmentPending); err != nil {
				return nil, err
			}
		case StageVerdict:
			if err := s.setStatus(OpAdvanceStage, c, StatusCompleted); err != nil {
				return nil, err
			}
		}

		ev := s.newEvent(c, events.TypeStageChange, actor,
			fmt.Sprintf("Stage advanced to %s", next.Name()))
		stageSnapshot(ev, prevStage, c.CurrentStage)
		if c.Status != prevStatus {
			statusSnapshot(ev, prevStatus, c.Status)
		}

		eff := &effect{
			events: []*events.CaseEvent{ev},
			broadcasts: []pendingBroadcast{
				{broadcast.CaseStage(c.ID), stagePayload(c, prevStage)},
				{broadcast.CaseEvents(c.ID), eventPayload(ev)},
			},
		}
		if c.Status != prevStatus {
			eff.broadcasts = append(eff.broadcasts,
				pendingBroadcast{broadcast.CaseStatus(c.ID), statusPayload(c, prevStatus)})
		}
		return eff, nil
	})
}

// LawyerSaveDraft stores draft content and puts the review ball in the
// litigant's court. There is no status guard beyond the case existing: the
// draft cycle runs independently of the top-level lifecycle.
func (s *Service) LawyerSaveDraft(ctx context.Context, caseID id.CaseID, actor id.Actor, content string) (*Case, error) {
	return s.execute(ctx, OpSaveDraft, actor, caseID, func(c *Case) (*effect, error) {
		if content == "" {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "draft content is required")
		}
		if c.Lawyer != nil && *c.Lawyer != actor.ID {
			return nil, notPermitted(OpSaveDraft, string(actor.Role))
		}
		if c.Lawyer == nil {
			lawyerID := actor.ID
			c.Lawyer = &lawyerID
		}
		c.DraftContent = content
		c.DraftStatus = DraftAwaitingClient

		ev := s.newEvent(c, events.TypeLawyerDraftSave, actor, "Lawyer saved a draft for client review")
		ev.Payload = map[string]string{"draft_status": string(DraftAwaitingClient)}

		eff := &effect{
			events: []*events.CaseEvent{ev},
			broadcasts: []pendingBroadcast{
				{broadcast.CaseEvents(c.ID), eventPayload(ev)},
			},
		}
		if c.Client != nil {
			eff.broadcasts = append(eff.broadcasts, pendingBroadcast{
				broadcast.LitigantActions(*c.Client),
				map[string]string{
					"case_id": c.ID.String(),
					"action":  "draft_review_required",
				},
			})
		}
		return eff, nil
	})
}

// LitigantApproveDraft closes the review cycle in the lawyer's favor.
func (s *Service) LitigantApproveDraft(ctx context.Context, caseID id.CaseID, actor id.Actor) (*Case, error) {
	return s.reviewDraft(ctx, OpApproveDraft, caseID, actor, DraftApproved, "")
}

// LitigantRejectDraft sends the draft back with a reason.
func (s *Service) LitigantRejectDraft(ctx context.Context, caseID id.CaseID, actor id.Actor, reason string) (*Case, error) {
	return s.reviewDraft(ctx, OpRejectDraft, caseID, actor, DraftRejected, reason)
}

func (s *Service) reviewDraft(ctx context.Context, op Operation, caseID id.CaseID, actor id.Actor, verdict DraftStatus, reason string) (*Case, error) {
	return s.execute(ctx, op, actor, caseID, func(c *Case) (*effect, error) {
		if c.DraftStatus != DraftAwaitingClient {
			return nil, invalidTransition(op, c,
				"no draft is awaiting client review")
		}
		if c.Client != nil && *c.Client != actor.ID {
			return nil, notPermitted(op, string(actor.Role))
		}
		c.DraftStatus = verdict

		eventType := events.TypeLitigantApprove
		summary := "Litigant approved the draft"
		if verdict == DraftRejected {
			eventType = events.TypeLitigantReject
			summary = "Litigant rejected the draft"
		}
		ev := s.newEvent(c, eventType, actor, summary)
		ev.Payload = map[string]string{"draft_status": string(verdict)}
		if reason != "" {
			ev.Payload["reason"] = reason
		}

		eff := &effect{
			events: []*events.CaseEvent{ev},
			broadcasts: []pendingBroadcast{
				{broadcast.CaseEvents(c.ID), eventPayload(ev)},
			},
		}
		if c.Lawyer != nil {
			eff.broadcasts = append(eff.broadcasts, pendingBroadcast{
				broadcast.LawyerApprovals(*c.Lawyer),
				map[string]string{
					"case_id":      c.ID.String(),
					"draft_status": string(verdict),
					"reason":       reason,
				},
			})
		}
		return eff, nil
	})
}

// MarkSummonsServed flips the summons gate. Repeat calls are idempotent: the
// gate stays set and no duplicate event is logged, but the trial-readiness
// check still runs.
func (s *Service) MarkSummonsServed(ctx context.Context, caseID id.CaseID, actor id.Actor) (*Case, error) {
	return s.execute(ctx, OpMarkSummons, actor, caseID, func(c *Case) (*effect, error) {
		eff := &effect{}
		if !c.SummonsDelivered {
			c.SummonsDelivered = true
			ev := s.newEvent(c, events.TypeSummonsServed, actor, "Summons delivery confirmed")
			eff.events = append(eff.events, ev)
			eff.broadcasts = append(eff.broadcasts,
				pendingBroadcast{broadcast.CaseEvents(c.ID), eventPayload(ev)})
		}
		s.checkAndPromoteTrialReady(c, actor, eff)
		return eff, nil
	})
}

// UpdateBSACertification records the BSA 63/4 certification outcome and
// re-checks trial readiness.
func (s *Service) UpdateBSACertification(ctx context.Context, caseID id.CaseID, actor id.Actor, certified bool, details string) (*Case, error) {
	return s.execute(ctx, OpUpdateBSA, actor, caseID, func(c *Case) (*effect, error) {
		c.BSA634Certified = certified

		eventType := events.TypeBSAValidated
		summary := "BSA 63/4 certification validated"
		if !certified {
			eventType = events.TypeBSAFailed
			summary = "BSA 63/4 certification failed"
		}
		ev := s.newEvent(c, eventType, actor, summary)
		if details != "" {
			ev.Payload = map[string]string{"details": details}
		}

		eff := &effect{
			events: []*events.CaseEvent{ev},
			broadcasts: []pendingBroadcast{
				{broadcast.CaseEvents(c.ID), eventPayload(ev)},
			},
		}
		s.checkAndPromoteTrialReady(c, actor, eff)
		return eff, nil
	})
}

// checkAndPromoteTrialReady is the derived transition: when both gates hold
// and the case is still IN_ADMISSION, it promotes to TRIAL_READY and logs a
// STATUS_CHANGE. Idempotent; never invoked directly by external actors.
func (s *Service) checkAndPromoteTrialReady(c *Case, actor id.Actor, eff *effect) {
	if !c.TrialReady() || c.Status != StatusInAdmission {
		return
	}
	prev := c.Status
	c.Status = StatusTrialReady

	ev := s.newEvent(c, events.TypeStatusChange, actor, "Case is trial ready")
	statusSnapshot(ev, prev, c.Status)
	eff.events = append(eff.events, ev)
	eff.broadcasts = append(eff.broadcasts,
		pendingBroadcast{broadcast.CaseStatus(c.ID), statusPayload(c, prev)},
		pendingBroadcast{broadcast.CaseEvents(c.ID), eventPayload(ev)},
	)
}

// PutOnHold parks a non-terminal case, remembering where it came from.
func (s *Service) PutOnHold(ctx context.Context, caseID id.CaseID, actor id.Actor, reason string) (*Case, error) {
	return s.execute(ctx, OpPutOnHold, actor, caseID, func(c *Case) (*effect, error) {
		if c.Status.IsTerminal() {
			return nil, invalidTransition(OpPutOnHold, c, "case is already closed")
		}
		if c.Status == StatusOnHold {
			return nil, invalidTransition(OpPutOnHold, c, "case is already on hold")
		}
		prev := c.Status
		if err := s.setStatus(OpPutOnHold, c, StatusOnHold); err != nil {
			return nil, err
		}
		c.HeldFrom = &prev

		ev := s.newEvent(c, events.TypeCaseOnHold, actor, "Case put on hold")
		statusSnapshot(ev, prev, c.Status)
		if reason != "" {
			ev.Payload = map[string]string{"reason": reason}
		}

		return &effect{
			events: []*events.CaseEvent{ev},
			broadcasts: []pendingBroadcast{
				{broadcast.CaseStatus(c.ID), statusPayload(c, prev)},
				{broadcast.CaseEvents(c.ID), eventPayload(ev)},
			},
		}, nil
	})
}

// Resume restores a held case to the status it had when parked.
func (s *Service) Resume(ctx context.Context, caseID id.CaseID, actor id.Actor) (*Case, error) {
	return s.execute(ctx, OpResume, actor, caseID, func(c *Case) (*effect, error) {
		if c.Status != StatusOnHold || c.HeldFrom == nil {
			return nil, invalidTransition(OpResume, c, "case is not on hold")
		}
		prev := c.Status
		if err := s.setStatus(OpResume, c, *c.HeldFrom); err != nil {
			return nil, err
		}
		c.HeldFrom = nil

		ev := s.newEvent(c, events.TypeCaseResumed, actor, "Case resumed")
		statusSnapshot(ev, prev, c.Status)

		return &effect{
			events: []*events.CaseEvent{ev},
			broadcasts: []pendingBroadcast{
				{broadcast.CaseStatus(c.ID), statusPayload(c, prev)},
				{broadcast.CaseEvents(c.ID), eventPayload(ev)},
			},
		}, nil
	})
}

// Get returns the case aggregate for read paths.
func (s *Service) Get(ctx context.Context, caseID id.CaseID) (*Case, error) {
	c, err := s.store.Get(ctx, caseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "case %s not found", caseID)
		}
		return nil, fmt.Errorf("load case: %w", err)
	}
	return c, nil
}

// Exists reports whether the case is known. The evidence ledger consults
// this before growing a chain.
func (s *Service) Exists(ctx context.Context, caseID id.CaseID) (bool, error) {
	_, err := s.store.Get(ctx, caseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load case: %w", err)
	}
	return true, nil
}

// JudgePool lists cases awaiting cognizance, newest first.
func (s *Service) JudgePool(ctx context.Context) ([]Case, error) {
	return s.store.ListByStatus(ctx, StatusPendingCognizance)
}

func statusPayload(c *Case, prev Status) map[string]string {
	return map[string]string{
		"case_id":     c.ID.String(),
		"prev_status": string(prev),
		"new_status":  string(c.Status),
	}
}

func stagePayload(c *Case, prev Stage) map[string]string {
	return map[string]string{
		"case_id":    c.ID.String(),
		"prev_stage": fmt.Sprintf("%d", prev),
		"new_stage":  fmt.Sprintf("%d", c.CurrentStage),
		"stage_name": c.CurrentStage.Name(),
	}
}

func eventPayload(ev *events.CaseEvent) map[string]string {
	payload := map[string]string{
		"event_type": string(ev.Type),
		"case_id":    ev.CaseID.String(),
		"summary":    ev.Summary,
		"actor_role": string(ev.ActorRole),
	}
	return payload
}
