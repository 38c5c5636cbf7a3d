// Package broadcast decouples durable writes from notification delivery.
//
// Services publish messages only after their transaction commits; a
// dispatcher drains the queue and fans out to sinks. A sink failure is logged
// and swallowed, never surfaced to the command that produced the message.
package broadcast

import (
	"context"
	"fmt"
	"time"

	id "caseflow/pkg/domain"
)

// Topic names a logical notification channel. Subscribers pick topics, not
// transports.
type Topic string

// Topic constructors for the engine's outbound contract.
func CaseEvents(caseID id.CaseID) Topic { return Topic(fmt.Sprintf("case.%s.events", caseID)) }
func CaseStatus(caseID id.CaseID) Topic { return Topic(fmt.Sprintf("case.%s.status", caseID)) }
func CaseStage(caseID id.CaseID) Topic  { return Topic(fmt.Sprintf("case.%s.stage", caseID)) }
func LitigantActions(litigant id.ActorID) Topic {
	return Topic(fmt.Sprintf("litigant.%s.actions", litigant))
}
func LawyerApprovals(lawyer id.ActorID) Topic {
	return Topic(fmt.Sprintf("lawyer.%s.approvals", lawyer))
}

// JudgeUnassigned is the pool topic for cases awaiting cognizance.
const JudgeUnassigned Topic = "judge.unassigned"

// Message is one notification in flight. Payload is already
// transport-agnostic key/value data; sinks serialize it as they need.
type Message struct {
	Topic      Topic
	Payload    map[string]string
	EnqueuedAt time.Time
}

// Notifier delivers a message on a named topic. Implementations must be safe
// for concurrent use. Delivery guarantees are the sink's own business: the
// engine never waits on them.
type Notifier interface {
	Notify(ctx context.Context, topic Topic, payload map[string]string) error
}
