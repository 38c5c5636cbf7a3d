package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

type LogSuite struct {
	suite.Suite

	ctx    context.Context
	log    *Log
	caseID id.CaseID
	actor  id.Actor
	clock  time.Time
}

func TestLogSuite(t *testing.T) {
	suite.Run(t, new(LogSuite))
}

func (s *LogSuite) SetupTest() {
	s.ctx = context.Background()
	s.caseID = id.NewCaseID()
	s.actor = id.Actor{ID: id.NewActorID(), Role: id.RolePolice, Name: "Officer Rao"}
	s.clock = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s.log = NewLog(NewInMemoryStore(), nil).WithClock(func() time.Time {
		s.clock = s.clock.Add(time.Second)
		return s.clock
	})
}

func (s *LogSuite) appendType(t EventType) *CaseEvent {
	event, err := s.log.Append(s.ctx, &CaseEvent{
		CaseID:    s.caseID,
		Type:      t,
		ActorID:   s.actor.ID,
		ActorRole: s.actor.Role,
		ActorName: s.actor.Name,
	})
	s.Require().NoError(err)
	return event
}

func (s *LogSuite) TestAppend() {
	s.Run("stamps id and timestamp", func() {
		event := s.appendType(TypePoliceSubmit)
		s.False(event.ID.IsNil())
		s.False(event.RecordedAt.IsZero())
	})

	s.Run("rejects unknown types", func() {
		_, err := s.log.Append(s.ctx, &CaseEvent{
			CaseID: s.caseID,
			Type:   EventType("CASE_TELEPORTED"),
		})
		s.Error(err)
	})

	s.Run("assigns increasing sequence numbers", func() {
		first := s.appendType(TypeStageChange)
		second := s.appendType(TypeStageChange)
		s.Greater(second.Seq, first.Seq)
	})
}

func (s *LogSuite) TestTimelineFor() {
	s.appendType(TypePoliceSubmit)
	s.appendType(TypeJudgeCognizance)
	s.appendType(TypeStageChange)

	timeline, err := s.log.TimelineFor(s.ctx, s.caseID)
	s.Require().NoError(err)
	s.Require().Len(timeline, 3)
	s.Equal(TypePoliceSubmit, timeline[0].Type)
	s.Equal(TypeStageChange, timeline[2].Type)

	// Other cases stay invisible.
	other, err := s.log.TimelineFor(s.ctx, id.NewCaseID())
	s.Require().NoError(err)
	s.Empty(other)
}

func (s *LogSuite) TestRecentFor() {
	s.appendType(TypePoliceSubmit)
	s.appendType(TypeJudgeCognizance)
	s.appendType(TypeStageChange)

	recent, err := s.log.RecentFor(s.ctx, s.caseID, 2)
	s.Require().NoError(err)
	s.Require().Len(recent, 2)
	s.Equal(TypeStageChange, recent[0].Type)
	s.Equal(TypeJudgeCognizance, recent[1].Type)
}

func (s *LogSuite) TestFilters() {
	s.appendType(TypePoliceSubmit)
	s.appendType(TypeStageChange)
	s.appendType(TypeStageChange)

	s.Run("by type", func() {
		got, err := s.log.FilterByType(s.ctx, s.caseID, TypeStageChange)
		s.Require().NoError(err)
		s.Len(got, 2)
	})

	s.Run("rejects unknown type", func() {
		_, err := s.log.FilterByType(s.ctx, s.caseID, EventType("nope"))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("by actor role", func() {
		got, err := s.log.FilterByActorRole(s.ctx, s.caseID, id.RolePolice)
		s.Require().NoError(err)
		s.Len(got, 3)

		got, err = s.log.FilterByActorRole(s.ctx, s.caseID, id.RoleJudge)
		s.Require().NoError(err)
		s.Empty(got)
	})
}

func (s *LogSuite) TestLatestFor() {
	s.Run("nil when the case has no events", func() {
		event, err := s.log.LatestFor(s.ctx, s.caseID)
		s.Require().NoError(err)
		s.Nil(event)
	})

	s.Run("returns the newest event", func() {
		s.appendType(TypePoliceSubmit)
		latest := s.appendType(TypeJudgeCognizance)

		event, err := s.log.LatestFor(s.ctx, s.caseID)
		s.Require().NoError(err)
		s.Require().NotNil(event)
		s.Equal(latest.ID, event.ID)
	})
}
