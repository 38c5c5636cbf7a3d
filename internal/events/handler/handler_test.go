package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"caseflow/internal/events"
	id "caseflow/pkg/domain"
	"caseflow/pkg/testutil"
)

type TimelineHandlerSuite struct {
	suite.Suite

	log     *events.Log
	handler *Handler
	caseID  id.CaseID
}

func TestTimelineHandlerSuite(t *testing.T) {
	suite.Run(t, new(TimelineHandlerSuite))
}

func (s *TimelineHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.log = events.NewLog(events.NewInMemoryStore(), nil)
	s.handler = New(s.log, logger, nil)
	s.caseID = id.NewCaseID()
}

func (s *TimelineHandlerSuite) append(eventType events.EventType, role id.Role, at time.Time) *events.CaseEvent {
	event, err := s.log.Append(context.Background(), &events.CaseEvent{
		CaseID:     s.caseID,
		Type:       eventType,
		ActorID:    id.NewActorID(),
		ActorRole:  role,
		RecordedAt: at,
	})
	s.Require().NoError(err)
	return event
}

func (s *TimelineHandlerSuite) get(target string, caseID string, fn http.HandlerFunc) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("caseID", caseID)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	return testutil.DoRequest(fn, req)
}

type timelineResponse struct {
	Events []events.CaseEvent `json:"events"`
}

func (s *TimelineHandlerSuite) TestTimelineChronological() {
	base := time.Now().UTC().Add(-time.Minute)
	s.append(events.TypePoliceSubmit, id.RolePolice, base)
	s.append(events.TypeJudgeCognizance, id.RoleJudge, base.Add(time.Second))

	w := s.get("/cases/"+s.caseID.String()+"/events", s.caseID.String(), s.handler.handleTimeline)
	require.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())

	resp := testutil.DecodeResponse[timelineResponse](s.T(), w)
	require.Len(s.T(), resp.Events, 2)
	assert.Equal(s.T(), events.TypePoliceSubmit, resp.Events[0].Type)
	assert.Equal(s.T(), events.TypeJudgeCognizance, resp.Events[1].Type)
}

func (s *TimelineHandlerSuite) TestTimelineEmptyCase() {
	w := s.get("/cases/"+s.caseID.String()+"/events", s.caseID.String(), s.handler.handleTimeline)
	require.Equal(s.T(), http.StatusOK, w.Code)

	resp := testutil.DecodeResponse[timelineResponse](s.T(), w)
	assert.Empty(s.T(), resp.Events)
}

func (s *TimelineHandlerSuite) TestTypeFilter() {
	base := time.Now().UTC().Add(-time.Minute)
	s.append(events.TypePoliceSubmit, id.RolePolice, base)
	s.append(events.TypeStageChange, id.RoleJudge, base.Add(time.Second))

	target := "/cases/" + s.caseID.String() + "/events?type=STAGE_CHANGE"
	w := s.get(target, s.caseID.String(), s.handler.handleTimeline)
	require.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())

	resp := testutil.DecodeResponse[timelineResponse](s.T(), w)
	require.Len(s.T(), resp.Events, 1)
	assert.Equal(s.T(), events.TypeStageChange, resp.Events[0].Type)
}

func (s *TimelineHandlerSuite) TestUnknownTypeRejected() {
	target := "/cases/" + s.caseID.String() + "/events?type=NOT_A_TYPE"
	w := s.get(target, s.caseID.String(), s.handler.handleTimeline)
	testutil.AssertErrorCode(s.T(), w, http.StatusBadRequest, "invalid_input")
}

func (s *TimelineHandlerSuite) TestRoleFilter() {
	base := time.Now().UTC().Add(-time.Minute)
	s.append(events.TypePoliceSubmit, id.RolePolice, base)
	s.append(events.TypeStageChange, id.RoleJudge, base.Add(time.Second))

	target := "/cases/" + s.caseID.String() + "/events?role=judge"
	w := s.get(target, s.caseID.String(), s.handler.handleTimeline)
	require.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())

	resp := testutil.DecodeResponse[timelineResponse](s.T(), w)
	require.Len(s.T(), resp.Events, 1)
	assert.Equal(s.T(), id.RoleJudge, resp.Events[0].ActorRole)
}

func (s *TimelineHandlerSuite) TestRecentLimit() {
	base := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < 4; i++ {
		s.append(events.TypeStageChange, id.RoleJudge, base.Add(time.Duration(i)*time.Second))
	}

	target := "/cases/" + s.caseID.String() + "/events?limit=2"
	w := s.get(target, s.caseID.String(), s.handler.handleTimeline)
	require.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())

	resp := testutil.DecodeResponse[timelineResponse](s.T(), w)
	require.Len(s.T(), resp.Events, 2)
	assert.True(s.T(), resp.Events[0].RecordedAt.After(resp.Events[1].RecordedAt))
}

func (s *TimelineHandlerSuite) TestBadLimitRejected() {
	target := "/cases/" + s.caseID.String() + "/events?limit=zero"
	w := s.get(target, s.caseID.String(), s.handler.handleTimeline)
	testutil.AssertErrorCode(s.T(), w, http.StatusBadRequest, "invalid_input")
}

func (s *TimelineHandlerSuite) TestLatest() {
	base := time.Now().UTC().Add(-time.Minute)
	s.append(events.TypePoliceSubmit, id.RolePolice, base)
	latest := s.append(events.TypeJudgeCognizance, id.RoleJudge, base.Add(time.Second))

	w := s.get("/cases/"+s.caseID.String()+"/events/latest", s.caseID.String(), s.handler.handleLatest)
	require.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())

	got := testutil.DecodeResponse[events.CaseEvent](s.T(), w)
	assert.Equal(s.T(), latest.ID, got.ID)
}

func (s *TimelineHandlerSuite) TestLatestNoEvents() {
	w := s.get("/cases/"+s.caseID.String()+"/events/latest", s.caseID.String(), s.handler.handleLatest)
	testutil.AssertErrorCode(s.T(), w, http.StatusNotFound, "not_found")
}

func (s *TimelineHandlerSuite) TestMalformedCaseID() {
	w := s.get("/cases/nope/events", "nope", s.handler.handleTimeline)
	testutil.AssertErrorCode(s.T(), w, http.StatusBadRequest, "invalid_input")
}
