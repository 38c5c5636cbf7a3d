package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"caseflow/internal/broadcast"
	"caseflow/internal/caselock"
	"caseflow/internal/cases"
	"caseflow/internal/events"
	"caseflow/internal/platform/middleware"
	id "caseflow/pkg/domain"
	"caseflow/pkg/platform/tx"
)

type noopBroadcaster struct{}

func (noopBroadcaster) Publish(broadcast.Topic, map[string]string) {}

type CaseHandlerSuite struct {
	suite.Suite

	svc     *cases.Service
	handler *Handler

	police id.Actor
	judge  id.Actor
}

func TestCaseHandlerSuite(t *testing.T) {
	suite.Run(t, new(CaseHandlerSuite))
}

func (s *CaseHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.svc = cases.NewService(
		cases.NewInMemoryStore(),
		events.NewLog(events.NewInMemoryStore(), nil),
		caselock.NewMemoryLocker(),
		tx.NewRunner(nil),
		noopBroadcaster{},
		cases.DefaultPolicy(),
		nil,
		logger,
	)
	s.handler = New(s.svc, logger, nil)

	s.police = id.Actor{ID: id.NewActorID(), Role: id.RolePolice, Name: "Officer Rao"}
	s.judge = id.Actor{ID: id.NewActorID(), Role: id.RoleJudge, Name: "Justice Mehta"}
}

// do runs a request directly against a handler func as the given actor,
// bypassing the JWT middleware the way the auth context would set it up.
func (s *CaseHandlerSuite) do(method, target string, body any, actor id.Actor, fn http.HandlerFunc, params map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.T(), json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = middleware.WithActor(ctx, actor)
	req = req.WithContext(ctx)

	w := httptest.NewRecorder()
	fn(w, req)
	return w
}

func (s *CaseHandlerSuite) openCase() cases.Snapshot {
	w := s.do(http.MethodPost, "/cases", openCaseRequest{Title: "State v. Deshmukh", FIRFiled: true}, s.police, s.handler.handleOpenCase, nil)
	require.Equal(s.T(), http.StatusCreated, w.Code, w.Body.String())

	var snap cases.Snapshot
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &snap))
	return snap
}

func (s *CaseHandlerSuite) TestOpenCase() {
	snap := s.openCase()
	assert.Equal(s.T(), cases.StatusFIRFiled, snap.Status)
	assert.Equal(s.T(), "State v. Deshmukh", snap.Title)
	assert.False(s.T(), snap.ID.IsNil())
}

func (s *CaseHandlerSuite) TestOpenCaseRejectsBadBody() {
	req := httptest.NewRequest(http.MethodPost, "/cases", bytes.NewBufferString("{not json"))
	req = req.WithContext(middleware.WithActor(req.Context(), s.police))
	w := httptest.NewRecorder()
	s.handler.handleOpenCase(w, req)
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *CaseHandlerSuite) TestSubmitAndGet() {
	snap := s.openCase()
	params := map[string]string{"caseID": snap.ID.String()}

	w := s.do(http.MethodPost, "/cases/"+snap.ID.String()+"/submit", nil, s.police, s.handler.handlePoliceSubmit, params)
	require.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())

	var updated cases.Snapshot
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(s.T(), cases.StatusPendingCognizance, updated.Status)

	w = s.do(http.MethodGet, "/cases/"+snap.ID.String(), nil, s.police, s.handler.handleGetCase, params)
	require.Equal(s.T(), http.StatusOK, w.Code)
}

func (s *CaseHandlerSuite) TestGuardFailureMapsToConflict() {
	snap := s.openCase()
	params := map[string]string{"caseID": snap.ID.String()}

	// Cognizance before submission violates the lifecycle.
	w := s.do(http.MethodPost, "/cases/"+snap.ID.String()+"/cognizance", nil, s.judge, s.handler.handleTakeCognizance, params)
	assert.Equal(s.T(), http.StatusConflict, w.Code, w.Body.String())

	var resp map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "invalid_state_transition", resp["error"])
}

func (s *CaseHandlerSuite) TestRoleViolationMapsToForbidden() {
	snap := s.openCase()
	params := map[string]string{"caseID": snap.ID.String()}

	w := s.do(http.MethodPost, "/cases/"+snap.ID.String()+"/submit", nil, s.judge, s.handler.handlePoliceSubmit, params)
	assert.Equal(s.T(), http.StatusForbidden, w.Code, w.Body.String())
}

func (s *CaseHandlerSuite) TestUnknownCaseMapsToNotFound() {
	params := map[string]string{"caseID": id.NewCaseID().String()}
	w := s.do(http.MethodPost, "/cases/x/submit", nil, s.police, s.handler.handlePoliceSubmit, params)
	assert.Equal(s.T(), http.StatusNotFound, w.Code, w.Body.String())
}

func (s *CaseHandlerSuite) TestMalformedCaseID() {
	params := map[string]string{"caseID": "not-a-uuid"}
	w := s.do(http.MethodPost, "/cases/not-a-uuid/submit", nil, s.police, s.handler.handlePoliceSubmit, params)
	assert.Equal(s.T(), http.StatusBadRequest, w.Code, w.Body.String())
}

func (s *CaseHandlerSuite) TestJudgePool() {
	snap := s.openCase()
	params := map[string]string{"caseID": snap.ID.String()}
	w := s.do(http.MethodPost, "/cases/"+snap.ID.String()+"/submit", nil, s.police, s.handler.handlePoliceSubmit, params)
	require.Equal(s.T(), http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/cases/pool", nil, s.judge, s.handler.handleJudgePool, nil)
	require.Equal(s.T(), http.StatusOK, w.Code)

	var resp struct {
		Cases []cases.Snapshot `json:"cases"`
	}
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(s.T(), resp.Cases, 1)
	assert.Equal(s.T(), snap.ID, resp.Cases[0].ID)
}
