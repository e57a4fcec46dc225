package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/texusred/rust-wipe-bot/internal/api/middleware"
	"github.com/texusred/rust-wipe-bot/internal/dto"
	"github.com/texusred/rust-wipe-bot/internal/model"
	"github.com/texusred/rust-wipe-bot/internal/selection"
	"github.com/texusred/rust-wipe-bot/internal/service"
	pkgerrors "github.com/texusred/rust-wipe-bot/pkg/errors"
	"github.com/texusred/rust-wipe-bot/pkg/jwt"
	"github.com/texusred/rust-wipe-bot/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock AuthService ──

type mockAuthService struct {
	loginResult  *dto.TokenResponse
	loginErr     error
	logoutErr    error
	logoutClaims *jwt.Claims
}

func (m *mockAuthService) Login(_ context.Context, _ *dto.LoginRequest) (*dto.TokenResponse, error) {
	return m.loginResult, m.loginErr
}
func (m *mockAuthService) Logout(_ context.Context, claims *jwt.Claims) error {
	m.logoutClaims = claims
	return m.logoutErr
}

// ── Mock StateService ──

type mockStateService struct {
	record     *model.StateRecord
	recordErr  error
	forced     model.Phase
	reason     string
	forceErr   error
	changed    bool
	current    model.Phase
	calculated model.Phase
	next       time.Time
	nextPhase  model.Phase
}

func (m *mockStateService) GetCurrentState(_ context.Context) (model.Phase, error) {
	return m.current, nil
}
func (m *mockStateService) GetStateRecord(_ context.Context) (*model.StateRecord, error) {
	return m.record, m.recordErr
}
func (m *mockStateService) CalculateCorrectState(_ time.Time) model.Phase {
	return m.calculated
}
func (m *mockStateService) ForceState(_ context.Context, phase model.Phase, reason string) (*model.StateRecord, error) {
	m.forced, m.reason = phase, reason
	if m.forceErr != nil {
		return nil, m.forceErr
	}
	return &model.StateRecord{Phase: phase, Reason: reason}, nil
}
func (m *mockStateService) Reconcile(_ context.Context, _ time.Time) (bool, error) {
	return m.changed, nil
}
func (m *mockStateService) GetNextTransitionTime(_ time.Time) (time.Time, model.Phase) {
	return m.next, m.nextPhase
}
func (m *mockStateService) Initialize(_ context.Context, _ time.Time) error { return nil }

// ── Mock SelectionService ──

type mockSelectionService struct {
	sel    *model.Selection
	runErr error
	scores []dto.CandidateScoreResponse
}

func (m *mockSelectionService) RunSelection(_ context.Context) (*model.Selection, error) {
	return m.sel, m.runErr
}
func (m *mockSelectionService) Scores(_ context.Context) ([]dto.CandidateScoreResponse, error) {
	return m.scores, nil
}
func (m *mockSelectionService) History(_ context.Context) (selection.HistoryLookup, error) {
	return nil, nil
}
func (m *mockSelectionService) Seat(c *model.Candidate, _ selection.HistoryLookup, status model.SeatStatus) model.Seat {
	return model.Seat{CandidateID: c.CandidateID, DisplayName: c.DisplayName, Status: status}
}
func (m *mockSelectionService) RosterSize() int { return 4 }

// ── Mock ApprovalService ──

type mockApprovalService struct {
	pending     *dto.PendingResponse
	err         error
	submitted   *model.Selection
	actor       string
	editReq     *dto.ManualEditRequest
	committed   bool
	approvedOut *model.Cycle
}

func (m *mockApprovalService) SubmitForApproval(_ context.Context, sel *model.Selection) (*dto.PendingResponse, error) {
	m.submitted = sel
	if m.err != nil {
		return nil, m.err
	}
	return &dto.PendingResponse{Selection: sel, Version: 1}, nil
}
func (m *mockApprovalService) Approve(_ context.Context, actor string) (*model.Cycle, error) {
	m.actor = actor
	return m.approvedOut, m.err
}
func (m *mockApprovalService) Regenerate(_ context.Context, actor string) (*model.Selection, error) {
	m.actor = actor
	return &model.Selection{}, m.err
}
func (m *mockApprovalService) ManualEdit(_ context.Context, req *dto.ManualEditRequest, actor string) (*model.Selection, error) {
	m.editReq, m.actor = req, actor
	if m.err != nil {
		return nil, m.err
	}
	return &model.Selection{Provenance: model.ManualProvenance(actor)}, nil
}
func (m *mockApprovalService) CheckAutoApproval(_ context.Context, _ time.Time) (bool, error) {
	return m.committed, m.err
}
func (m *mockApprovalService) Cancel(_ context.Context, actor string) error {
	m.actor = actor
	return m.err
}
func (m *mockApprovalService) GetPending(_ context.Context) (*dto.PendingResponse, error) {
	return m.pending, m.err
}

// ── Mock CandidateService ──

type mockCandidateService struct {
	candidate *model.Candidate
	list      []model.Candidate
	err       error
	skip      *bool
}

func (m *mockCandidateService) Create(_ context.Context, req *dto.CreateCandidateRequest, _ string) (*model.Candidate, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &model.Candidate{CandidateID: req.CandidateID, DisplayName: req.DisplayName, IsActive: true}, nil
}
func (m *mockCandidateService) List(_ context.Context, _ *dto.CandidateListRequest) ([]model.Candidate, error) {
	return m.list, m.err
}
func (m *mockCandidateService) Get(_ context.Context, _ string) (*model.Candidate, error) {
	return m.candidate, m.err
}
func (m *mockCandidateService) SetActive(_ context.Context, _ string, _ bool, _ string) (*model.Candidate, error) {
	return m.candidate, m.err
}
func (m *mockCandidateService) Lock(_ context.Context, _ string, _ string) (*model.Candidate, error) {
	return m.candidate, m.err
}
func (m *mockCandidateService) Unlock(_ context.Context, _ string) (*model.Candidate, error) {
	return m.candidate, m.err
}
func (m *mockCandidateService) ExpressInterest(_ context.Context, _ string) error {
	return m.err
}
func (m *mockCandidateService) SkipNext(_ context.Context, _ string, skip bool) (*model.Candidate, error) {
	m.skip = &skip
	return m.candidate, m.err
}
func (m *mockCandidateService) Scores(_ context.Context) ([]dto.CandidateScoreResponse, error) {
	return nil, m.err
}

// ── Mock ParticipationService ──

type mockParticipationService struct {
	seat   *model.Seat
	passed *dto.PassTurnResponse
	err    error
}

func (m *mockParticipationService) Confirm(_ context.Context, _ string) (*model.Seat, error) {
	return m.seat, m.err
}
func (m *mockParticipationService) PassTurn(_ context.Context, _ string) (*dto.PassTurnResponse, error) {
	return m.passed, m.err
}

// ── Mock CycleService ──

type mockCycleService struct {
	cycle *model.Cycle
	err   error
	limit int
}

func (m *mockCycleService) Current(_ context.Context) (*model.Cycle, error) {
	return m.cycle, m.err
}
func (m *mockCycleService) Recent(_ context.Context, limit int) ([]model.Cycle, error) {
	m.limit = limit
	return nil, m.err
}
func (m *mockCycleService) StartCycle(_ context.Context, _ time.Time, _ string) (*model.Cycle, error) {
	return m.cycle, m.err
}
func (m *mockCycleService) EnsureActive(_ context.Context, _ time.Time, _ string) (*model.Cycle, error) {
	return m.cycle, m.err
}

// ── Mock ExportService ──

type mockExportService struct {
	buf      *bytes.Buffer
	filename string
	err      error
	weeks    int
}

func (m *mockExportService) ExportCycle(_ context.Context) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}
func (m *mockExportService) ExportCalendar(_ context.Context, _ time.Time, weeks int) (*bytes.Buffer, string, error) {
	m.weeks = weeks
	return m.buf, m.filename, m.err
}

// ── Mock BoardService ──

type mockBoardService struct {
	target string
	err    error
}

func (m *mockBoardService) Bind(_ context.Context, target string) error {
	m.target = target
	return m.err
}
func (m *mockBoardService) Refresh(_ context.Context) error { return nil }
func (m *mockBoardService) PublishApproval(_ context.Context, _ *model.Selection, _ *time.Time, _ string) error {
	return nil
}
func (m *mockBoardService) CloseApproval(_ context.Context, _ string) error { return nil }

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

func setAuth(c *gin.Context) {
	c.Set(middleware.ContextActor, "alice")
	c.Set(middleware.ContextRole, service.RoleAdmin)
	c.Set(middleware.ContextClaims, &jwt.Claims{Actor: "alice", Role: service.RoleAdmin, TokenType: "access"})
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

// serve 注册单个路由并发起请求，auth=true 时模拟 JWT 中间件注入身份
func serve(method, path, route string, auth bool, h gin.HandlerFunc, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := gin.New()
	r.Handle(method, route, func(c *gin.Context) {
		if auth {
			setAuth(c)
		}
		h(c)
	})
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, status, code int) {
	t.Helper()
	if w.Code != status {
		t.Errorf("期望 HTTP %d，实际 %d，body=%s", status, w.Code, w.Body.String())
	}
	if resp := parseResponse(w); resp.Code != code {
		t.Errorf("期望业务码 %d，实际 %d", code, resp.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// AuthHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAuthHandler_Login_Success(t *testing.T) {
	mock := &mockAuthService{loginResult: &dto.TokenResponse{AccessToken: "token", ExpiresIn: 3600, Username: "alice"}}
	h := NewAuthHandler(mock)

	w := serve("POST", "/auth/login", "/auth/login", false, h.Login,
		jsonBody(dto.LoginRequest{Username: "alice", Password: "secret"}))

	assertStatus(t, w, http.StatusOK, 0)
}

func TestAuthHandler_Login_BadJSON(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	w := serve("POST", "/auth/login", "/auth/login", false, h.Login, bytes.NewReader([]byte("invalid json")))

	assertStatus(t, w, http.StatusBadRequest, codeBadRequest)
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{loginErr: service.ErrInvalidCredentials})

	w := serve("POST", "/auth/login", "/auth/login", false, h.Login,
		jsonBody(dto.LoginRequest{Username: "alice", Password: "wrong"}))

	assertStatus(t, w, http.StatusUnauthorized, codeInvalidCredentials)
}

func TestAuthHandler_Logout(t *testing.T) {
	mock := &mockAuthService{}
	h := NewAuthHandler(mock)

	w := serve("POST", "/auth/logout", "/auth/logout", true, h.Logout, nil)

	assertStatus(t, w, http.StatusOK, 0)
	if mock.logoutClaims == nil || mock.logoutClaims.Actor != "alice" {
		t.Error("Logout 应收到当前 Token 声明")
	}
}

func TestAuthHandler_Logout_Unauthenticated(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	w := serve("POST", "/auth/logout", "/auth/logout", false, h.Logout, nil)

	assertStatus(t, w, http.StatusUnauthorized, 10002)
}

// ═══════════════════════════════════════════════════════════
// StateHandler Tests
// ═══════════════════════════════════════════════════════════

func TestStateHandler_GetState(t *testing.T) {
	next := time.Date(2026, 3, 13, 23, 0, 0, 0, time.UTC)
	mock := &mockStateService{
		record:     &model.StateRecord{Phase: model.PhaseResults, Reason: "Selection approved by alice"},
		calculated: model.PhaseResults,
		next:       next,
		nextPhase:  model.PhaseWipeInProgress,
	}
	h := NewStateHandler(mock)

	w := serve("GET", "/state", "/state", true, h.GetState, nil)

	assertStatus(t, w, http.StatusOK, 0)
	var body struct {
		Data dto.StateResponse `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Data.Phase != model.PhaseResults || body.Data.NextPhase != model.PhaseWipeInProgress {
		t.Errorf("阶段响应不符: %+v", body.Data)
	}
	if !body.Data.NextTransition.Equal(next) {
		t.Errorf("期望下一次切换 %s，实际 %s", next, body.Data.NextTransition)
	}
}

func TestStateHandler_ForceState_LegacyNumber(t *testing.T) {
	mock := &mockStateService{}
	h := NewStateHandler(mock)

	w := serve("PUT", "/state", "/state", true, h.ForceState, jsonBody(dto.ForceStateRequest{Phase: "2"}))

	assertStatus(t, w, http.StatusOK, 0)
	if mock.forced != model.PhasePreSelection {
		t.Errorf("期望设置为 pre_selection，实际 %q", mock.forced)
	}
	if mock.reason != "Manual override by alice" {
		t.Errorf("默认原因不符: %q", mock.reason)
	}
}

func TestStateHandler_ForceState_InvalidPhase(t *testing.T) {
	mock := &mockStateService{}
	h := NewStateHandler(mock)

	w := serve("PUT", "/state", "/state", true, h.ForceState, jsonBody(dto.ForceStateRequest{Phase: "maintenance"}))

	assertStatus(t, w, http.StatusBadRequest, codeInvalidState)
	if mock.forced != "" {
		t.Error("无效阶段不应调用 ForceState")
	}
}

func TestStateHandler_ForceState_StoreFailure(t *testing.T) {
	mock := &mockStateService{forceErr: pkgerrors.Persistence("set state_record", errors.New("disk full"))}
	h := NewStateHandler(mock)

	w := serve("PUT", "/state", "/state", true, h.ForceState, jsonBody(dto.ForceStateRequest{Phase: "results"}))

	assertStatus(t, w, http.StatusServiceUnavailable, codeStoreFailed)
}

func TestStateHandler_Reconcile(t *testing.T) {
	mock := &mockStateService{changed: true, current: model.PhaseWipeInProgress}
	h := NewStateHandler(mock)

	w := serve("POST", "/state/reconcile", "/state/reconcile", true, h.Reconcile, nil)

	assertStatus(t, w, http.StatusOK, 0)
	var body struct {
		Data dto.ReconcileResponse `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if !body.Data.Changed || body.Data.Phase != model.PhaseWipeInProgress {
		t.Errorf("校准结果不符: %+v", body.Data)
	}
}

// ═══════════════════════════════════════════════════════════
// SelectionHandler Tests
// ═══════════════════════════════════════════════════════════

func TestSelectionHandler_Preview_InsufficientPool(t *testing.T) {
	h := NewSelectionHandler(&mockSelectionService{runErr: selection.ErrInsufficientPool})

	w := serve("POST", "/selection/preview", "/selection/preview", true, h.Preview, nil)

	assertStatus(t, w, http.StatusUnprocessableEntity, codeInsufficientPool)
}

func TestSelectionHandler_Scores(t *testing.T) {
	h := NewSelectionHandler(&mockSelectionService{scores: []dto.CandidateScoreResponse{
		{Rank: 1, CandidateID: "c1", Score: 120},
		{Rank: 2, CandidateID: "c2", Score: 80},
	}})

	w := serve("GET", "/selection/scores", "/selection/scores", true, h.Scores, nil)

	assertStatus(t, w, http.StatusOK, 0)
	var body struct {
		Data response.ListData `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Data.Total != 2 {
		t.Errorf("期望 2 条评分，实际 %d", body.Data.Total)
	}
}

// ═══════════════════════════════════════════════════════════
// ApprovalHandler Tests
// ═══════════════════════════════════════════════════════════

func TestApprovalHandler_Submit(t *testing.T) {
	sel := &model.Selection{Provenance: model.ProvenanceAlgorithm}
	approval := &mockApprovalService{}
	h := NewApprovalHandler(approval, &mockSelectionService{sel: sel})

	w := serve("POST", "/approval/submit", "/approval/submit", true, h.Submit, nil)

	assertStatus(t, w, http.StatusCreated, 0)
	if approval.submitted != sel {
		t.Error("应提交选人结果")
	}
}

func TestApprovalHandler_Approve(t *testing.T) {
	approval := &mockApprovalService{approvedOut: &model.Cycle{CycleID: "cycle-1"}}
	h := NewApprovalHandler(approval, &mockSelectionService{})

	w := serve("POST", "/approval/approve", "/approval/approve", true, h.Approve, nil)

	assertStatus(t, w, http.StatusOK, 0)
	if approval.actor != "alice" {
		t.Errorf("操作人应为 alice，实际 %q", approval.actor)
	}
}

func TestApprovalHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"无待审批名单", service.ErrPendingNotFound, http.StatusNotFound, codePendingNotFound},
		{"并发冲突", service.ErrPendingConflict, http.StatusConflict, codePendingConflict},
		{"包装后的冲突", errors.Join(errors.New("commit"), service.ErrPendingConflict), http.StatusConflict, codePendingConflict},
		{"未知错误", errors.New("boom"), http.StatusInternalServerError, 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewApprovalHandler(&mockApprovalService{err: tt.err}, &mockSelectionService{})
			w := serve("POST", "/approval/approve", "/approval/approve", true, h.Approve, nil)
			assertStatus(t, w, tt.status, tt.code)
		})
	}
}

func TestApprovalHandler_ManualEdit_ValidationDetails(t *testing.T) {
	approval := &mockApprovalService{err: &service.ValidationError{Slot: "seat 2", Reason: "candidate not found"}}
	h := NewApprovalHandler(approval, &mockSelectionService{})

	w := serve("POST", "/approval/manual-edit", "/approval/manual-edit", true, h.ManualEdit,
		jsonBody(dto.ManualEditRequest{Seats: []string{"c1", "ghost"}}))

	assertStatus(t, w, http.StatusUnprocessableEntity, codeManualEdit)
	var body struct {
		Details map[string]string `json:"details"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Details["slot"] != "seat 2" {
		t.Errorf("期望 details.slot=seat 2，实际 %v", body.Details)
	}
	if len(approval.editReq.Seats) != 2 {
		t.Error("请求应原样传给 service")
	}
}

func TestApprovalHandler_ManualEdit_MissingSeats(t *testing.T) {
	h := NewApprovalHandler(&mockApprovalService{}, &mockSelectionService{})

	w := serve("POST", "/approval/manual-edit", "/approval/manual-edit", true, h.ManualEdit, jsonBody(map[string]string{}))

	assertStatus(t, w, http.StatusBadRequest, codeBadRequest)
}

func TestApprovalHandler_CheckTimeout(t *testing.T) {
	h := NewApprovalHandler(&mockApprovalService{committed: true}, &mockSelectionService{})

	w := serve("POST", "/approval/check-timeout", "/approval/check-timeout", true, h.CheckTimeout, nil)

	assertStatus(t, w, http.StatusOK, 0)
	var body struct {
		Data dto.AutoApprovalResponse `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if !body.Data.Committed {
		t.Error("期望 committed=true")
	}
}

// ═══════════════════════════════════════════════════════════
// CandidateHandler Tests
// ═══════════════════════════════════════════════════════════

func TestCandidateHandler_Create(t *testing.T) {
	h := NewCandidateHandler(&mockCandidateService{}, &mockParticipationService{})

	w := serve("POST", "/candidates", "/candidates", true, h.CreateCandidate,
		jsonBody(dto.CreateCandidateRequest{CandidateID: "c9", DisplayName: "Player 9"}))

	assertStatus(t, w, http.StatusCreated, 0)
}

func TestCandidateHandler_Create_Exists(t *testing.T) {
	h := NewCandidateHandler(&mockCandidateService{err: service.ErrCandidateExists}, &mockParticipationService{})

	w := serve("POST", "/candidates", "/candidates", true, h.CreateCandidate,
		jsonBody(dto.CreateCandidateRequest{CandidateID: "c1", DisplayName: "Player 1"}))

	assertStatus(t, w, http.StatusConflict, codeCandidateExists)
}

func TestCandidateHandler_Lock_AnotherLocked(t *testing.T) {
	h := NewCandidateHandler(&mockCandidateService{err: service.ErrAnotherLocked}, &mockParticipationService{})

	w := serve("PUT", "/candidates/c2/lock", "/candidates/:id/lock", true, h.Lock, nil)

	assertStatus(t, w, http.StatusConflict, codeAnotherLocked)
}

func TestCandidateHandler_SkipNext_RequiresFlag(t *testing.T) {
	mock := &mockCandidateService{candidate: &model.Candidate{CandidateID: "c1"}}
	h := NewCandidateHandler(mock, &mockParticipationService{})

	w := serve("POST", "/candidates/c1/skip-next", "/candidates/:id/skip-next", true, h.SkipNext, jsonBody(map[string]bool{}))
	assertStatus(t, w, http.StatusBadRequest, codeBadRequest)

	w = serve("POST", "/candidates/c1/skip-next", "/candidates/:id/skip-next", true, h.SkipNext, jsonBody(map[string]bool{"skip": false}))
	assertStatus(t, w, http.StatusOK, 0)
	if mock.skip == nil || *mock.skip {
		t.Error("skip=false 应原样传给 service")
	}
}

func TestCandidateHandler_Confirm_SeatLocked(t *testing.T) {
	h := NewCandidateHandler(&mockCandidateService{}, &mockParticipationService{err: service.ErrSeatLocked})

	w := serve("POST", "/candidates/c0/confirm", "/candidates/:id/confirm", true, h.Confirm, nil)

	assertStatus(t, w, http.StatusConflict, codeSeatLocked)
}

func TestCandidateHandler_PassTurn(t *testing.T) {
	h := NewCandidateHandler(&mockCandidateService{}, &mockParticipationService{passed: &dto.PassTurnResponse{
		Removed:  model.Seat{CandidateID: "c1", Status: model.SeatPending},
		Promoted: model.Seat{CandidateID: "c4", Status: model.SeatPending},
	}})

	w := serve("POST", "/candidates/c1/pass", "/candidates/:id/pass", true, h.PassTurn, nil)

	assertStatus(t, w, http.StatusOK, 0)
}

func TestCandidateHandler_PassTurn_NoBackup(t *testing.T) {
	h := NewCandidateHandler(&mockCandidateService{}, &mockParticipationService{err: service.ErrNoBackupAvailable})

	w := serve("POST", "/candidates/c1/pass", "/candidates/:id/pass", true, h.PassTurn, nil)

	assertStatus(t, w, http.StatusConflict, codeNoBackupAvailable)
}

// ═══════════════════════════════════════════════════════════
// CycleHandler / ExportHandler / BoardHandler Tests
// ═══════════════════════════════════════════════════════════

func TestCycleHandler_GetCurrent_NotFound(t *testing.T) {
	h := NewCycleHandler(&mockCycleService{err: service.ErrCycleNotFound})

	w := serve("GET", "/cycles/current", "/cycles/current", true, h.GetCurrent, nil)

	assertStatus(t, w, http.StatusNotFound, codeCycleNotFound)
}

func TestCycleHandler_ListRecent_Limit(t *testing.T) {
	mock := &mockCycleService{}
	h := NewCycleHandler(mock)

	w := serve("GET", "/cycles?limit=3", "/cycles", true, h.ListRecent, nil)
	assertStatus(t, w, http.StatusOK, 0)
	if mock.limit != 3 {
		t.Errorf("期望 limit=3，实际 %d", mock.limit)
	}

	w = serve("GET", "/cycles?limit=abc", "/cycles", true, h.ListRecent, nil)
	assertStatus(t, w, http.StatusBadRequest, codeBadRequest)
}

func TestExportHandler_ExportCycle(t *testing.T) {
	h := NewExportHandler(&mockExportService{
		buf:      bytes.NewBufferString("xlsx-bytes"),
		filename: "wipe_roster_20260309.xlsx",
	})

	w := serve("GET", "/export/cycle", "/export/cycle", true, h.ExportCycle, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("Content-Type 不符: %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != "attachment; filename*=UTF-8''wipe_roster_20260309.xlsx" {
		t.Errorf("Content-Disposition 不符: %s", cd)
	}
	if w.Body.String() != "xlsx-bytes" {
		t.Error("响应体应为导出的文件内容")
	}
}

func TestExportHandler_NoCommittedSelection(t *testing.T) {
	h := NewExportHandler(&mockExportService{err: service.ErrNoCommittedSelection})

	w := serve("GET", "/export/cycle", "/export/cycle", true, h.ExportCycle, nil)

	assertStatus(t, w, http.StatusNotFound, codeNoCommitted)
}

func TestExportHandler_ExportCalendar(t *testing.T) {
	mock := &mockExportService{
		buf:      bytes.NewBufferString("BEGIN:VCALENDAR"),
		filename: "wipe_schedule_20260309.ics",
	}
	h := NewExportHandler(mock)

	w := serve("GET", "/export/calendar?weeks=2", "/export/calendar", true, h.ExportCalendar, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != calendarContentType {
		t.Errorf("Content-Type 不符: %s", ct)
	}
	if mock.weeks != 2 {
		t.Errorf("期望 weeks=2，实际 %d", mock.weeks)
	}

	w = serve("GET", "/export/calendar?weeks=two", "/export/calendar", true, h.ExportCalendar, nil)
	assertStatus(t, w, http.StatusBadRequest, codeBadRequest)
}

func TestBoardHandler_BindTarget(t *testing.T) {
	mock := &mockBoardService{}
	h := NewBoardHandler(mock)

	w := serve("PUT", "/board/target", "/board/target", true, h.BindTarget, jsonBody(dto.BindBoardRequest{Target: "#wipe-board"}))

	assertStatus(t, w, http.StatusOK, 0)
	if mock.target != "#wipe-board" {
		t.Errorf("期望绑定 #wipe-board，实际 %q", mock.target)
	}
}

func TestBoardHandler_BindTarget_Empty(t *testing.T) {
	h := NewBoardHandler(&mockBoardService{})

	w := serve("PUT", "/board/target", "/board/target", true, h.BindTarget, jsonBody(dto.BindBoardRequest{}))

	assertStatus(t, w, http.StatusBadRequest, codeBadRequest)
}
