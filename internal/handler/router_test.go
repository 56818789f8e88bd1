package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/pairquiz/internal/metrics"
	"github.com/hitoshi/pairquiz/internal/middleware"
	"github.com/hitoshi/pairquiz/internal/model"
	"github.com/hitoshi/pairquiz/internal/question"
	"github.com/hitoshi/pairquiz/internal/security"
	"github.com/hitoshi/pairquiz/internal/user"
)

// --- インメモリストア ---

// memStore はUserRepositoryとQuestionRepositoryを兼ねるインメモリ実装。
type memStore struct {
	mu        sync.Mutex
	users     map[string]*model.User // username -> user
	questions []*model.Question
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*model.User)}
}

func (s *memStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[username], nil
}

func (s *memStore) List(ctx context.Context) ([]*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *memStore) CreateIfNotExists(ctx context.Context, u *model.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Username]; ok {
		return false, nil
	}
	if u.ID == "" {
		u.ID = model.NewID()
	}
	s.users[u.Username] = u
	return true, nil
}

func (s *memStore) userByID(id string) *model.User {
	for _, u := range s.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// memUserRepo はmemStoreのユーザー側ビュー。FindByIDの名前がQuestionRepositoryと衝突するため分ける。
type memUserRepo struct{ *memStore }

func (r memUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userByID(id), nil
}

// memQuestionRepo はmemStoreの質問側ビュー。
type memQuestionRepo struct{ *memStore }

func (r memQuestionRepo) Create(ctx context.Context, q *model.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *q
	r.questions = append(r.questions, &cp)
	return nil
}

func (r memQuestionRepo) withNames(q *model.Question) *model.Question {
	cp := *q
	if u := r.userByID(q.CreatedBy); u != nil {
		cp.CreatedByUsername = u.Username
	}
	if u := r.userByID(q.IntendedFor); u != nil {
		cp.IntendedForUsername = u.Username
	}
	return &cp
}

func (r memQuestionRepo) FindByID(ctx context.Context, id string) (*model.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.questions {
		if q.ID == id {
			return r.withNames(q), nil
		}
	}
	return nil, nil
}

func (r memQuestionRepo) ListUnansweredFor(ctx context.Context, userID string) ([]*model.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Question{}
	for i := len(r.questions) - 1; i >= 0; i-- {
		q := r.questions[i]
		if q.IntendedFor == userID && q.Answer == nil {
			out = append(out, r.withNames(q))
		}
	}
	return out, nil
}

func (r memQuestionRepo) RecordAnswer(ctx context.Context, questionID string, answer model.Answer) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.questions {
		if q.ID == questionID {
			if q.Answer != nil {
				return false, nil
			}
			a := answer
			q.Answer = &a
			return true, nil
		}
	}
	return false, nil
}

func (r memQuestionRepo) TallyAnswered(ctx context.Context, createdBy, intendedFor string) (model.ScoreTally, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var t model.ScoreTally
	for _, q := range r.questions {
		if q.CreatedBy == createdBy && q.IntendedFor == intendedFor && q.Answer != nil {
			t.Answered++
			if q.Answer.Correct {
				t.Correct++
			}
		}
	}
	return t, nil
}

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// --- テストヘルパー ---

type testApp struct {
	router   http.Handler
	registry *prometheus.Registry
	limiter  *middleware.RateLimiter
	shivamID string
	shreyaID string
}

func newTestApp(t *testing.T, limiterCfg middleware.RateLimiterConfig) *testApp {
	t.Helper()

	store := newMemStore()
	users := memUserRepo{store}
	dir := user.NewDirectory(users)
	if err := dir.EnsureSeedUsers(context.Background()); err != nil {
		t.Fatalf("EnsureSeedUsers: %v", err)
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	svc := question.NewService(memQuestionRepo{store}, users, dir, security.NewMarkupDetector(), collector)

	limiter := middleware.NewRateLimiter(limiterCfg)
	t.Cleanup(limiter.Stop)

	router := NewRouter(&RouterDeps{
		HealthChecker:   &mockHealthChecker{},
		AllowedOrigins:  []string{"http://localhost:5173"},
		RateLimiter:     limiter,
		Logger:          slogDiscard(),
		Metrics:         collector,
		MetricsGatherer: reg,
		UserService:     NewUserServiceAdapter(dir),
		QuestionService: NewQuestionServiceAdapter(svc),
	})

	shivam, _ := store.FindByUsername(context.Background(), model.UsernameShivam)
	shreya, _ := store.FindByUsername(context.Background(), model.UsernameShreya)

	return &testApp{
		router:   router,
		registry: reg,
		limiter:  limiter,
		shivamID: shivam.ID,
		shreyaID: shreya.ID,
	}
}

func (a *testApp) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "192.0.2.10:5555"
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) createQuestion(t *testing.T, from, to, correct string) string {
	t.Helper()
	body := `{"questionText":"Which colour do I like most?","options":[{"text":"Blue","isCorrect":` +
		boolJSON(correct == "Blue") + `},{"text":"Green","isCorrect":` + boolJSON(correct == "Green") +
		`}],"createdByUserId":"` + from + `","intendedForUserId":"` + to + `"}`
	w := a.do(t, http.MethodPost, "/api/questions", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create question: status = %d, body = %s", w.Code, w.Body.String())
	}
	var q questionResponse
	if err := json.NewDecoder(w.Body).Decode(&q); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	return q.ID
}

func boolJSON(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func generousLimits() middleware.RateLimiterConfig {
	return middleware.NewRateLimiterConfig(1000, 1000)
}

// --- エンドツーエンドのフロー ---

// TestRouter_QuizFlow は質問作成から回答、スコア計算までの一連の流れを検証する。
func TestRouter_QuizFlow(t *testing.T) {
	app := newTestApp(t, generousLimits())

	// ユーザー一覧
	w := app.do(t, http.MethodGet, "/api/users", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/users status = %d", w.Code)
	}
	var users []userResponse
	json.NewDecoder(w.Body).Decode(&users)
	if len(users) != 2 || users[0].Username != "Shivam" || users[1].Username != "Shreya" {
		t.Fatalf("users = %+v, want Shivam and Shreya", users)
	}

	// Shivam → Shreya に3問、Shreya → Shivam に1問
	q1 := app.createQuestion(t, app.shivamID, app.shreyaID, "Green")
	q2 := app.createQuestion(t, app.shivamID, app.shreyaID, "Blue")
	q3 := app.createQuestion(t, app.shivamID, app.shreyaID, "Green")
	q4 := app.createQuestion(t, app.shreyaID, app.shivamID, "Blue")

	w = app.do(t, http.MethodGet, "/api/questions/for/"+app.shreyaID, "")
	var pending []questionResponse
	json.NewDecoder(w.Body).Decode(&pending)
	if len(pending) != 3 || pending[0].ID != q3 || pending[2].ID != q1 {
		t.Fatalf("pending for Shreya = %d items, want 3 newest first", len(pending))
	}
	if pending[0].CreatedBy.Username != "Shivam" {
		t.Errorf("createdBy.username = %q, want Shivam", pending[0].CreatedBy.Username)
	}

	answer := func(qid, uid, text string) *httptest.ResponseRecorder {
		return app.do(t, http.MethodPost, "/api/questions/"+qid+"/answer",
			`{"userId":"`+uid+`","submittedAnswerText":"`+text+`"}`)
	}

	// 2問正解、1問不正解
	for _, a := range []struct {
		qid, text string
		correct   bool
	}{
		{q1, "Green", true},
		{q2, "Blue", true},
		{q3, "green", false},
	} {
		w := answer(a.qid, app.shreyaID, a.text)
		if w.Code != http.StatusOK {
			t.Fatalf("answer %s: status = %d, body = %s", a.qid, w.Code, w.Body.String())
		}
		var res answerResponse
		json.NewDecoder(w.Body).Decode(&res)
		if res.IsCorrect != a.correct {
			t.Errorf("answer %s: isCorrect = %v, want %v", a.qid, res.IsCorrect, a.correct)
		}
		if res.Message != answerSubmittedMessage {
			t.Errorf("message = %q", res.Message)
		}
	}

	// 再回答は409
	if w := answer(q1, app.shreyaID, "Blue"); w.Code != http.StatusConflict {
		t.Errorf("re-answer status = %d, want 409", w.Code)
	}
	// 宛先以外の回答は403
	if w := answer(q4, app.shreyaID, "Blue"); w.Code != http.StatusForbidden {
		t.Errorf("wrong recipient status = %d, want 403", w.Code)
	}

	// 回答済みは一覧から消える
	w = app.do(t, http.MethodGet, "/api/questions/for/"+app.shreyaID, "")
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("pending after answers = %s, want []", w.Body.String())
	}

	// Shreyaのスコアは Shivam が出題した3問のみから計算される
	w = app.do(t, http.MethodGet, "/api/questions/score/"+app.shreyaID, "")
	var score scoreResponse
	json.NewDecoder(w.Body).Decode(&score)
	want := scoreResponse{ScorePercentage: 67, TotalAnswered: 3, TotalCorrect: 2, AboutWhom: "Shivam"}
	if score != want {
		t.Errorf("score(Shreya) = %+v, want %+v", score, want)
	}

	// Shivamはまだ回答していない
	w = app.do(t, http.MethodGet, "/api/questions/score/"+app.shivamID, "")
	json.NewDecoder(w.Body).Decode(&score)
	want = scoreResponse{ScorePercentage: 0, TotalAnswered: 0, TotalCorrect: 0, AboutWhom: "Shreya"}
	if score != want {
		t.Errorf("score(Shivam) = %+v, want %+v", score, want)
	}
}

func TestRouter_CreateQuestion_Validation(t *testing.T) {
	app := newTestApp(t, generousLimits())

	tests := []struct {
		name       string
		body       func() string
		wantStatus int
	}{
		{"self targeted", func() string {
			return `{"questionText":"Am I asking myself?","options":[{"text":"a","isCorrect":true},{"text":"b","isCorrect":false}],"createdByUserId":"` +
				app.shivamID + `","intendedForUserId":"` + app.shivamID + `"}`
		}, http.StatusBadRequest},
		{"two correct", func() string {
			return `{"questionText":"Which is right?","options":[{"text":"a","isCorrect":true},{"text":"b","isCorrect":true}],"createdByUserId":"` +
				app.shivamID + `","intendedForUserId":"` + app.shreyaID + `"}`
		}, http.StatusBadRequest},
		{"unknown recipient", func() string {
			return `{"questionText":"Who are you?","options":[{"text":"a","isCorrect":true},{"text":"b","isCorrect":false}],"createdByUserId":"` +
				app.shivamID + `","intendedForUserId":"33333333-3333-4333-8333-333333333333"}`
		}, http.StatusNotFound},
		{"missing fields", func() string { return `{}` }, http.StatusBadRequest},
		{"markup in question text", func() string {
			return `{"questionText":"Use <br> tags?","options":[{"text":"a","isCorrect":true},{"text":"b","isCorrect":false}],"createdByUserId":"` +
				app.shivamID + `","intendedForUserId":"` + app.shreyaID + `"}`
		}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.do(t, http.MethodPost, "/api/questions", tt.body())
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d, body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

// TestRouter_ComparisonOptions_RoundTrip は"<"を含む選択肢がそのまま返され、
// 不正解の選択肢が正解と判定されないことを検証する。
func TestRouter_ComparisonOptions_RoundTrip(t *testing.T) {
	app := newTestApp(t, generousLimits())

	body := `{"questionText":"Which is bigger, x<y or x<z?","options":[{"text":"x<y","isCorrect":true},{"text":"x<z","isCorrect":false}],"createdByUserId":"` +
		app.shivamID + `","intendedForUserId":"` + app.shreyaID + `"}`
	w := app.do(t, http.MethodPost, "/api/questions", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var q struct {
		ID           string `json:"id"`
		QuestionText string `json:"questionText"`
		Options      []struct {
			Text string `json:"text"`
		} `json:"options"`
	}
	if err := json.NewDecoder(w.Body).Decode(&q); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if q.QuestionText != "Which is bigger, x<y or x<z?" {
		t.Errorf("questionText = %q", q.QuestionText)
	}
	if len(q.Options) != 2 || q.Options[0].Text != "x<y" || q.Options[1].Text != "x<z" {
		t.Fatalf("options = %+v, want x<y and x<z", q.Options)
	}

	w = app.do(t, http.MethodPost, "/api/questions/"+q.ID+"/answer",
		`{"userId":"`+app.shreyaID+`","submittedAnswerText":"x<z"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("answer status = %d, body = %s", w.Code, w.Body.String())
	}
	var res answerResponse
	json.NewDecoder(w.Body).Decode(&res)
	if res.IsCorrect {
		t.Error("x<z was scored as correct")
	}
	if res.CorrectAnswerText != "x<y" {
		t.Errorf("correctAnswerText = %q, want %q", res.CorrectAnswerText, "x<y")
	}
}

// --- ルーティングとミドルウェア ---

func TestRouter_UnknownRoute_Returns404JSON(t *testing.T) {
	app := newTestApp(t, generousLimits())

	tests := []struct {
		method, path, wantMessage string
	}{
		{http.MethodGet, "/api/nope", "Endpoint not found: GET /api/nope"},
		{http.MethodDelete, "/api/users", "Endpoint not found: DELETE /api/users"},
	}

	for _, tt := range tests {
		w := app.do(t, tt.method, tt.path, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("%s %s: status = %d, want 404", tt.method, tt.path, w.Code)
			continue
		}
		body := parseAPIErrorResponse(t, w)
		if body["message"] != tt.wantMessage {
			t.Errorf("message = %q, want %q", body["message"], tt.wantMessage)
		}
	}
}

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
	}{
		{"database reachable", nil, http.StatusOK},
		{"database down", errors.New("connection refused"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(&RouterDeps{
				HealthChecker:   &mockHealthChecker{err: tt.pingErr},
				Logger:          slogDiscard(),
				UserService:     &mockUserService{},
				QuestionService: &mockQuestionService{},
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_Welcome(t *testing.T) {
	app := newTestApp(t, generousLimits())

	w := app.do(t, http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "active") {
		t.Errorf("body = %q", w.Body.String())
	}
}

// TestRouter_MetricsEndpoint はAPI呼び出しがメトリクスとして公開されることを検証する。
func TestRouter_MetricsEndpoint(t *testing.T) {
	app := newTestApp(t, generousLimits())

	app.createQuestion(t, app.shivamID, app.shreyaID, "Green")
	app.do(t, http.MethodGet, "/api/nope", "")

	w := app.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"pairquiz_questions_created_total 1",
		`pairquiz_http_status_total{status_code="201"} 1`,
		`pairquiz_http_status_total{status_code="404"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics should contain %q", want)
		}
	}
}

func TestRouter_SecurityAndCORSHeaders(t *testing.T) {
	app := newTestApp(t, generousLimits())

	req := httptest.NewRequest(http.MethodOptions, "/api/questions", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

// TestRouter_QuestionCreateRateLimit は質問作成のみが専用の制限を受けることを検証する。
func TestRouter_QuestionCreateRateLimit(t *testing.T) {
	app := newTestApp(t, middleware.NewRateLimiterConfig(1000, 1))

	app.createQuestion(t, app.shivamID, app.shreyaID, "Green")

	w := app.do(t, http.MethodPost, "/api/questions", `{}`)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second create status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header should be set")
	}

	w = app.do(t, http.MethodGet, "/api/questions/for/"+app.shreyaID, "")
	if w.Code != http.StatusOK {
		t.Errorf("list status = %d, want 200", w.Code)
	}
}

// TestRouter_HealthIsNotRateLimited は/healthがAPI全般のレート制限を受けないことを検証する。
func TestRouter_HealthIsNotRateLimited(t *testing.T) {
	app := newTestApp(t, middleware.NewRateLimiterConfig(1, 1))

	for i := 0; i < 3; i++ {
		if w := app.do(t, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
			t.Errorf("health %d: status = %d, want 200", i, w.Code)
		}
	}

	app.do(t, http.MethodGet, "/api/users", "")
	if w := app.do(t, http.MethodGet, "/api/users", ""); w.Code != http.StatusTooManyRequests {
		t.Errorf("second /api/users status = %d, want 429", w.Code)
	}
}
