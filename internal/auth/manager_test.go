package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/memstore"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/gdlux-auth/internal/config"
	"github.com/yourusername/gdlux-auth/internal/users"
)

type stubUserStore struct {
	byEmail   map[string]*users.User
	nextID    int64
	createErr error
	findErr   error
	verified  []string
}

func newStubUserStore() *stubUserStore {
	return &stubUserStore{
		byEmail: make(map[string]*users.User),
		nextID:  1,
	}
}

func (s *stubUserStore) Create(ctx context.Context, user *users.User) (int64, error) {
	if s.createErr != nil {
		return 0, s.createErr
	}
	if _, ok := s.byEmail[user.Email]; ok {
		return 0, users.ErrEmailTaken
	}
	u := *user
	u.ID = s.nextID
	s.nextID++
	s.byEmail[u.Email] = &u
	return u.ID, nil
}

func (s *stubUserStore) FindByEmail(ctx context.Context, email string) (*users.User, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	u, ok := s.byEmail[email]
	if !ok {
		return nil, users.ErrNotFound
	}
	return u, nil
}

func (s *stubUserStore) MarkEmailVerified(ctx context.Context, email string) error {
	s.verified = append(s.verified, email)
	return nil
}

type stubOTPStore struct {
	codes    map[string]string
	issueErr error
}

func newStubOTPStore() *stubOTPStore {
	return &stubOTPStore{codes: make(map[string]string)}
}

func (s *stubOTPStore) Issue(ctx context.Context, email string) (string, error) {
	if s.issueErr != nil {
		return "", s.issueErr
	}
	s.codes[email] = "123456"
	return "123456", nil
}

func (s *stubOTPStore) Consume(ctx context.Context, email, code string) (bool, error) {
	stored, ok := s.codes[email]
	if !ok || stored != code {
		return false, nil
	}
	delete(s.codes, email)
	return true, nil
}

type stubMailer struct {
	scheduled []string
}

func (s *stubMailer) Schedule(ctx context.Context, to, fullname, code string) error {
	s.scheduled = append(s.scheduled, to)
	return nil
}

func newTestManager() (*Manager, *stubUserStore, *stubOTPStore, *stubMailer) {
	store := newStubUserStore()
	otps := newStubOTPStore()
	mailer := &stubMailer{}
	cfg := &config.Config{BcryptCost: bcrypt.MinCost}
	return NewManager(cfg, store, otps, mailer, nil), store, otps, mailer
}

func newTestRouter(m *Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(sessions.Sessions(SessionCookieName, memstore.NewStore([]byte("test-secret"))))
	router.POST("/signup", m.Signup)
	router.POST("/verify-otp", m.VerifyOTP)
	router.POST("/signin", m.Signin)
	router.POST("/signout", m.Signout)
	router.GET("/auth/me", m.Me)
	return router
}

func postJSON(router *gin.Engine, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func getJSON(router *gin.Engine, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSignupSuccess(t *testing.T) {
	m, store, _, mailer := newTestManager()
	router := newTestRouter(m)

	rec := postJSON(router, "/signup", gin.H{
		"fullname": "Ada",
		"email":    "ada@x.com",
		"password": "s3cret",
	}, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Message string `json:"message"`
		UserID  int64  `json:"user_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.UserID != 1 {
		t.Fatalf("unexpected user_id: %d", resp.UserID)
	}

	created := store.byEmail["ada@x.com"]
	if created == nil {
		t.Fatal("expected user to be created")
	}
	if created.Role != users.RoleUser {
		t.Fatalf("unexpected role: %s", created.Role)
	}
	if created.PasswordHash == "s3cret" {
		t.Fatal("password stored in plaintext")
	}
	if bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("s3cret")) != nil {
		t.Fatal("stored hash does not match password")
	}

	if len(mailer.scheduled) != 1 || mailer.scheduled[0] != "ada@x.com" {
		t.Fatalf("unexpected mail schedule: %#v", mailer.scheduled)
	}

	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("signup must not create a session")
	}
}

func TestSignupMissingFields(t *testing.T) {
	m, _, _, _ := newTestManager()
	router := newTestRouter(m)

	rec := postJSON(router, "/signup", gin.H{"email": "ada@x.com"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("INVALID_INPUT")) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	m, _, _, _ := newTestManager()
	router := newTestRouter(m)

	body := gin.H{"fullname": "Ada", "email": "ada@x.com", "password": "s3cret"}
	if rec := postJSON(router, "/signup", body, nil); rec.Code != http.StatusOK {
		t.Fatalf("first signup failed: %d", rec.Code)
	}

	rec := postJSON(router, "/signup", body, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestSignupStoreError(t *testing.T) {
	m, store, _, _ := newTestManager()
	store.findErr = errors.New("connection refused")
	router := newTestRouter(m)

	rec := postJSON(router, "/signup", gin.H{
		"fullname": "Ada",
		"email":    "ada@x.com",
		"password": "s3cret",
	}, nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("connection refused")) {
		t.Fatalf("internal detail leaked: %s", rec.Body.String())
	}
}

func TestVerifyOTP(t *testing.T) {
	m, store, otps, _ := newTestManager()
	router := newTestRouter(m)

	postJSON(router, "/signup", gin.H{
		"fullname": "Ada",
		"email":    "ada@x.com",
		"password": "s3cret",
	}, nil)

	// 不一致はエントリを残したまま400
	rec := postJSON(router, "/verify-otp", gin.H{"email": "ada@x.com", "otp": "000000"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if _, ok := otps.codes["ada@x.com"]; !ok {
		t.Fatal("pending entry must survive a mismatch")
	}

	// 一致で消費して検証印を押す
	rec = postJSON(router, "/verify-otp", gin.H{"email": "ada@x.com", "otp": "123456"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if _, ok := otps.codes["ada@x.com"]; ok {
		t.Fatal("pending entry must be consumed")
	}
	if len(store.verified) != 1 || store.verified[0] != "ada@x.com" {
		t.Fatalf("unexpected verified list: %#v", store.verified)
	}

	// 再送は未発行と同じレスポンス
	rec = postJSON(router, "/verify-otp", gin.H{"email": "ada@x.com", "otp": "123456"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestSigninSuccessAndMe(t *testing.T) {
	m, _, _, _ := newTestManager()
	router := newTestRouter(m)

	postJSON(router, "/signup", gin.H{
		"fullname": "Ada",
		"email":    "ada@x.com",
		"password": "s3cret",
	}, nil)

	rec := postJSON(router, "/signin", gin.H{"email": "ada@x.com", "password": "s3cret"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Message  string `json:"message"`
		FullName string `json:"fullname"`
		Role     string `json:"role"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.FullName != "Ada" || resp.Role != "user" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie")
	}

	me := getJSON(router, "/auth/me", cookies)
	if me.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", me.Code)
	}
	var meResp struct {
		Authenticated bool           `json:"authenticated"`
		User          map[string]any `json:"user"`
	}
	if err := json.Unmarshal(me.Body.Bytes(), &meResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !meResp.Authenticated {
		t.Fatalf("expected authenticated=true: %s", me.Body.String())
	}
	if meResp.User["email"] != "ada@x.com" || meResp.User["role"] != "user" {
		t.Fatalf("unexpected user snapshot: %#v", meResp.User)
	}
	if bytes.Contains(me.Body.Bytes(), []byte("password")) {
		t.Fatalf("password material leaked: %s", me.Body.String())
	}
}

func TestSigninUniformUnauthorized(t *testing.T) {
	m, _, _, _ := newTestManager()
	router := newTestRouter(m)

	postJSON(router, "/signup", gin.H{
		"fullname": "Ada",
		"email":    "ada@x.com",
		"password": "s3cret",
	}, nil)

	wrongPassword := postJSON(router, "/signin", gin.H{"email": "ada@x.com", "password": "wrong"}, nil)
	unknownEmail := postJSON(router, "/signin", gin.H{"email": "nobody@x.com", "password": "s3cret"}, nil)

	if wrongPassword.Code != http.StatusUnauthorized || unknownEmail.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected statuses: %d %d", wrongPassword.Code, unknownEmail.Code)
	}
	if !bytes.Equal(wrongPassword.Body.Bytes(), unknownEmail.Body.Bytes()) {
		t.Fatalf("payloads differ: %q vs %q", wrongPassword.Body.String(), unknownEmail.Body.String())
	}
}

func TestSigninMissingFields(t *testing.T) {
	m, _, _, _ := newTestManager()
	router := newTestRouter(m)

	rec := postJSON(router, "/signin", gin.H{"email": "ada@x.com"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestSignoutIdempotent(t *testing.T) {
	m, _, _, _ := newTestManager()
	router := newTestRouter(m)

	rec := postJSON(router, "/signout", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestSignoutDestroysSession(t *testing.T) {
	m, _, _, _ := newTestManager()
	router := newTestRouter(m)

	postJSON(router, "/signup", gin.H{
		"fullname": "Ada",
		"email":    "ada@x.com",
		"password": "s3cret",
	}, nil)
	signin := postJSON(router, "/signin", gin.H{"email": "ada@x.com", "password": "s3cret"}, nil)
	cookies := signin.Result().Cookies()

	if rec := postJSON(router, "/signout", nil, cookies); rec.Code != http.StatusOK {
		t.Fatalf("signout failed: %d", rec.Code)
	}

	me := getJSON(router, "/auth/me", cookies)
	if !bytes.Contains(me.Body.Bytes(), []byte(`"authenticated":false`)) {
		t.Fatalf("expected authenticated=false after signout: %s", me.Body.String())
	}
}

func TestMeUnauthenticated(t *testing.T) {
	m, _, _, _ := newTestManager()
	router := newTestRouter(m)

	rec := getJSON(router, "/auth/me", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"authenticated":false`)) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
