package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/bazchat-go/internal/domain"
	"github.com/boddenberg/bazchat-go/internal/handler"
	"github.com/boddenberg/bazchat-go/internal/infra/cache"
	"github.com/boddenberg/bazchat-go/internal/infra/observability"
	"github.com/boddenberg/bazchat-go/internal/infra/resilience"
	"github.com/boddenberg/bazchat-go/internal/infra/sqlstore"
	"github.com/boddenberg/bazchat-go/internal/service"

	"go.uber.org/zap"
)

type stubUploader struct{}

func (stubUploader) Name() string { return "stub" }

func (stubUploader) Upload(_ context.Context, filename string, r io.Reader) (string, error) {
	io.Copy(io.Discard, r)
	return "https://img.example/" + filename, nil
}

func newTestAPI(t *testing.T) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	dsn := "file:" + filepath.Join(t.TempDir(), "api.db") + "?_pragma=busy_timeout(5000)"
	db, err := sqlstore.Open(context.Background(), sqlstore.Options{
		Driver: sqlstore.DriverSQLite,
		DSN:    dsn,
		Retry:  resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond},
	}, metrics, logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	identity := service.NewIdentityService(db, db, cache.New[*domain.BusinessProfile](time.Minute),
		"api-secret", time.Hour, metrics, logger)
	chat := service.NewChatService(db, identity, nil, metrics, logger)
	dashboard := service.NewDashboardService(identity, chat)
	uploads := service.NewUploadService(stubUploader{}, 1<<20, metrics, logger)

	return handler.NewRouter(identity, chat, dashboard, uploads, db, metrics, logger)
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode %T: %v", out, err)
	}
	return out
}

func signup(t *testing.T, h http.Handler, phone, name string) domain.AuthResponse {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/v1/auth/register", "", domain.RegisterRequest{
		Phone: phone, Password: "secret123", FullName: name,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	return decode[domain.AuthResponse](t, rec)
}

func TestAPI_RegisterAndLogin(t *testing.T) {
	h := newTestAPI(t)
	auth := signup(t, h, "5550001", "Acme Store")

	if auth.Profile.Slug != "acme-store" || auth.AccessToken == "" {
		t.Fatalf("unexpected auth response %+v", auth)
	}

	rec := do(t, h, http.MethodPost, "/v1/auth/register", "", domain.RegisterRequest{Phone: "5550001", Password: "secret123"})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate phone: expected 409, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/v1/auth/login", "", domain.LoginRequest{Phone: "5550001", Password: "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password: expected 401, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/v1/auth/login", "", domain.LoginRequest{Phone: "5550001", Password: "secret123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", rec.Code)
	}
	login := decode[domain.AuthResponse](t, rec)
	if login.Profile.ID != auth.Profile.ID {
		t.Error("login must return the registered profile")
	}

	rec = do(t, h, http.MethodPost, "/v1/auth/login", "", "not an object")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", rec.Code)
	}
}

func TestAPI_OwnerRoutesRequireToken(t *testing.T) {
	h := newTestAPI(t)

	for _, path := range []string{"/v1/me/profile", "/v1/me/sessions", "/v1/me/dashboard"} {
		if rec := do(t, h, http.MethodGet, path, "", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: expected 401, got %d", path, rec.Code)
		}
		if rec := do(t, h, http.MethodGet, path, "garbage", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s with bad token: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestAPI_ProfileEditAndPublicLookup(t *testing.T) {
	h := newTestAPI(t)
	auth := signup(t, h, "5550001", "Acme")

	in := *auth.Profile
	in.Slug = "acme-shop"
	in.Products = []domain.Product{{Name: "A", Price: 10}}
	rec := do(t, h, http.MethodPut, "/v1/me/profile", auth.AccessToken, in)
	if rec.Code != http.StatusOK {
		t.Fatalf("save: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/v1/public/profiles/acme-shop", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("public by slug: expected 200, got %d", rec.Code)
	}
	pub := decode[domain.PublicProfile](t, rec)
	if len(pub.Products) != 1 || pub.Products[0].Name != "A" || pub.Products[0].Price != 10 {
		t.Errorf("unexpected public profile %+v", pub)
	}

	if rec := do(t, h, http.MethodGet, "/v1/public/profiles/"+auth.Profile.ID, "", nil); rec.Code != http.StatusOK {
		t.Errorf("public by id: expected 200, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/v1/public/profiles/acme", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("old slug: expected 404, got %d", rec.Code)
	}

	other := signup(t, h, "5550002", "Other")
	taken := *other.Profile
	taken.Slug = "acme-shop"
	if rec := do(t, h, http.MethodPut, "/v1/me/profile", other.AccessToken, taken); rec.Code != http.StatusConflict {
		t.Errorf("taken slug: expected 409, got %d", rec.Code)
	}
}

func TestAPI_ChatRoundTrip(t *testing.T) {
	h := newTestAPI(t)
	auth := signup(t, h, "5550001", "Acme")
	base := "/v1/public/profiles/acme/sessions/sess_1/messages"

	rec := do(t, h, http.MethodGet, base, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("fetch: expected 200, got %d", rec.Code)
	}
	msgs := decode[[]domain.Message](t, rec)
	if len(msgs) != 1 || msgs[0].ID != domain.GreetingID {
		t.Fatalf("expected greeting, got %+v", msgs)
	}

	rec = do(t, h, http.MethodPost, base, "", domain.SendMessageRequest{Text: "hi there", CustomerName: "Sam"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("send: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/v1/me/dashboard", auth.AccessToken, nil)
	dash := decode[domain.Dashboard](t, rec)
	if dash.UnreadTotal != 1 || len(dash.Sessions) != 1 || dash.Sessions[0].CustomerName != "Sam" {
		t.Fatalf("unexpected dashboard %+v", dash)
	}

	rec = do(t, h, http.MethodGet, "/v1/me/sessions/sess_1/messages", auth.AccessToken, nil)
	owner := decode[[]domain.Message](t, rec)
	if len(owner) != 1 || !owner[0].IsRead {
		t.Fatalf("owner view should mark read, got %+v", owner)
	}

	// Stored timestamps have millisecond resolution.
	time.Sleep(5 * time.Millisecond)
	rec = do(t, h, http.MethodPost, "/v1/me/sessions/sess_1/reply", auth.AccessToken, domain.ReplyRequest{Text: "hello!"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("reply: expected 201, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, base, "", nil)
	msgs = decode[[]domain.Message](t, rec)
	if len(msgs) != 2 || msgs[0].Text != "hi there" || msgs[1].Text != "hello!" {
		t.Fatalf("unexpected customer view %+v", msgs)
	}

	rec = do(t, h, http.MethodPost, "/v1/me/sessions/sess_1/read", auth.AccessToken, nil)
	if got := decode[domain.MarkReadResponse](t, rec); got.Marked != 0 {
		t.Errorf("expected nothing left to mark, got %d", got.Marked)
	}
}

func TestAPI_ChatErrors(t *testing.T) {
	h := newTestAPI(t)
	signup(t, h, "5550001", "Acme")
	other := signup(t, h, "5550002", "Other")

	if rec := do(t, h, http.MethodGet, "/v1/public/profiles/ghost/sessions/s1/messages", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown profile: expected 404, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/v1/public/profiles/acme/sessions/s1/messages", "", domain.SendMessageRequest{Text: " "}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty text: expected 400, got %d", rec.Code)
	}

	do(t, h, http.MethodPost, "/v1/public/profiles/acme/sessions/s1/messages", "", domain.SendMessageRequest{Text: "hi"})

	if rec := do(t, h, http.MethodPost, "/v1/public/profiles/other/sessions/s1/messages", "", domain.SendMessageRequest{Text: "hi"}); rec.Code != http.StatusConflict {
		t.Errorf("foreign session: expected 409, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/v1/me/sessions/s1/messages", other.AccessToken, nil); rec.Code != http.StatusNotFound {
		t.Errorf("other owner: expected 404, got %d", rec.Code)
	}
}

func TestAPI_UploadImage(t *testing.T) {
	h := newTestAPI(t)
	auth := signup(t, h, "5550001", "Acme")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="image"; filename="logo.png"`},
		"Content-Type":        {"image/png"},
	})
	part.Write([]byte("\x89PNG fake"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/uploads/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+auth.AccessToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[domain.UploadResponse](t, rec); got.URL != "https://img.example/logo.png" {
		t.Errorf("unexpected url %s", got.URL)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/uploads/image", bytes.NewReader(nil))
	req.Header.Set("Authorization", "Bearer "+auth.AccessToken)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing file: expected 400, got %d", rec.Code)
	}
}
