package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"pulpito/api/internal/store"
)

func newTestHandler(fs *fakeStore) http.Handler {
	return NewHTTPServer(newTestService(fs), "*").Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeResponse(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func loginToken(t *testing.T, handler http.Handler) string {
	t.Helper()
	recorder := doJSON(t, handler, http.MethodPost, "/api/session/login", "", map[string]any{"name": "Lucas"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeResponse(t, recorder)
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatalf("expected token in login response, got %v", payload)
	}
	return token
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestHandler(&fakeStore{})

	recorder := doJSON(t, handler, http.MethodGet, "/api/health", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("health status = %d", recorder.Code)
	}
	payload := decodeResponse(t, recorder)
	if payload["ok"] != true {
		t.Fatalf("expected ok true, got %v", payload)
	}
}

func TestReadyEndpoint(t *testing.T) {
	handler := newTestHandler(&fakeStore{})

	recorder := doJSON(t, handler, http.MethodGet, "/api/ready", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("ready status = %d", recorder.Code)
	}
	payload := decodeResponse(t, recorder)
	if payload["ready"] != true {
		t.Fatalf("expected ready true, got %v", payload)
	}
}

func TestSermonRoutesRequireAuth(t *testing.T) {
	handler := newTestHandler(&fakeStore{})

	recorder := doJSON(t, handler, http.MethodGet, "/api/sermons", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer token, got %d", recorder.Code)
	}
	payload := decodeResponse(t, recorder)
	if payload["code"] != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED, got %v", payload["code"])
	}
}

func TestLoginAndSessionRoundTrip(t *testing.T) {
	handler := newTestHandler(&fakeStore{})
	token := loginToken(t, handler)

	recorder := doJSON(t, handler, http.MethodGet, "/api/session", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("session status = %d, body %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeResponse(t, recorder)
	user, ok := payload["user"].(map[string]any)
	if !ok || user["name"] != "Lucas" {
		t.Fatalf("expected session user Lucas, got %v", payload)
	}
}

func TestSessionRejectsGarbageToken(t *testing.T) {
	handler := newTestHandler(&fakeStore{})

	recorder := doJSON(t, handler, http.MethodGet, "/api/session", "not-a-token", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", recorder.Code)
	}
}

func TestSyncEndpointRoundTrip(t *testing.T) {
	var replaced []store.Block
	fs := &fakeStore{
		replaceBlocksFn: func(_ context.Context, _ string, blocks []store.Block, _ *int64) (int64, error) {
			replaced = blocks
			return 7, nil
		},
	}
	handler := newTestHandler(fs)
	token := loginToken(t, handler)

	recorder := doJSON(t, handler, http.MethodPost, "/api/sermons/ser_1/sync", token, map[string]any{
		"blocks": []map[string]any{
			{"id": "blk_base", "type": "TEXTO_BASE", "content": "Porque pela graça", "order": 4},
			{"id": "blk_note", "type": "APLICACAO", "content": "Aplicação", "order": 1, "metadata": map[string]any{"parentVerseId": "blk_base"}},
		},
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("sync status = %d, body %s", recorder.Code, recorder.Body.String())
	}

	payload := decodeResponse(t, recorder)
	if payload["revision"] != float64(7) {
		t.Fatalf("expected revision 7, got %v", payload["revision"])
	}
	if len(replaced) != 2 || replaced[0].ID != "blk_base" || replaced[0].Order != 0 || replaced[1].Order != 1 {
		t.Fatalf("expected persisted blocks with normalized order, got %+v", replaced)
	}

	groups, ok := payload["groups"].([]any)
	if !ok || len(groups) != 1 {
		t.Fatalf("expected one anchor group, got %v", payload["groups"])
	}
}

func TestSyncEndpointStaleRevisionConflicts(t *testing.T) {
	fs := &fakeStore{
		replaceBlocksFn: func(context.Context, string, []store.Block, *int64) (int64, error) {
			return 0, store.ErrStaleRevision
		},
	}
	handler := newTestHandler(fs)
	token := loginToken(t, handler)

	recorder := doJSON(t, handler, http.MethodPost, "/api/sermons/ser_1/sync", token, map[string]any{
		"baseRevision": 2,
		"blocks": []map[string]any{
			{"id": "blk_base", "type": "TEXTO_BASE", "content": "v8"},
		},
	})
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409 for stale baseRevision, got %d", recorder.Code)
	}
	payload := decodeResponse(t, recorder)
	if payload["code"] != "SYNC_CONFLICT" {
		t.Fatalf("expected SYNC_CONFLICT, got %v", payload["code"])
	}
}

func TestSyncEndpointDanglingReferenceDetails(t *testing.T) {
	handler := newTestHandler(&fakeStore{})
	token := loginToken(t, handler)

	recorder := doJSON(t, handler, http.MethodPost, "/api/sermons/ser_1/sync", token, map[string]any{
		"blocks": []map[string]any{
			{"id": "blk_note", "type": "EXEGESE", "content": "nota", "metadata": map[string]any{"parentVerseId": "blk_missing"}},
		},
	})
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for dangling parentVerseId, got %d", recorder.Code)
	}
	payload := decodeResponse(t, recorder)
	if payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", payload["code"])
	}
	if payload["details"] == nil {
		t.Fatalf("expected dangling reference details, got %v", payload)
	}
}

func TestCommunityEventForbiddenForMembers(t *testing.T) {
	fs := &fakeStore{
		getMemberRoleFn: func(context.Context, string, string) (string, error) {
			return store.RoleMember, nil
		},
	}
	handler := newTestHandler(fs)
	token := loginToken(t, handler)

	recorder := doJSON(t, handler, http.MethodPost, "/api/community/com_1/event", token, map[string]any{
		"title":    "Vigília",
		"startsAt": "2026-09-12T19:00:00Z",
	})
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for member creating event, got %d", recorder.Code)
	}
}

func TestCommunityPostForbiddenForMembers(t *testing.T) {
	fs := &fakeStore{
		getMemberRoleFn: func(context.Context, string, string) (string, error) {
			return store.RoleMember, nil
		},
	}
	handler := newTestHandler(fs)
	token := loginToken(t, handler)

	recorder := doJSON(t, handler, http.MethodPost, "/api/community/com_1/post", token, map[string]any{
		"content": "Aviso da liderança",
	})
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for member creating post, got %d", recorder.Code)
	}
}

func TestFeedForbiddenForNonMembers(t *testing.T) {
	fs := &fakeStore{
		getMemberRoleFn: func(context.Context, string, string) (string, error) {
			return "", nil
		},
	}
	handler := newTestHandler(fs)
	token := loginToken(t, handler)

	recorder := doJSON(t, handler, http.MethodGet, "/api/community/com_1/feed", token, nil)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-member feed access, got %d", recorder.Code)
	}
}

func TestShareLinkPasswordFlow(t *testing.T) {
	var saved store.ShareLink
	fs := &fakeStore{
		insertShareLinkFn: func(_ context.Context, link store.ShareLink) error {
			saved = link
			return nil
		},
		getShareLinkFn: func(_ context.Context, token string) (store.ShareLink, error) {
			if saved.Token == token {
				return saved, nil
			}
			return store.ShareLink{}, sql.ErrNoRows
		},
		listBlocksFn: func(context.Context, string) ([]store.Block, error) {
			return []store.Block{
				{ID: "blk_base", Type: "TEXTO_BASE", Content: "Porque pela graça", Order: 0},
			}, nil
		},
	}
	handler := newTestHandler(fs)
	token := loginToken(t, handler)

	created := doJSON(t, handler, http.MethodPost, "/api/sermons/ser_1/share", token, map[string]any{
		"password": "graca123",
	})
	if created.Code != http.StatusCreated {
		t.Fatalf("share create status = %d, body %s", created.Code, created.Body.String())
	}
	if saved.PasswordHash == nil {
		t.Fatalf("expected password hash stored on link")
	}

	noPassword := doJSON(t, handler, http.MethodGet, "/share/"+saved.Token, "", nil)
	if noPassword.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without password, got %d", noPassword.Code)
	}
	if decodeResponse(t, noPassword)["code"] != "SHARE_PASSWORD_REQUIRED" {
		t.Fatalf("expected SHARE_PASSWORD_REQUIRED, got %s", noPassword.Body.String())
	}

	wrongPassword := doJSON(t, handler, http.MethodPost, "/share/"+saved.Token, "", map[string]any{"password": "errada"})
	if wrongPassword.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", wrongPassword.Code)
	}

	unlocked := doJSON(t, handler, http.MethodPost, "/share/"+saved.Token, "", map[string]any{"password": "graca123"})
	if unlocked.Code != http.StatusOK {
		t.Fatalf("expected 200 with correct password, got %d, body %s", unlocked.Code, unlocked.Body.String())
	}
	payload := decodeResponse(t, unlocked)
	if payload["groups"] == nil {
		t.Fatalf("expected pulpit groups in share payload, got %v", payload)
	}
}

func TestShareLinkUnknownTokenNotFound(t *testing.T) {
	handler := newTestHandler(&fakeStore{})

	recorder := doJSON(t, handler, http.MethodGet, "/share/shr_nope", "", nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown share token, got %d", recorder.Code)
	}
}

func TestBibleUnavailableWhenNotConfigured(t *testing.T) {
	handler := newTestHandler(&fakeStore{})
	token := loginToken(t, handler)

	recorder := doJSON(t, handler, http.MethodGet, "/api/bible/chapter/nvi/gn/1", token, nil)
	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when bible service is absent, got %d", recorder.Code)
	}
	payload := decodeResponse(t, recorder)
	if payload["code"] != "BIBLE_UNAVAILABLE" {
		t.Fatalf("expected BIBLE_UNAVAILABLE, got %v", payload["code"])
	}
}

func TestOptionsPreflightShortCircuits(t *testing.T) {
	handler := newTestHandler(&fakeStore{})

	recorder := doJSON(t, handler, http.MethodOptions, "/api/sermons", "", nil)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected CORS origin header on preflight")
	}
	if recorder.Body.Len() != 0 {
		t.Fatalf("expected empty body on 204, got %q", recorder.Body.String())
	}
}
