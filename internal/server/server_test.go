package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lazypower/claimgate/internal/gatekeeper"
	"github.com/lazypower/claimgate/internal/llm"
	"github.com/lazypower/claimgate/internal/seed"
	"github.com/lazypower/claimgate/internal/similarity"
	"github.com/lazypower/claimgate/internal/store"
)

var testNow = time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

func testServer(t *testing.T, opts Options) *Server {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := seed.Demo().Apply(context.Background(), seed.StoreWriter{DB: db}, testNow); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if opts.Version == "" {
		opts.Version = "test-version"
	}
	if opts.MinConfidence == 0 {
		opts.MinConfidence = 0.3
	}
	opts.Now = func() time.Time { return testNow }
	p := gatekeeper.New(gatekeeper.Options{})
	p.SetScorer(similarity.NewTFIDF(0))
	return New(store.NewSource(db, nil), p, opts)
}

func do(t *testing.T, srv *Server, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t, Options{Backend: "sqlite"})

	w := do(t, srv, "GET", "/api/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := decode(t, w)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
	if body["db"] != true {
		t.Errorf("db = %v, want true", body["db"])
	}
	if body["backend"] != "sqlite" {
		t.Errorf("backend = %v, want sqlite", body["backend"])
	}
}

func TestListUsers(t *testing.T) {
	srv := testServer(t, Options{})

	w := do(t, srv, "GET", "/api/users", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["count"]; got != float64(6) {
		t.Errorf("count = %v, want 6", got)
	}
}

func TestRetrieveRecruiter(t *testing.T) {
	srv := testServer(t, Options{MinTrusted: 0.8})

	w := do(t, srv, "POST", "/api/retrieve", map[string]any{
		"viewer_id": "bob",
		"target_id": "goby",
		"query":     "python backend services",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var res struct {
		Access struct {
			Tags    []string `json:"allowed_tags"`
			IsOwner bool     `json:"is_owner"`
		} `json:"access"`
		Claims []struct {
			Claim struct {
				ID         string `json:"id"`
				Visibility string `json:"visibility"`
			} `json:"claim"`
			Label string `json:"label"`
		} `json:"claims"`
		Summary gatekeeper.Summary `json:"summary"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if res.Access.IsOwner {
		t.Error("recruiter reported as owner")
	}
	if len(res.Claims) == 0 {
		t.Fatal("no claims returned")
	}
	for _, c := range res.Claims {
		if c.Claim.Visibility == "owner" {
			t.Errorf("owner-only claim %s leaked to recruiter", c.Claim.ID)
		}
	}
	if res.Claims[0].Label != "VERIFIED" {
		t.Errorf("top label = %s, want VERIFIED", res.Claims[0].Label)
	}
	if res.Summary.Total != len(res.Claims) || res.Summary.Trusted == 0 {
		t.Errorf("summary = %+v", res.Summary)
	}
}

func TestRetrieveErrors(t *testing.T) {
	srv := testServer(t, Options{})

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"unknown viewer", map[string]any{"viewer_id": "ghost", "target_id": "goby", "query": "go"}, http.StatusUnprocessableEntity, "INVALID_RELATIONSHIP_INPUT"},
		{"empty target", map[string]any{"viewer_id": "bob", "target_id": "", "query": "go"}, http.StatusUnprocessableEntity, "INVALID_RELATIONSHIP_INPUT"},
		{"missing similarity", map[string]any{"viewer_id": "bob", "target_id": "goby", "similarity": map[string]float64{"goby_claim_001": 0.9}}, http.StatusUnprocessableEntity, "MISSING_SIMILARITY_SCORE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, "POST", "/api/retrieve", tt.body, nil)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.status, w.Body.String())
			}
			if got := decode(t, w)["code"]; got != tt.code {
				t.Errorf("code = %v, want %s", got, tt.code)
			}
		})
	}

	req := httptest.NewRequest("POST", "/api/retrieve", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid json status = %d, want 400", w.Code)
	}
}

func TestRetrieveLimitAndExplicitSimilarity(t *testing.T) {
	srv := testServer(t, Options{TopK: 10})

	sim := map[string]float64{}
	for _, c := range seed.Demo().Claims {
		sim[c.ID] = 0.5
	}
	w := do(t, srv, "POST", "/api/retrieve", map[string]any{
		"viewer_id":  "goby",
		"target_id":  "goby",
		"similarity": sim,
		"limit":      2,
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	claims := decode(t, w)["claims"].([]any)
	if len(claims) != 2 {
		t.Errorf("len(claims) = %d, want 2", len(claims))
	}
}

func TestRetrieveBatch(t *testing.T) {
	srv := testServer(t, Options{BatchWorkers: 2})

	w := do(t, srv, "POST", "/api/retrieve/batch", map[string]any{
		"queries": []map[string]any{
			{"viewer_id": "bob", "target_id": "goby", "query": "python"},
			{"viewer_id": "ghost", "target_id": "goby", "query": "python"},
			{"viewer_id": "goby", "target_id": "alice", "query": "react"},
		},
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	results := decode(t, w)["results"].([]any)
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if _, ok := results[0].(map[string]any)["claims"]; !ok {
		t.Errorf("results[0] has no claims: %v", results[0])
	}
	if code := results[1].(map[string]any)["code"]; code != "INVALID_RELATIONSHIP_INPUT" {
		t.Errorf("results[1] code = %v", code)
	}
	if _, ok := results[2].(map[string]any)["error"]; ok {
		t.Errorf("results[2] failed: %v", results[2])
	}

	w = do(t, srv, "POST", "/api/retrieve/batch", map[string]any{"queries": []any{}}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty batch status = %d, want 400", w.Code)
	}
}

func TestContextEndpoint(t *testing.T) {
	srv := testServer(t, Options{})

	w := do(t, srv, "POST", "/api/context", map[string]any{
		"viewer_id": "bob",
		"target_id": "alice",
		"query":     "react experience",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	ctx, _ := decode(t, w)["context"].(string)
	for _, want := range []string{"<context>", "Claims about alice", "Question: react experience", "[VERIFIED - Attested]", "Theo khai báo của người dùng...", "</context>"} {
		if !strings.Contains(ctx, want) {
			t.Errorf("context missing %q:\n%s", want, ctx)
		}
	}
}

func TestContextCustomCaveats(t *testing.T) {
	srv := testServer(t, Options{Caveats: llm.Caveats{SelfDeclared: "According to the user's own declaration..."}})

	w := do(t, srv, "POST", "/api/context", map[string]any{"viewer_id": "bob", "target_id": "alice", "query": "react"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	ctx, _ := decode(t, w)["context"].(string)
	if !strings.Contains(ctx, "According to the user's own declaration...") {
		t.Errorf("custom phrasing missing:\n%s", ctx)
	}
	if !strings.Contains(ctx, llm.DefaultCaveats.Verified) {
		t.Errorf("verified phrasing not defaulted:\n%s", ctx)
	}
}

func TestContextEmpty(t *testing.T) {
	srv := testServer(t, Options{})

	w := do(t, srv, "POST", "/api/context", map[string]any{
		"viewer_id": "carol",
		"target_id": "org_fpt",
		"query":     "anything",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["claims"] != float64(0) {
		t.Errorf("claims = %v, want 0", body["claims"])
	}
	if ctx, _ := body["context"].(string); !strings.Contains(ctx, "No claims are visible") {
		t.Errorf("context = %q", ctx)
	}
}

func signToken(t *testing.T, secret, sub string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestBearerAuth(t *testing.T) {
	const secret = "test-secret"
	srv := testServer(t, Options{JWTSecret: secret})
	body := map[string]any{"target_id": "goby", "query": "python"}

	w := do(t, srv, "POST", "/api/retrieve", body, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", w.Code)
	}

	w = do(t, srv, "POST", "/api/retrieve", body, map[string]string{"Authorization": "Bearer " + signToken(t, "wrong", "bob")})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad signature status = %d, want 401", w.Code)
	}

	auth := map[string]string{"Authorization": "Bearer " + signToken(t, secret, "bob")}
	w = do(t, srv, "POST", "/api/retrieve", body, auth)
	if w.Code != http.StatusOK {
		t.Fatalf("valid token status = %d, body %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["viewer_id"]; got != "bob" {
		t.Errorf("viewer_id = %v, want bob from token subject", got)
	}

	spoof := map[string]any{"viewer_id": "goby", "target_id": "goby", "query": "python"}
	w = do(t, srv, "POST", "/api/retrieve", spoof, auth)
	if w.Code != http.StatusForbidden {
		t.Errorf("mismatched viewer status = %d, want 403", w.Code)
	}

	// Health stays open.
	if w := do(t, srv, "GET", "/api/health", nil, nil); w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", w.Code)
	}
}

func TestUsersRequireToken(t *testing.T) {
	const secret = "test-secret"
	srv := testServer(t, Options{JWTSecret: secret})

	if w := do(t, srv, "GET", "/api/users", nil, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", w.Code)
	}
	auth := map[string]string{"Authorization": "Bearer " + signToken(t, secret, "bob")}
	if w := do(t, srv, "GET", "/api/users", nil, auth); w.Code != http.StatusOK {
		t.Errorf("valid token status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestStrangerSeesOnlyPublicCounts(t *testing.T) {
	srv := testServer(t, Options{})

	w := do(t, srv, "POST", "/api/retrieve", map[string]any{
		"viewer_id":      "carol",
		"target_id":      "goby",
		"min_confidence": 0,
		"limit":          0,
		"similarity": map[string]float64{
			"goby_claim_001": 0.5, "goby_claim_002": 0.5, "goby_claim_005": 0.5, "goby_claim_006": 0.5,
		},
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := decode(t, w)

	// goby has seven claims; four are public.
	if got := body["scoped"]; got != float64(4) {
		t.Errorf("scoped = %v, want 4", got)
	}
	if _, ok := body["warnings"]; ok {
		t.Errorf("warnings leaked to a stranger: %v", body["warnings"])
	}
	for _, raw := range body["claims"].([]any) {
		c := raw.(map[string]any)["claim"].(map[string]any)
		if c["visibility"] != "public" {
			t.Errorf("claim %v with visibility %v returned to a stranger", c["id"], c["visibility"])
		}
	}
}

func TestRateLimitPerViewer(t *testing.T) {
	srv := testServer(t, Options{RatePerSecond: 0.001, RateBurst: 1})
	body := func(viewer string) map[string]any {
		return map[string]any{"viewer_id": viewer, "target_id": "goby", "query": "python"}
	}

	if w := do(t, srv, "POST", "/api/retrieve", body("bob"), nil); w.Code != http.StatusOK {
		t.Fatalf("first request status = %d, body %s", w.Code, w.Body.String())
	}
	w := do(t, srv, "POST", "/api/retrieve", body("bob"), nil)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", w.Code)
	}
	if got := decode(t, w)["code"]; got != "RATE_LIMITED" {
		t.Errorf("code = %v, want RATE_LIMITED", got)
	}
	if w := do(t, srv, "POST", "/api/retrieve", body("carol"), nil); w.Code != http.StatusOK {
		t.Errorf("other viewer status = %d, want 200", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t, Options{})

	do(t, srv, "POST", "/api/retrieve", map[string]any{"viewer_id": "bob", "target_id": "goby", "query": "python"}, nil)
	do(t, srv, "POST", "/api/retrieve", map[string]any{"viewer_id": "ghost", "target_id": "goby", "query": "python"}, nil)

	w := do(t, srv, "GET", "/metrics", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	out := w.Body.String()
	for _, want := range []string{
		`claimgate_retrievals_total{code="OK"} 1`,
		`claimgate_retrievals_total{code="INVALID_RELATIONSHIP_INPUT"} 1`,
		"claimgate_retrieval_duration_seconds_count 2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestAnswerEndpoint(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: "Đã được xác thực rằng Goby biết Python.", Provider: "mock"}}
	srv := testServer(t, Options{LLM: mock})

	w := do(t, srv, "POST", "/api/answer", map[string]any{
		"viewer_id": "bob",
		"target_id": "goby",
		"query":     "Does Goby know Python?",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["answer"]; got != mock.Response.Content {
		t.Errorf("answer = %v", got)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("llm calls = %d, want 1", len(calls))
	}
	if !strings.Contains(calls[0].User, "Question: Does Goby know Python?") || !strings.Contains(calls[0].User, "<context>") {
		t.Errorf("prompt = %q", calls[0].User)
	}
	if strings.Contains(calls[0].User, "stealth side project") {
		t.Error("owner-only claim reached the prompt")
	}
}

func TestAnswerNotConfigured(t *testing.T) {
	srv := testServer(t, Options{})

	w := do(t, srv, "POST", "/api/answer", map[string]any{"viewer_id": "bob", "target_id": "goby"}, nil)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", w.Code)
	}
}

func TestAnswerGenerationFailure(t *testing.T) {
	srv := testServer(t, Options{LLM: &llm.MockClient{Err: context.DeadlineExceeded}})

	w := do(t, srv, "POST", "/api/answer", map[string]any{"viewer_id": "bob", "target_id": "goby", "query": "python"}, nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
	if got := decode(t, w)["code"]; got != "GENERATION_FAILED" {
		t.Errorf("code = %v", got)
	}
}
