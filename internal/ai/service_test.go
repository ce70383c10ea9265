package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeCompletions serves a canned chat completions reply and records
// the last request payload.
func fakeCompletions(t *testing.T, content string) (*httptest.Server, *apiRequest) {
	t.Helper()

	var lastReq apiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization header: got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&lastReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}

		reply := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &lastReq
}

func testService(baseURL string) *Service {
	return New(Config{BaseURL: baseURL, APIKey: "test-key", Model: "test-model"})
}

func TestSummarizeParsesStructuredReply(t *testing.T) {
	srv, lastReq := fakeCompletions(t,
		`{"summary":"Quarterly results are in.","actions":["Review figures","Reply to finance","Schedule call"],"category":"core"}`)
	svc := testService(srv.URL)

	got := svc.Summarize(context.Background(), "long message body")

	if got.Summary != "Quarterly results are in." {
		t.Errorf("Summary: got %q", got.Summary)
	}
	if len(got.Actions) != 3 || got.Actions[0] != "Review figures" {
		t.Errorf("Actions: got %v", got.Actions)
	}
	if got.Category != "core" {
		t.Errorf("Category: got %q", got.Category)
	}

	if lastReq.Model != "test-model" {
		t.Errorf("request model: got %q", lastReq.Model)
	}
	if lastReq.ResponseFormat == nil || lastReq.ResponseFormat.Type != "json_object" {
		t.Error("summarize should request a JSON object response")
	}
}

func TestSummarizeWithoutKeyReturnsStub(t *testing.T) {
	svc := New(Config{})

	got := svc.Summarize(context.Background(), "anything")

	if got == nil || got.Category != "system" {
		t.Fatalf("expected configuration stub, got %+v", got)
	}
	if len(got.Actions) == 0 {
		t.Error("stub should carry guidance actions")
	}
}

func TestSummarizeUnparseableReplyDegrades(t *testing.T) {
	srv, _ := fakeCompletions(t, "this is not json")
	svc := testService(srv.URL)

	got := svc.Summarize(context.Background(), "body")

	if got == nil || got.Category != "error" {
		t.Fatalf("expected error fallback, got %+v", got)
	}
}

func TestSummarizeServerFailureDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "model overloaded"},
		})
	}))
	t.Cleanup(srv.Close)
	svc := testService(srv.URL)

	got := svc.Summarize(context.Background(), "body")

	if got == nil || got.Category != "error" {
		t.Fatalf("expected error fallback, got %+v", got)
	}
}

func TestImproveReturnsRewrittenText(t *testing.T) {
	srv, lastReq := fakeCompletions(t, "Dear team, please find the update below.")
	svc := testService(srv.URL)

	got := svc.Improve(context.Background(), "heads up, update below", "professional")

	if got != "Dear team, please find the update below." {
		t.Errorf("Improve: got %q", got)
	}
	if lastReq.ResponseFormat != nil {
		t.Error("improve should not request JSON mode")
	}
}

func TestImproveFallsBackToInput(t *testing.T) {
	svc := New(Config{}) // no key

	original := "keep me as I am"
	if got := svc.Improve(context.Background(), original, ""); got != original {
		t.Errorf("without a key the input should pass through, got %q", got)
	}

	srv, _ := fakeCompletions(t, "") // empty completion
	svc = testService(srv.URL)
	if got := svc.Improve(context.Background(), original, ""); got != original {
		t.Errorf("empty completion should fall back to the input, got %q", got)
	}
}

func TestGenerateOutlines(t *testing.T) {
	srv, _ := fakeCompletions(t,
		`{"outlines":["Thanks, will do.","Grateful for the update.","Afraid I must decline."]}`)
	svc := testService(srv.URL)

	got := svc.GenerateOutlines(context.Background(), "meeting invite")

	if len(got) != 3 || got[2] != "Afraid I must decline." {
		t.Errorf("outlines: got %v", got)
	}
}

func TestGenerateOutlinesFailureReturnsNil(t *testing.T) {
	svc := New(Config{}) // no key
	if got := svc.GenerateOutlines(context.Background(), "x"); got != nil {
		t.Errorf("without a key outlines should be nil, got %v", got)
	}

	srv, _ := fakeCompletions(t, "not json either")
	svc = testService(srv.URL)
	if got := svc.GenerateOutlines(context.Background(), "x"); got != nil {
		t.Errorf("unparseable reply should yield nil, got %v", got)
	}
}

func TestChat(t *testing.T) {
	srv, _ := fakeCompletions(t, "  hello there  ")
	svc := testService(srv.URL)

	if got := svc.Chat(context.Background(), "hi"); got != "hello there" {
		t.Errorf("Chat should trim the reply, got %q", got)
	}

	if got := New(Config{}).Chat(context.Background(), "hi"); got != "" {
		t.Errorf("Chat without a key should be empty, got %q", got)
	}
}

func TestSetConfigMergesNonEmpty(t *testing.T) {
	svc := New(Config{BaseURL: "https://one.example/v1", APIKey: "k1", Model: "m1"})

	svc.SetConfig(Config{Model: "m2"})

	baseURL, apiKey, model := svc.snapshot()
	if baseURL != "https://one.example/v1" {
		t.Errorf("baseURL should be untouched, got %q", baseURL)
	}
	if apiKey != "k1" {
		t.Errorf("apiKey should be untouched, got %q", apiKey)
	}
	if model != "m2" {
		t.Errorf("model should be updated, got %q", model)
	}

	svc.SetConfig(Config{BaseURL: "https://two.example/v1/"})
	baseURL, _, _ = svc.snapshot()
	if baseURL != "https://two.example/v1" {
		t.Errorf("trailing slash should be trimmed, got %q", baseURL)
	}
}
