package reason

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sentinelmark/phishmark/pkg/config"
)

// fakeProvider serves an OpenAI-compatible chat endpoint whose reply depends
// on the requested model.
func fakeProvider(t *testing.T, replies map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/chat/completions" {
			http.NotFound(w, req)
			return
		}
		var body struct {
			Model string `json:"model"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		reply, ok := replies[body.Model]
		if !ok {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limited"}`))
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func testConfig(baseURL string, models ...string) *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.LLMProvider = config.ProviderCustom
	cfg.LLMBaseURL = baseURL
	cfg.LLMAPIKey = "test-key"
	cfg.LLMModels = models
	cfg.VisionModels = models
	cfg.EnableVision = true
	return cfg
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"markdown fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding prose", `Sure! Here is the result: {"a":1} Hope that helps.`, `{"a":1}`},
		{"no json", "no braces here", "no braces here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.in); got != tt.want {
				t.Errorf("ExtractJSON = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChainFallsThroughToParseableModel(t *testing.T) {
	srv := fakeProvider(t, map[string]string{
		"chatty":  "I think the URL looks bad, around 30 points worth.",
		"careful": `{"adjustment": 30, "analysis": "Credential page on look-alike domain.", "explanation": "Fake login.", "intent": "credential_theft", "suspicious_elements": ["password form"]}`,
	})
	defer srv.Close()

	r := New(testConfig(srv.URL, "offline-model", "chatty", "careful"))
	adj, err := r.AdjustURLScore(context.Background(), "https://paypa1-secure.xyz/login", "", nil)
	if err != nil {
		t.Fatalf("AdjustURLScore: %v", err)
	}
	if adj.Adjustment != 30 || adj.Intent != "credential_theft" {
		t.Errorf("unexpected adjustment: %+v", adj)
	}
	if adj.Model != "careful" {
		t.Errorf("expected the third model to win, got %q", adj.Model)
	}
}

func TestChainRejectsOutOfContractAdjustment(t *testing.T) {
	srv := fakeProvider(t, map[string]string{
		"wild": `{"adjustment": 900, "analysis": "bad", "explanation": "", "intent": "unclear", "suspicious_elements": []}`,
	})
	defer srv.Close()

	r := New(testConfig(srv.URL, "wild"))
	if _, err := r.AdjustURLScore(context.Background(), "https://example.com", "", nil); err == nil {
		t.Error("adjustment outside bounds should fail the whole chain")
	}
}

func TestURLAdjustmentValidate(t *testing.T) {
	tests := []struct {
		name    string
		adj     URLAdjustment
		wantErr bool
	}{
		{"in range", URLAdjustment{Adjustment: 50, Analysis: "x"}, false},
		{"lower bound", URLAdjustment{Adjustment: -10, Analysis: "x"}, false},
		{"too high", URLAdjustment{Adjustment: 51, Analysis: "x"}, true},
		{"too low", URLAdjustment{Adjustment: -11, Analysis: "x"}, true},
		{"missing analysis", URLAdjustment{Adjustment: 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.adj.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProfilePsychology(t *testing.T) {
	srv := fakeProvider(t, map[string]string{
		"m": `{"triggers":[{"text":"act within 24 hours","category":"urgency","explanation":"deadline pressure"}],"summary":"deadline pressure"}`,
	})
	defer srv.Close()

	r := New(testConfig(srv.URL, "m"))
	rep, err := r.ProfilePsychology(context.Background(), "Account locked", "act within 24 hours or lose access")
	if err != nil {
		t.Fatalf("ProfilePsychology: %v", err)
	}
	if len(rep.Triggers) != 1 || rep.Triggers[0].Category != "urgency" {
		t.Errorf("unexpected report: %+v", rep)
	}
}

func TestNilReasonerReportsUnavailable(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.LLMProvider = config.ProviderNone

	r := New(cfg)
	if r.CanReason() || r.CanSee() {
		t.Error("nil reasoner must report no capabilities")
	}
	if _, err := r.AdjustURLScore(context.Background(), "https://x.test", "", nil); err == nil {
		t.Error("expected error from nil reasoner")
	}
	if _, err := r.Assist(context.Background(), "what is phishing"); err == nil {
		t.Error("expected error from nil reasoner")
	}
}

func TestDraftWarning(t *testing.T) {
	srv := fakeProvider(t, map[string]string{
		"m": "This email shows signs of phishing. Do not click its links; contact the sender through official channels.",
	})
	defer srv.Close()

	r := New(testConfig(srv.URL, "m"))
	draft, err := r.DraftWarning(context.Background(), "Verify your account", 72, []string{"look-alike domain"})
	if err != nil || draft == "" {
		t.Errorf("DraftWarning = %q, %v", draft, err)
	}
}

func TestChainModelOrder(t *testing.T) {
	ch := NewChain(&Client{}, []string{"a", "b"})
	if fmt.Sprint(ch.Models()) != "[a b]" {
		t.Errorf("Models = %v", ch.Models())
	}
	if NewChain(nil, []string{"a"}) != nil {
		t.Error("nil client should yield nil chain")
	}
	if NewChain(&Client{}, nil) != nil {
		t.Error("empty model list should yield nil chain")
	}
}
