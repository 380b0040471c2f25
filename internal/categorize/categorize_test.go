package categorize

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestClassifier(t *testing.T, baseURL string) *AnthropicClassifier {
	t.Helper()
	classifier, err := NewAnthropicClassifier(Options{
		APIKey:  "test-key",
		Model:   "claude-3-5-haiku-latest",
		BaseURL: baseURL,
		Timeout: time.Second,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("build classifier: %v", err)
	}
	return classifier
}

func TestCategorizeReturnsTrimmedLabel(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Fatal("request should carry the api key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Fatal("request should carry the anthropic-version header")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "  \"Leite UHT Integral\".  "}},
		})
	}))
	defer srv.Close()

	classifier := newTestClassifier(t, srv.URL)

	label, err := classifier.Categorize(context.Background(), "Leite UHT Integral Piracanjuba 1L")
	if err != nil {
		t.Fatalf("categorize failed: %v", err)
	}
	if label != "Leite UHT Integral" {
		t.Fatalf("expected trimmed label, got %q", label)
	}
	if gotBody["model"] != "claude-3-5-haiku-latest" {
		t.Fatalf("unexpected model in request: %v", gotBody["model"])
	}
}

func TestCategorizeSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"type": "rate_limit_error", "message": "rate limit exceeded"},
		})
	}))
	defer srv.Close()

	classifier := newTestClassifier(t, srv.URL)

	_, err := classifier.Categorize(context.Background(), "Arroz Tio João 5kg")
	if err == nil {
		t.Fatal("api error should fail categorization")
	}
	if !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Fatalf("error should surface the api message, got %v", err)
	}
}

func TestCategorizeRejectsEmptyAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "   "}},
		})
	}))
	defer srv.Close()

	classifier := newTestClassifier(t, srv.URL)

	if _, err := classifier.Categorize(context.Background(), "Feijão Carioca 1kg"); err == nil {
		t.Fatal("an empty label must be an error")
	}
}

func TestCategorizeRequiresTitle(t *testing.T) {
	classifier := newTestClassifier(t, "http://localhost:0")
	if _, err := classifier.Categorize(context.Background(), "  "); err == nil {
		t.Fatal("blank titles must be rejected before calling the api")
	}
}

func TestNewAnthropicClassifierValidatesOptions(t *testing.T) {
	if _, err := NewAnthropicClassifier(Options{Model: "m"}, zerolog.Nop()); err == nil {
		t.Fatal("missing api key must fail")
	}
	if _, err := NewAnthropicClassifier(Options{APIKey: "k"}, zerolog.Nop()); err == nil {
		t.Fatal("missing model must fail")
	}
}
