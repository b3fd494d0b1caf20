package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/enrichd/enrichd/internal/core/domain"
)

func completionResponse(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(body)
}

func TestEnrichParsesSummaryAndAnswers(t *testing.T) {
	var capturedUser string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected authorization header %q", got)
		}
		var payload struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		for _, msg := range payload.Messages {
			if msg.Role == "user" {
				capturedUser = msg.Content
			}
		}
		_, _ = w.Write([]byte(completionResponse(
			`{"summary":"quarterly report","qa":[{"question":"What is the total?","answer":"$42"}]}`)))
	}))
	defer server.Close()

	client := New(server.URL, "sk-test", "gpt-4o-mini")
	result, err := client.Enrich(context.Background(), "report text", []string{"What is the total?"})
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if result.Summary != "quarterly report" {
		t.Fatalf("Summary = %q", result.Summary)
	}
	if len(result.QA) != 1 || result.QA[0].Answer != "$42" {
		t.Fatalf("QA = %+v", result.QA)
	}
	if !strings.Contains(capturedUser, "report text") || !strings.Contains(capturedUser, "What is the total?") {
		t.Fatalf("unexpected user prompt: %s", capturedUser)
	}
}

func TestEnrichMalformedOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completionResponse("the total is forty-two")))
	}))
	defer server.Close()

	client := New(server.URL, "sk-test", "gpt-4o-mini")
	_, err := client.Enrich(context.Background(), "report text", nil)
	if !domain.IsKind(err, domain.ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput, got %v", err)
	}
}

func TestEnrichMissingSummaryIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completionResponse(`{"qa":[]}`)))
	}))
	defer server.Close()

	client := New(server.URL, "sk-test", "gpt-4o-mini")
	_, err := client.Enrich(context.Background(), "report text", nil)
	if !domain.IsKind(err, domain.ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput, got %v", err)
	}
}

func TestEnrichTruncatesOversizedInput(t *testing.T) {
	var capturedUser string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		for _, msg := range payload.Messages {
			if msg.Role == "user" {
				capturedUser = msg.Content
			}
		}
		_, _ = w.Write([]byte(completionResponse(`{"summary":"ok","qa":[]}`)))
	}))
	defer server.Close()

	client := NewWithOptions(server.URL, "sk-test", "gpt-4o-mini", Options{MaxInputChars: 100})
	_, err := client.Enrich(context.Background(), strings.Repeat("a", 500), nil)
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if !strings.Contains(capturedUser, "[TRUNCATED]") {
		t.Fatalf("expected truncation marker in prompt")
	}
	if strings.Count(capturedUser, "a") > 150 {
		t.Fatalf("input was not truncated")
	}
}

func TestEnrichTruncationKeepsInputValidUTF8(t *testing.T) {
	var capturedUser string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		for _, msg := range payload.Messages {
			if msg.Role == "user" {
				capturedUser = msg.Content
			}
		}
		_, _ = w.Write([]byte(completionResponse(`{"summary":"ok","qa":[]}`)))
	}))
	defer server.Close()

	client := NewWithOptions(server.URL, "sk-test", "gpt-4o-mini", Options{MaxInputChars: 100})
	// Byte 99 starts a two-byte rune, so a naive byte cut at 100 would
	// split it.
	input := strings.Repeat("a", 99) + strings.Repeat("é", 50)
	_, err := client.Enrich(context.Background(), input, nil)
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if !utf8.ValidString(capturedUser) {
		t.Fatalf("prompt contains invalid UTF-8 after truncation")
	}
	if !strings.Contains(capturedUser, strings.Repeat("a", 99)+"\n\n[TRUNCATED]") {
		t.Fatalf("expected cut to back off to the rune boundary before the marker")
	}
}

func TestEnrichTemporaryOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "sk-test", "gpt-4o-mini")
	_, err := client.Enrich(context.Background(), "report text", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if !strings.Contains(err.Error(), "upstream overloaded") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}
