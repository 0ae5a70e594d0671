package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/avendano/forecourt/internal/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cli := NewClient(config.LLMConfig{
		BaseURL:     srv.URL,
		APIKey:      "test-key",
		Model:       "grok-2",
		MaxTokens:   1000,
		Temperature: 0.7,
		TimeoutSec:  5,
	}, zap.NewNop())
	return cli, srv
}

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(b)
}

func TestRespond_Success(t *testing.T) {
	var gotAuth string
	var gotReq completionRequest
	cli, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(completionBody("DECISION: continue\nMESSAGE: hi")))
	})

	out, err := cli.Respond(context.Background(), []Message{{Role: "user", Content: "hello"}})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if out != "DECISION: continue\nMESSAGE: hi" {
		t.Errorf("content = %q", out)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotReq.Model != "grok-2" || gotReq.MaxTokens != 1000 || gotReq.Stream {
		t.Errorf("request fields = %+v", gotReq)
	}
}

func TestRespond_Non2xxIsError(t *testing.T) {
	cli, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	if _, err := cli.Respond(context.Background(), nil); err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}

func TestRespond_EmptyChoicesIsError(t *testing.T) {
	cli, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})

	if _, err := cli.Respond(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

// stubResponder implements Responder for generator tests.
type stubResponder struct {
	out string
	err error
}

func (s stubResponder) Respond(ctx context.Context, msgs []Message) (string, error) {
	return s.out, s.err
}

func TestGenerate_FallbackOnError(t *testing.T) {
	g := NewGenerator(stubResponder{err: errors.New("endpoint down")}, zap.NewNop())

	reply := g.Generate(context.Background(), nil, "hello", nil)
	if reply.Decision != DecisionContinue {
		t.Errorf("decision = %q, want continue", reply.Decision)
	}
	if reply.Message != generatorFallback {
		t.Errorf("message = %q, want fallback", reply.Message)
	}
}

func TestGenerate_ParsesStructuredReply(t *testing.T) {
	g := NewGenerator(stubResponder{out: "DECISION: end\nCATEGORY: none\nMESSAGE: Bye!"}, zap.NewNop())

	reply := g.Generate(context.Background(), nil, "thanks, all done", nil)
	if reply.Decision != DecisionEnd {
		t.Errorf("decision = %q, want end", reply.Decision)
	}
	if reply.Message != "Bye!" {
		t.Errorf("message = %q", reply.Message)
	}
}

func TestAnalyzeLocation_FallbackOnError(t *testing.T) {
	g := NewGenerator(stubResponder{err: errors.New("endpoint down")}, zap.NewNop())

	reply := g.AnalyzeLocation(context.Background(), Location{Latitude: 1, Longitude: 2})
	if reply.ServiceType != ServiceTypeUnknown {
		t.Errorf("serviceType = %q, want Unknown", reply.ServiceType)
	}
	if reply.Message != locationFallback {
		t.Errorf("message = %q, want location fallback", reply.Message)
	}
}
