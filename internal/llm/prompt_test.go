package llm

import (
	"strings"
	"testing"

	"github.com/avendano/forecourt/internal/retrieval"
)

func TestBuildMessages_OrderWithDocs(t *testing.T) {
	history := []Exchange{
		{Role: "user", Content: "hi"},
		{Role: "bot", Content: "hello"},
	}
	docs := []retrieval.Document{
		{Content: "Opening hours: 9-17."},
		{Content: "Test drives need a license."},
	}

	msgs := BuildMessages(history, "can I book a test drive?", docs)

	if len(msgs) != 6 {
		t.Fatalf("got %d messages, want 6", len(msgs))
	}
	if msgs[0].Role != "system" || !strings.HasPrefix(msgs[0].Content, "Reference information: ") {
		t.Errorf("first message should carry the reference documents, got %q", msgs[0].Content)
	}
	if !strings.Contains(msgs[0].Content, "Opening hours") || !strings.Contains(msgs[0].Content, "Test drives") {
		t.Error("reference message should join all document contents")
	}
	if msgs[1].Content != defaultPersona {
		t.Error("second message should be the persona")
	}
	if msgs[2].Role != "user" || msgs[2].Content != "hi" {
		t.Errorf("history user turn misplaced: %+v", msgs[2])
	}
	if msgs[3].Role != "assistant" || msgs[3].Content != "hello" {
		t.Errorf("history bot turn should map to assistant: %+v", msgs[3])
	}
	if msgs[4].Role != "user" || msgs[4].Content != "can I book a test drive?" {
		t.Errorf("query turn misplaced: %+v", msgs[4])
	}
	if msgs[5].Role != "system" || !strings.Contains(msgs[5].Content, "DECISION:") {
		t.Error("last message should be the decision instruction")
	}
}

func TestBuildMessages_NoDocsSkipsReferenceMessage(t *testing.T) {
	msgs := BuildMessages(nil, "hello", nil)

	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[0].Content != defaultPersona {
		t.Error("first message should be the persona when no documents match")
	}
}

func TestPromptRole_OperatorMapsToSystem(t *testing.T) {
	msgs := BuildMessages([]Exchange{{Role: "operator", Content: "we called the customer"}}, "ok", nil)
	if msgs[1].Role != "system" {
		t.Errorf("operator turn role = %q, want system", msgs[1].Role)
	}
}

func TestBuildLocationMessages(t *testing.T) {
	msgs := buildLocationMessages(Location{
		Latitude:  52.52,
		Longitude: 13.405,
		Name:      "Hauptstrasse 1",
	})

	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Content != defaultPersona {
		t.Error("first message should be the persona")
	}
	if !strings.Contains(msgs[1].Content, "SERVICE_TYPE:") {
		t.Error("location prompt should demand the SERVICE_TYPE format")
	}
	if !strings.Contains(msgs[1].Content, "Hauptstrasse 1") {
		t.Error("location prompt should include the location name")
	}
}
