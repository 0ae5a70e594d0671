package llm

import "testing"

func TestParseReply_AllFields(t *testing.T) {
	raw := "DECISION: humanIntervention\nCATEGORY: Roadside Emergency\nMESSAGE: Help is on the way."
	r := ParseReply(raw)

	if r.Decision != DecisionEscalate {
		t.Errorf("decision = %q, want escalate", r.Decision)
	}
	if r.Category != "Roadside Emergency" {
		t.Errorf("category = %q, want Roadside Emergency", r.Category)
	}
	if r.Message != "Help is on the way." {
		t.Errorf("message = %q", r.Message)
	}
}

func TestParseReply_DefaultsWhenMissing(t *testing.T) {
	raw := "Sure, I can help you book a test drive tomorrow."
	r := ParseReply(raw)

	if r.Decision != DecisionContinue {
		t.Errorf("decision = %q, want continue", r.Decision)
	}
	if r.Category != CategoryNone {
		t.Errorf("category = %q, want none", r.Category)
	}
	if r.Message != raw {
		t.Errorf("message = %q, want raw reply", r.Message)
	}
}

func TestParseReply_CaseInsensitive(t *testing.T) {
	raw := "decision: END\ncategory: none\nmessage: Goodbye!"
	r := ParseReply(raw)

	if r.Decision != DecisionEnd {
		t.Errorf("decision = %q, want end", r.Decision)
	}
	if r.Message != "Goodbye!" {
		t.Errorf("message = %q, want Goodbye!", r.Message)
	}
}

func TestParseReply_CategoryCaseNormalized(t *testing.T) {
	raw := "DECISION: humanIntervention\nCATEGORY: service appointment issue\nMESSAGE: A colleague will call you."
	r := ParseReply(raw)

	if r.Category != "Service Appointment Issue" {
		t.Errorf("category = %q, want canonical casing", r.Category)
	}
}

func TestParseReply_MultilineMessage(t *testing.T) {
	raw := "DECISION: continue\nCATEGORY: none\nMESSAGE: First line.\nSecond line."
	r := ParseReply(raw)

	if r.Message != "First line.\nSecond line." {
		t.Errorf("message = %q, want both lines", r.Message)
	}
}

func TestParseReply_UnknownDecisionDefaultsToContinue(t *testing.T) {
	raw := "DECISION: escalate\nMESSAGE: hmm"
	r := ParseReply(raw)

	// "escalate" is not a token the endpoint is instructed to emit; only
	// "humanIntervention" maps to the escalate decision.
	if r.Decision != DecisionContinue {
		t.Errorf("decision = %q, want continue", r.Decision)
	}
}

func TestParseLocationReply(t *testing.T) {
	raw := "SERVICE_TYPE: RoadsideAssistance\nMESSAGE: Stay where you are, we're coming."
	r := ParseLocationReply(raw)

	if r.ServiceType != ServiceTypeRoadside {
		t.Errorf("serviceType = %q, want RoadsideAssistance", r.ServiceType)
	}
	if r.Message != "Stay where you are, we're coming." {
		t.Errorf("message = %q", r.Message)
	}
}

func TestParseLocationReply_Defaults(t *testing.T) {
	raw := "Thanks for sharing your location."
	r := ParseLocationReply(raw)

	if r.ServiceType != ServiceTypeUnknown {
		t.Errorf("serviceType = %q, want Unknown", r.ServiceType)
	}
	if r.Message != raw {
		t.Errorf("message = %q, want raw reply", r.Message)
	}
}
