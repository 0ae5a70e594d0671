package llm

import (
	"regexp"
	"strings"
)

// Decision is the generator's verdict on how the conversation proceeds.
type Decision string

const (
	DecisionContinue Decision = "continue"
	DecisionEnd      Decision = "end"
	DecisionEscalate Decision = "escalate"
)

// CategoryNone is the category value when no escalation is requested.
const CategoryNone = "none"

// Reply is the parsed structured response from the completion endpoint.
type Reply struct {
	Decision Decision
	Category string
	Message  string
}

var (
	decisionRe = regexp.MustCompile(`(?i)DECISION:\s*(continue|end|humanIntervention)`)
	categoryRe = regexp.MustCompile(`(?i)CATEGORY:\s*(Service Appointment Issue|Test Drive Inquiry|Roadside Emergency|Other|none)`)
	messageRe  = regexp.MustCompile(`(?is)MESSAGE:\s*(.+)`)
)

// ParseReply extracts the DECISION/CATEGORY/MESSAGE fields from raw model
// output, case-insensitively. Missing fields take defaults: decision
// continue, category none, message the raw output verbatim. The model's
// "humanIntervention" token maps to DecisionEscalate.
func ParseReply(raw string) Reply {
	r := Reply{
		Decision: DecisionContinue,
		Category: CategoryNone,
		Message:  strings.TrimSpace(raw),
	}

	if m := decisionRe.FindStringSubmatch(raw); m != nil {
		switch strings.ToLower(m[1]) {
		case "end":
			r.Decision = DecisionEnd
		case "humanintervention":
			r.Decision = DecisionEscalate
		default:
			r.Decision = DecisionContinue
		}
	}
	if m := categoryRe.FindStringSubmatch(raw); m != nil {
		r.Category = canonicalCategory(m[1])
	}
	if m := messageRe.FindStringSubmatch(raw); m != nil {
		r.Message = strings.TrimSpace(m[1])
	}
	return r
}

// canonicalCategory normalizes the case of a matched category token.
func canonicalCategory(s string) string {
	for _, c := range []string{
		"Service Appointment Issue",
		"Test Drive Inquiry",
		"Roadside Emergency",
		"Other",
	} {
		if strings.EqualFold(s, c) {
			return c
		}
	}
	return CategoryNone
}

// Location service types produced by the location analyzer.
const (
	ServiceTypeAppointment = "ServiceAppointment"
	ServiceTypeTestDrive   = "TestDrive"
	ServiceTypeRoadside    = "RoadsideAssistance"
	ServiceTypeUnknown     = "Unknown"
)

// LocationReply is the parsed response to a shared-location message.
type LocationReply struct {
	ServiceType string
	Message     string
}

var (
	serviceTypeRe = regexp.MustCompile(`(?i)SERVICE_TYPE:\s*(ServiceAppointment|TestDrive|RoadsideAssistance|Unknown)`)
)

// ParseLocationReply extracts the SERVICE_TYPE/MESSAGE fields from raw model
// output. Missing fields default to Unknown and the raw output.
func ParseLocationReply(raw string) LocationReply {
	r := LocationReply{
		ServiceType: ServiceTypeUnknown,
		Message:     strings.TrimSpace(raw),
	}
	if m := serviceTypeRe.FindStringSubmatch(raw); m != nil {
		for _, st := range []string{ServiceTypeAppointment, ServiceTypeTestDrive, ServiceTypeRoadside, ServiceTypeUnknown} {
			if strings.EqualFold(m[1], st) {
				r.ServiceType = st
				break
			}
		}
	}
	if m := messageRe.FindStringSubmatch(raw); m != nil {
		r.Message = strings.TrimSpace(m[1])
	}
	return r
}
