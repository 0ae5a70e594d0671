package llm

import (
	"fmt"
	"strings"

	"github.com/avendano/forecourt/internal/models"
	"github.com/avendano/forecourt/internal/retrieval"
)

// defaultPersona is the leading system instruction for all conversations.
const defaultPersona = `You are a helpful assistant for a car dealership.
Provide concise, accurate information about our vehicles, services, and policies.
Be friendly and professional. If you're unsure about something, offer to connect the customer with a human agent.`

// decisionInstruction is the trailing system instruction demanding the
// structured DECISION/CATEGORY/MESSAGE reply.
const decisionInstruction = `Based on this conversation, decide if you should:
1. Continue the conversation normally
2. End the conversation as the request is resolved
3. Escalate to human intervention

If human intervention is needed, categorize as one of:
- "Service Appointment Issue"
- "Test Drive Inquiry"
- "Roadside Emergency"
- "Other"

Format your response as follows:
DECISION: [continue|end|humanIntervention]
CATEGORY: [category if humanIntervention, otherwise "none"]
MESSAGE: [your response to the user]`

// Exchange is one prior turn of the conversation as fed to the prompt.
// Role uses the store's vocabulary (user/bot/operator).
type Exchange struct {
	Role    string
	Content string
}

// BuildMessages assembles the chat-completions message list: an optional
// reference-documents system message, the persona, the history mapped to the
// neutral role scheme, the new query as a user turn, and the trailing
// decision instruction.
func BuildMessages(history []Exchange, query string, docs []retrieval.Document) []Message {
	msgs := make([]Message, 0, len(history)+4)

	if len(docs) > 0 {
		contents := make([]string, len(docs))
		for i, d := range docs {
			contents[i] = d.Content
		}
		msgs = append(msgs, Message{
			Role:    "system",
			Content: "Reference information: " + strings.Join(contents, "\n\n"),
		})
	}

	msgs = append(msgs, Message{Role: "system", Content: defaultPersona})

	for _, ex := range history {
		msgs = append(msgs, Message{Role: promptRole(ex.Role), Content: ex.Content})
	}

	msgs = append(msgs, Message{Role: "user", Content: query})
	msgs = append(msgs, Message{Role: "system", Content: decisionInstruction})
	return msgs
}

// promptRole maps a stored turn role to the completion-endpoint scheme:
// counterparty turns are user, bot turns are assistant, operator turns are
// surfaced as system context.
func promptRole(role string) string {
	switch role {
	case models.RoleBot:
		return "assistant"
	case models.RoleOperator:
		return "system"
	default:
		return "user"
	}
}

// Location is a shared-location payload from the gateway.
type Location struct {
	Latitude  float64
	Longitude float64
	Name      string
	Address   string
}

// buildLocationMessages assembles the prompt for a shared-location message.
func buildLocationMessages(loc Location) []Message {
	var b strings.Builder
	fmt.Fprintf(&b, "The user has shared their location with the following coordinates:\n")
	fmt.Fprintf(&b, "Latitude: %f\nLongitude: %f\n", loc.Latitude, loc.Longitude)
	if loc.Name != "" {
		fmt.Fprintf(&b, "Location name: %s\n", loc.Name)
	}
	if loc.Address != "" {
		fmt.Fprintf(&b, "Address: %s\n", loc.Address)
	}
	b.WriteString(`
Based on this location information, please determine which of the following services they might need:
1. Service Appointment Booking - If they appear to be at or near a dealership and might need service
2. Test Drive Scheduling - If they appear to be at a dealership and might want to test drive a vehicle
3. Roadside Emergency Assistance - If they appear to be on a highway, remote location, or parking lot (not at a dealership)

Please provide a helpful response offering the appropriate service based on the location context.
If you can't determine which service they need from location alone, ask them what assistance they require.

Format your response as follows:
SERVICE_TYPE: [ServiceAppointment|TestDrive|RoadsideAssistance|Unknown]
MESSAGE: [your helpful response to the user]`)

	return []Message{
		{Role: "system", Content: defaultPersona},
		{Role: "system", Content: b.String()},
	}
}

// Describe renders a location as the text recorded in the transcript.
func (l Location) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Location coordinates: Latitude %f, Longitude %f", l.Latitude, l.Longitude)
	if l.Name != "" {
		fmt.Fprintf(&b, ", Name: %s", l.Name)
	}
	if l.Address != "" {
		fmt.Fprintf(&b, ", Address: %s", l.Address)
	}
	return b.String()
}
