package gateway

import "strings"

// ShouldProcess decides whether an inbound message reaches the conversation
// pipeline. Own messages are always dropped. Direct messages pass. Group
// messages pass only when the bot is mentioned or the message replies to a
// prior bot message. The allow-list gate is applied separately by the
// caller; this predicate is transport-shape independent so it can be tested
// without a live connection.
func ShouldProcess(msg InboundMessage, selfJID string) bool {
	if msg.FromMe {
		return false
	}
	if !msg.IsGroup {
		return true
	}
	if selfJID == "" {
		return false
	}
	for _, m := range msg.MentionedJIDs {
		if sameUser(m, selfJID) {
			return true
		}
	}
	return msg.QuotedSender != "" && sameUser(msg.QuotedSender, selfJID)
}

// sameUser compares two JIDs by user part, ignoring the device suffix that
// multi-device sessions append (e.g. "1234:12@s.whatsapp.net").
func sameUser(a, b string) bool {
	return userPart(a) == userPart(b)
}

func userPart(jid string) string {
	if i := strings.Index(jid, "@"); i >= 0 {
		jid = jid[:i]
	}
	if i := strings.Index(jid, ":"); i >= 0 {
		jid = jid[:i]
	}
	return jid
}
