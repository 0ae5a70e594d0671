package gateway

import "testing"

const selfJID = "4910000000:5@s.whatsapp.net"

func TestShouldProcess_OwnMessagesDropped(t *testing.T) {
	msg := InboundMessage{JID: "a@s.whatsapp.net", FromMe: true, Text: "hi"}
	if ShouldProcess(msg, selfJID) {
		t.Error("own messages must never be processed")
	}
}

func TestShouldProcess_DirectMessagePasses(t *testing.T) {
	msg := InboundMessage{JID: "a@s.whatsapp.net", Text: "hi"}
	if !ShouldProcess(msg, selfJID) {
		t.Error("direct messages should pass")
	}
}

func TestShouldProcess_GroupWithoutMentionDropped(t *testing.T) {
	msg := InboundMessage{JID: "g@g.us", IsGroup: true, Text: "hello everyone"}
	if ShouldProcess(msg, selfJID) {
		t.Error("group chatter without a mention must be dropped")
	}
}

func TestShouldProcess_GroupMentionPasses(t *testing.T) {
	msg := InboundMessage{
		JID:           "g@g.us",
		IsGroup:       true,
		Text:          "@bot can you help",
		MentionedJIDs: []string{"4910000000@s.whatsapp.net"},
	}
	if !ShouldProcess(msg, selfJID) {
		t.Error("mentioning the bot should pass, device suffix ignored")
	}
}

func TestShouldProcess_GroupReplyToBotPasses(t *testing.T) {
	msg := InboundMessage{
		JID:          "g@g.us",
		IsGroup:      true,
		Text:         "yes please",
		QuotedSender: "4910000000@s.whatsapp.net",
	}
	if !ShouldProcess(msg, selfJID) {
		t.Error("replying to a bot message should pass")
	}
}

func TestShouldProcess_GroupReplyToSomeoneElseDropped(t *testing.T) {
	msg := InboundMessage{
		JID:          "g@g.us",
		IsGroup:      true,
		Text:         "yes please",
		QuotedSender: "other@s.whatsapp.net",
	}
	if ShouldProcess(msg, selfJID) {
		t.Error("replying to another member must be dropped")
	}
}

func TestShouldProcess_GroupWithUnknownSelfDropped(t *testing.T) {
	msg := InboundMessage{
		JID:           "g@g.us",
		IsGroup:       true,
		MentionedJIDs: []string{"4910000000@s.whatsapp.net"},
	}
	if ShouldProcess(msg, "") {
		t.Error("without a known self jid, group messages must be dropped")
	}
}
