package whatsapp

import (
	"testing"
	"time"

	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

func textEvent(text string) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{
				Chat:   types.NewJID("15550001111", types.DefaultUserServer),
				Sender: types.NewJID("15550001111", types.DefaultUserServer),
			},
			PushName:  "Ada",
			Timestamp: time.Now(),
		},
		Message: &waProto.Message{Conversation: proto.String(text)},
	}
}

func TestHandleEventAfterClose(t *testing.T) {
	a := New("test-session.db", zap.NewNop())
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Platform event goroutines can still be dispatching after Close
	// returns; a late event must be dropped, not panic.
	a.handleEvent(textEvent("late delivery"))
}

func TestCloseUnblocksPendingEvent(t *testing.T) {
	a := New("test-session.db", zap.NewNop())

	for i := 0; i < inboundBuffer; i++ {
		a.handleEvent(textEvent("fill"))
	}

	unblocked := make(chan struct{})
	go func() {
		a.handleEvent(textEvent("overflow"))
		close(unblocked)
	}()

	// Give the goroutine a moment to block on the full channel.
	time.Sleep(10 * time.Millisecond)
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("event handler still blocked after Close")
	}
}

func TestMapMessage(t *testing.T) {
	msg, ok := mapMessage(textEvent("hello"))
	if !ok {
		t.Fatal("text event dropped")
	}
	if msg.Text != "hello" || msg.JID != "15550001111@s.whatsapp.net" {
		t.Errorf("mapped message = %+v", msg)
	}
	if msg.PushName != "Ada" || msg.IsGroup || msg.FromMe {
		t.Errorf("metadata = %+v", msg)
	}

	ext := textEvent("")
	ext.Message = &waProto.Message{
		ExtendedTextMessage: &waProto.ExtendedTextMessage{
			Text: proto.String("reply text"),
			ContextInfo: &waProto.ContextInfo{
				MentionedJID: []string{"bot@s.whatsapp.net"},
				Participant:  proto.String("bot@s.whatsapp.net"),
			},
		},
	}
	msg, ok = mapMessage(ext)
	if !ok {
		t.Fatal("extended text event dropped")
	}
	if msg.Text != "reply text" || len(msg.MentionedJIDs) != 1 || msg.QuotedSender != "bot@s.whatsapp.net" {
		t.Errorf("extended message = %+v", msg)
	}

	locEvt := textEvent("")
	locEvt.Message = &waProto.Message{
		LocationMessage: &waProto.LocationMessage{
			DegreesLatitude:  proto.Float64(40.7),
			DegreesLongitude: proto.Float64(-74.0),
			Name:             proto.String("Garage"),
		},
	}
	msg, ok = mapMessage(locEvt)
	if !ok {
		t.Fatal("location event dropped")
	}
	if msg.Location == nil || msg.Location.Latitude != 40.7 || msg.Location.Name != "Garage" {
		t.Errorf("location = %+v", msg.Location)
	}

	empty := textEvent("")
	empty.Message = &waProto.Message{}
	if _, ok := mapMessage(empty); ok {
		t.Error("empty event not dropped")
	}
}
