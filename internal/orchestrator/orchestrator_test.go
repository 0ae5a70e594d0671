package orchestrator

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/avendano/forecourt/internal/llm"
	"github.com/avendano/forecourt/internal/models"
	"github.com/avendano/forecourt/internal/retrieval"
	"github.com/avendano/forecourt/internal/store"
)

const testJID = "4915112345@s.whatsapp.net"

// scriptedGenerator returns queued replies in order, repeating the last one.
type scriptedGenerator struct {
	replies  []llm.Reply
	location llm.LocationReply
	calls    int
	history  [][]llm.Exchange
}

func (g *scriptedGenerator) Generate(ctx context.Context, history []llm.Exchange, query string, docs []retrieval.Document) llm.Reply {
	g.history = append(g.history, history)
	i := g.calls
	g.calls++
	if i >= len(g.replies) {
		i = len(g.replies) - 1
	}
	return g.replies[i]
}

func (g *scriptedGenerator) AnalyzeLocation(ctx context.Context, loc llm.Location) llm.LocationReply {
	return g.location
}

func continueReply(msg string) llm.Reply {
	return llm.Reply{Decision: llm.DecisionContinue, Category: llm.CategoryNone, Message: msg}
}

func newTestOrchestrator(t *testing.T, gen Generator) (*Orchestrator, *store.ConversationStore, *store.TicketStore, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Conversation{}, &models.Turn{}, &models.Ticket{}, &models.TicketNote{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	convs := store.NewConversationStore(db)
	tickets := store.NewTicketStore(db)
	corpus := retrieval.NewCorpus([]retrieval.Document{
		{ID: 1, Content: "Service appointments can be booked by phone.", Keywords: []string{"service", "appointment"}},
	})
	return New(convs, tickets, corpus, gen, 20, zap.NewNop()), convs, tickets, db
}

func TestHandle_ContinueDoublesTurnCount(t *testing.T) {
	gen := &scriptedGenerator{replies: []llm.Reply{continueReply("sure")}}
	o, convs, _, _ := newTestOrchestrator(t, gen)

	for i := 0; i < 3; i++ {
		if reply := o.Handle(context.Background(), testJID, "hello"); reply != "sure" {
			t.Fatalf("reply = %q, want scripted message", reply)
		}
	}

	conv, err := convs.Current(testJID)
	if err != nil || conv == nil {
		t.Fatalf("current conversation: %v", err)
	}
	if conv.Status != models.ConversationActive {
		t.Errorf("status = %q, want active", conv.Status)
	}
	turns, _ := convs.Turns(conv.ID)
	if len(turns) != 6 {
		t.Errorf("turn count = %d, want 6 (two per inbound message)", len(turns))
	}
}

func TestHandle_HistoryExcludesCurrentQuery(t *testing.T) {
	gen := &scriptedGenerator{replies: []llm.Reply{continueReply("ok")}}
	o, _, _, _ := newTestOrchestrator(t, gen)

	o.Handle(context.Background(), testJID, "first")
	o.Handle(context.Background(), testJID, "second")

	if len(gen.history[0]) != 0 {
		t.Errorf("first call history length = %d, want 0", len(gen.history[0]))
	}
	// Second call sees the first exchange but not "second" itself.
	if len(gen.history[1]) != 2 {
		t.Fatalf("second call history length = %d, want 2", len(gen.history[1]))
	}
	for _, ex := range gen.history[1] {
		if ex.Content == "second" {
			t.Error("current query must not appear in the history")
		}
	}
}

func TestHandle_EndThenNewConversation(t *testing.T) {
	gen := &scriptedGenerator{replies: []llm.Reply{
		{Decision: llm.DecisionEnd, Category: llm.CategoryNone, Message: "bye"},
		continueReply("hello again"),
	}}
	o, convs, _, _ := newTestOrchestrator(t, gen)

	o.Handle(context.Background(), testJID, "thanks, that's all")

	ended, err := convs.History(testJID, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(ended) != 2 {
		t.Fatalf("ended conversation turn count = %d, want 2", len(ended))
	}

	o.Handle(context.Background(), testJID, "hi again")

	cur, err := convs.Current(testJID)
	if err != nil || cur == nil {
		t.Fatalf("current after end: %v", err)
	}
	if cur.Status != models.ConversationActive {
		t.Errorf("status = %q, want active", cur.Status)
	}
	turns, _ := convs.Turns(cur.ID)
	if len(turns) != 2 {
		t.Errorf("new conversation turn count = %d, want 2 (not appended to ended one)", len(turns))
	}
}

func TestHandle_EscalateCreatesTicket(t *testing.T) {
	gen := &scriptedGenerator{replies: []llm.Reply{{
		Decision: llm.DecisionEscalate,
		Category: models.CategoryRoadside,
		Message:  "Help is on the way.",
	}}}
	o, convs, tickets, _ := newTestOrchestrator(t, gen)

	trigger := "my car broke down on the highway"
	o.Handle(context.Background(), testJID, trigger)

	conv, _ := convs.Current(testJID)
	if conv.Status != models.ConversationEscalated {
		t.Errorf("status = %q, want escalated", conv.Status)
	}

	rows, total, err := tickets.List(store.TicketListOpts{})
	if err != nil {
		t.Fatalf("list tickets: %v", err)
	}
	if total != 1 {
		t.Fatalf("ticket count = %d, want 1", total)
	}
	tk := rows[0]
	if tk.JID != testJID || tk.ConversationID != conv.ID {
		t.Errorf("ticket links = %s/%d, want %s/%d", tk.JID, tk.ConversationID, testJID, conv.ID)
	}
	if tk.Category != models.CategoryRoadside {
		t.Errorf("category = %q, want Roadside Emergency", tk.Category)
	}
	if tk.Priority != models.PriorityUrgent {
		t.Errorf("priority = %q, roadside must be urgent", tk.Priority)
	}
	if !strings.HasPrefix(tk.Summary, "Customer needs help with: "+trigger) {
		t.Errorf("summary = %q", tk.Summary)
	}
}

func TestHandle_EscalateSummaryTruncatesOnRuneBoundary(t *testing.T) {
	gen := &scriptedGenerator{replies: []llm.Reply{{
		Decision: llm.DecisionEscalate,
		Category: models.CategoryService,
		Message:  "A colleague will take over.",
	}}}
	o, _, tickets, _ := newTestOrchestrator(t, gen)

	// 120 runes, all multi-byte, so a byte-indexed cut would land
	// mid-sequence.
	trigger := strings.Repeat("ü", 120)
	o.Handle(context.Background(), testJID, trigger)

	rows, _, _ := tickets.List(store.TicketListOpts{})
	if len(rows) != 1 {
		t.Fatalf("ticket count = %d, want 1", len(rows))
	}
	summary := rows[0].Summary
	if !utf8.ValidString(summary) {
		t.Fatalf("summary is not valid UTF-8: %q", summary)
	}
	want := "Customer needs help with: " + strings.Repeat("ü", 100) + "..."
	if summary != want {
		t.Errorf("summary = %q, want %q", summary, want)
	}
}

func TestHandle_EscalateNoneCategoryBecomesOther(t *testing.T) {
	gen := &scriptedGenerator{replies: []llm.Reply{{
		Decision: llm.DecisionEscalate,
		Category: llm.CategoryNone,
		Message:  "Connecting you to a colleague.",
	}}}
	o, _, tickets, _ := newTestOrchestrator(t, gen)

	o.Handle(context.Background(), testJID, "I want to complain")

	rows, _, _ := tickets.List(store.TicketListOpts{})
	if len(rows) != 1 {
		t.Fatalf("ticket count = %d, want 1", len(rows))
	}
	if rows[0].Category != models.CategoryOther {
		t.Errorf("category = %q, want Other", rows[0].Category)
	}
	if rows[0].Priority != models.PriorityMedium {
		t.Errorf("priority = %q, want medium", rows[0].Priority)
	}
}

func TestHandle_RepeatEscalationIsIdempotent(t *testing.T) {
	gen := &scriptedGenerator{replies: []llm.Reply{{
		Decision: llm.DecisionEscalate,
		Category: models.CategoryOther,
		Message:  "A colleague will contact you.",
	}}}
	o, _, tickets, _ := newTestOrchestrator(t, gen)

	o.Handle(context.Background(), testJID, "help")
	o.Handle(context.Background(), testJID, "help please")

	_, total, err := tickets.List(store.TicketListOpts{})
	if err != nil {
		t.Fatalf("list tickets: %v", err)
	}
	if total != 1 {
		t.Errorf("ticket count = %d, want 1 (no duplicate for open escalation)", total)
	}
}

func TestHandle_NewTicketAfterResolution(t *testing.T) {
	gen := &scriptedGenerator{replies: []llm.Reply{{
		Decision: llm.DecisionEscalate,
		Category: models.CategoryOther,
		Message:  "Escalating.",
	}}}
	o, _, tickets, _ := newTestOrchestrator(t, gen)

	o.Handle(context.Background(), testJID, "help")

	rows, _, _ := tickets.List(store.TicketListOpts{})
	rows[0].Status = models.TicketResolved
	if err := tickets.Save(&rows[0]); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	o.Handle(context.Background(), testJID, "still not fixed")

	_, total, _ := tickets.List(store.TicketListOpts{})
	if total != 2 {
		t.Errorf("ticket count = %d, want 2 (resolved ticket no longer blocks escalation)", total)
	}
}

func TestHandleLocation_AnnotatesServiceType(t *testing.T) {
	gen := &scriptedGenerator{
		replies: []llm.Reply{continueReply("ok")},
		location: llm.LocationReply{
			ServiceType: llm.ServiceTypeRoadside,
			Message:     "Stay put, help is coming.",
		},
	}
	o, convs, _, _ := newTestOrchestrator(t, gen)

	reply := o.HandleLocation(context.Background(), testJID, llm.Location{Latitude: 52.5, Longitude: 13.4})
	if reply != "Stay put, help is coming." {
		t.Errorf("reply = %q", reply)
	}

	conv, _ := convs.Current(testJID)
	turns, _ := convs.Turns(conv.ID)
	if len(turns) != 2 {
		t.Fatalf("turn count = %d, want 2", len(turns))
	}
	if !strings.Contains(turns[0].Annotations, "latitude") {
		t.Errorf("user turn annotations = %q, want coordinates", turns[0].Annotations)
	}
	if !strings.Contains(turns[1].Annotations, llm.ServiceTypeRoadside) {
		t.Errorf("bot turn annotations = %q, want serviceType", turns[1].Annotations)
	}
}

func TestHandle_StoreFailureYieldsApology(t *testing.T) {
	gen := &scriptedGenerator{replies: []llm.Reply{continueReply("ok")}}
	o, _, _, db := newTestOrchestrator(t, gen)

	// Poison the store so appending the user turn fails.
	if err := db.Exec("DROP TABLE turns").Error; err != nil {
		t.Fatalf("drop table: %v", err)
	}

	reply := o.Handle(context.Background(), testJID, "hello")
	if reply != apology {
		t.Errorf("reply = %q, want the apology", reply)
	}
}
