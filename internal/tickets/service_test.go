package tickets

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/avendano/forecourt/internal/models"
	"github.com/avendano/forecourt/internal/store"
)

// recordingDeliverer captures outbound notifications.
type recordingDeliverer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (d *recordingDeliverer) Deliver(ctx context.Context, jid, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, jid+": "+text)
	return nil
}

func newTestService(t *testing.T) (*Service, *store.TicketStore, *store.ConversationStore, *recordingDeliverer) {
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

	tickets := store.NewTicketStore(db)
	convs := store.NewConversationStore(db)
	out := &recordingDeliverer{}
	return NewService(tickets, convs, out, zap.NewNop()), tickets, convs, out
}

func createTicket(t *testing.T, tickets *store.TicketStore, convs *store.ConversationStore) *models.Ticket {
	t.Helper()
	conv, err := convs.Create("4915112345@s.whatsapp.net")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	ticket := &models.Ticket{
		JID:            conv.JID,
		ConversationID: conv.ID,
		Category:       models.CategoryOther,
		Summary:        "Customer needs help with: something...",
	}
	if err := tickets.Create(ticket); err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func TestUpdate_ResolveNotifiesOnce(t *testing.T) {
	svc, tickets, convs, out := newTestService(t)
	ticket := createTicket(t, tickets, convs)

	got, err := svc.Update(context.Background(), ticket.ID, Update{Status: models.TicketResolved})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Status != models.TicketResolved {
		t.Errorf("status = %q, want resolved", got.Status)
	}
	if got.ResolvedAt == nil {
		t.Error("resolvedAt should be stamped")
	}
	if len(out.sent) != 1 {
		t.Fatalf("notifications = %d, want 1", len(out.sent))
	}

	firstResolvedAt := *got.ResolvedAt

	// Resolving again must not re-notify or move the timestamp.
	again, err := svc.Update(context.Background(), ticket.ID, Update{Status: models.TicketResolved})
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if len(out.sent) != 1 {
		t.Errorf("notifications = %d after repeat resolve, want 1", len(out.sent))
	}
	if again.ResolvedAt == nil || !again.ResolvedAt.Equal(firstResolvedAt) {
		t.Error("resolvedAt must not change on repeat resolve")
	}
}

func TestUpdate_InvalidStatusRejected(t *testing.T) {
	svc, tickets, convs, _ := newTestService(t)
	ticket := createTicket(t, tickets, convs)

	if _, err := svc.Update(context.Background(), ticket.ID, Update{Status: "closed"}); err == nil {
		t.Fatal("expected error for unknown status")
	}
	if _, err := svc.Update(context.Background(), ticket.ID, Update{Priority: "asap"}); err == nil {
		t.Fatal("expected error for unknown priority")
	}
}

func TestUpdate_NoteAndAssignee(t *testing.T) {
	svc, tickets, convs, _ := newTestService(t)
	ticket := createTicket(t, tickets, convs)

	assignee := "mira"
	got, err := svc.Update(context.Background(), ticket.ID, Update{
		Assignee: &assignee,
		Note:     "called the customer",
		Author:   "mira",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Assignee != "mira" {
		t.Errorf("assignee = %q", got.Assignee)
	}
	if len(got.Notes) != 1 || got.Notes[0].Content != "called the customer" {
		t.Errorf("notes = %+v", got.Notes)
	}
}

func TestUpdate_UnknownTicket(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.Update(context.Background(), "missing", Update{Status: models.TicketResolved})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRespond_DeliversAndAdvancesStatus(t *testing.T) {
	svc, tickets, convs, out := newTestService(t)
	ticket := createTicket(t, tickets, convs)

	got, err := svc.Respond(context.Background(), ticket.ID, "We will call you shortly.", "mira")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if got.Status != models.TicketInProgress {
		t.Errorf("status = %q, want in-progress", got.Status)
	}
	if len(out.sent) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(out.sent))
	}
	if len(got.Notes) != 1 || got.Notes[0].Content != "Response sent: We will call you shortly." {
		t.Errorf("notes = %+v", got.Notes)
	}

	// The response lands in the conversation as an operator turn.
	turns, err := convs.Turns(ticket.ConversationID)
	if err != nil {
		t.Fatalf("turns: %v", err)
	}
	if len(turns) != 1 || turns[0].Role != models.RoleOperator {
		t.Fatalf("turns = %+v, want one operator turn", turns)
	}
}

func TestRespond_DeliveryFailureAddsNothing(t *testing.T) {
	svc, tickets, convs, out := newTestService(t)
	ticket := createTicket(t, tickets, convs)
	out.err = errors.New("socket closed")

	if _, err := svc.Respond(context.Background(), ticket.ID, "hello", ""); err == nil {
		t.Fatal("expected delivery error to propagate")
	}

	got, _ := tickets.Get(ticket.ID)
	if got.Status != models.TicketOpen {
		t.Errorf("status = %q, failed response must not advance it", got.Status)
	}
	if len(got.Notes) != 0 {
		t.Errorf("notes = %d, failed response must not be recorded", len(got.Notes))
	}
}

func TestRespond_EmptyMessageRejected(t *testing.T) {
	svc, tickets, convs, _ := newTestService(t)
	ticket := createTicket(t, tickets, convs)

	if _, err := svc.Respond(context.Background(), ticket.ID, "", "mira"); err == nil {
		t.Fatal("expected error for empty message")
	}
}
