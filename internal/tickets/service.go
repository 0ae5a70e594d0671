// Package tickets implements the escalation-ticket lifecycle: operator
// updates, responses delivered back to the customer, and the resolution
// notification.
package tickets

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/avendano/forecourt/internal/models"
	"github.com/avendano/forecourt/internal/store"
)

// resolutionNotice is sent to the customer when their ticket is resolved.
const resolutionNotice = "Your inquiry has been resolved by our team. Thank you for your patience. If you need further assistance, please let us know."

// defaultAuthor attributes notes and responses when no operator name is
// supplied.
const defaultAuthor = "Admin"

// Deliverer sends text to a counterparty. Satisfied by gateway.Daemon.
type Deliverer interface {
	Deliver(ctx context.Context, jid, text string) error
}

// Service owns ticket mutations that have side effects beyond the row.
type Service struct {
	tickets *store.TicketStore
	convs   *store.ConversationStore
	out     Deliverer
	log     *zap.Logger
}

// NewService creates a Service. out may be nil when no gateway is running;
// notifications are then skipped with a log entry.
func NewService(tickets *store.TicketStore, convs *store.ConversationStore, out Deliverer, logger *zap.Logger) *Service {
	return &Service{
		tickets: tickets,
		convs:   convs,
		out:     out,
		log:     logger.Named("tickets"),
	}
}

// Update describes a partial ticket update; empty fields are left unchanged.
type Update struct {
	Status   string
	Priority string
	Assignee *string
	Note     string
	Author   string
}

// Validate rejects unknown status and priority values.
func (u Update) Validate() error {
	if u.Status != "" && !models.ValidTicketStatus(u.Status) {
		return fmt.Errorf("tickets: invalid status %q", u.Status)
	}
	if u.Priority != "" && !models.ValidPriority(u.Priority) {
		return fmt.Errorf("tickets: invalid priority %q", u.Priority)
	}
	return nil
}

// Update applies upd to the ticket. Resolving a ticket stamps ResolvedAt
// and notifies the customer exactly once: resolving an already-resolved
// ticket changes nothing and sends nothing.
func (s *Service) Update(ctx context.Context, id string, upd Update) (*models.Ticket, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	ticket, err := s.tickets.Get(id)
	if err != nil {
		return nil, err
	}

	freshlyResolved := upd.Status == models.TicketResolved && ticket.Status != models.TicketResolved

	if upd.Status != "" {
		ticket.Status = upd.Status
	}
	if upd.Priority != "" {
		ticket.Priority = upd.Priority
	}
	if upd.Assignee != nil {
		ticket.Assignee = *upd.Assignee
	}
	if freshlyResolved {
		now := time.Now()
		ticket.ResolvedAt = &now
	}

	if err := s.tickets.Save(ticket); err != nil {
		return nil, err
	}

	if upd.Note != "" {
		author := upd.Author
		if author == "" {
			author = defaultAuthor
		}
		if _, err := s.tickets.AddNote(ticket.ID, upd.Note, author); err != nil {
			return nil, err
		}
	}

	if freshlyResolved {
		s.notify(ctx, ticket.JID, resolutionNotice)
		s.log.Info("ticket resolved",
			zap.String("ticket", ticket.ID),
			zap.String("jid", ticket.JID))
	}

	return s.tickets.Get(ticket.ID)
}

// Respond delivers an operator response to the customer, records it as a
// note and as an operator turn on the conversation, and advances an open
// ticket to in-progress.
func (s *Service) Respond(ctx context.Context, id, message, author string) (*models.Ticket, error) {
	if message == "" {
		return nil, fmt.Errorf("tickets: message is required")
	}
	if author == "" {
		author = defaultAuthor
	}

	ticket, err := s.tickets.Get(id)
	if err != nil {
		return nil, err
	}

	if s.out == nil {
		return nil, fmt.Errorf("tickets: no delivery channel configured")
	}
	if err := s.out.Deliver(ctx, ticket.JID, message); err != nil {
		return nil, fmt.Errorf("tickets: respond on ticket %s: %w", id, err)
	}

	if _, err := s.tickets.AddNote(ticket.ID, "Response sent: "+message, author); err != nil {
		return nil, err
	}

	if ticket.Status == models.TicketOpen {
		ticket.Status = models.TicketInProgress
		if err := s.tickets.Save(ticket); err != nil {
			return nil, err
		}
	}

	// The response becomes part of the conversation so later prompts see it.
	conv, err := s.convs.Get(ticket.ConversationID)
	if err == nil {
		if _, err := s.convs.AppendTurn(conv, models.RoleOperator, message,
			map[string]interface{}{"fromOperator": true, "ticket": ticket.ID}); err != nil {
			s.log.Warn("record operator turn", zap.String("ticket", ticket.ID), zap.Error(err))
		}
	} else {
		s.log.Warn("load conversation for operator turn",
			zap.String("ticket", ticket.ID), zap.Error(err))
	}

	return s.tickets.Get(ticket.ID)
}

// notify sends text to jid, logging rather than failing the lifecycle
// operation when delivery is unavailable.
func (s *Service) notify(ctx context.Context, jid, text string) {
	if s.out == nil {
		s.log.Warn("no delivery channel, notification skipped", zap.String("jid", jid))
		return
	}
	if err := s.out.Deliver(ctx, jid, text); err != nil {
		s.log.Error("notification failed", zap.String("jid", jid), zap.Error(err))
	}
}
