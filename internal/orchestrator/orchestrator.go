// Package orchestrator drives the conversation state machine: it threads
// inbound messages through retrieval and generation, persists turns, and
// acts on the generator's decision.
package orchestrator

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/avendano/forecourt/internal/llm"
	"github.com/avendano/forecourt/internal/models"
	"github.com/avendano/forecourt/internal/retrieval"
	"github.com/avendano/forecourt/internal/store"
)

// apology is the reply when message handling fails outright. The customer
// always gets an answer even when the pipeline does not.
const apology = "I'm having trouble processing your request right now. Please try again in a moment or ask to speak with a human agent if this continues."

// summaryLimit caps how much of the triggering message lands in a ticket
// summary.
const summaryLimit = 100

// Generator produces structured replies. Satisfied by llm.Generator.
type Generator interface {
	Generate(ctx context.Context, history []llm.Exchange, query string, docs []retrieval.Document) llm.Reply
	AnalyzeLocation(ctx context.Context, loc llm.Location) llm.LocationReply
}

// Orchestrator owns the per-conversation message pipeline.
type Orchestrator struct {
	convs   *store.ConversationStore
	tickets *store.TicketStore
	corpus  *retrieval.Corpus
	gen     Generator
	log     *zap.Logger

	historyLimit int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an Orchestrator. historyLimit bounds how many prior turns are
// fed to the generator; zero or negative means unbounded.
func New(convs *store.ConversationStore, tickets *store.TicketStore, corpus *retrieval.Corpus, gen Generator, historyLimit int, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		convs:        convs,
		tickets:      tickets,
		corpus:       corpus,
		gen:          gen,
		log:          logger.Named("orchestrator"),
		historyLimit: historyLimit,
		locks:        make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing message handling for one JID.
// Messages from different counterparties proceed in parallel.
func (o *Orchestrator) lockFor(jid string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.locks[jid]
	if !ok {
		l = &sync.Mutex{}
		o.locks[jid] = l
	}
	return l
}

// Handle processes one inbound text message and returns the reply to send.
// It never fails: pipeline errors are logged and answered with an apology.
func (o *Orchestrator) Handle(ctx context.Context, jid, text string) string {
	l := o.lockFor(jid)
	l.Lock()
	defer l.Unlock()

	reply, err := o.handle(ctx, jid, text)
	if err != nil {
		o.log.Error("message handling failed",
			zap.String("jid", jid),
			zap.Error(err))
		return apology
	}
	return reply
}

func (o *Orchestrator) handle(ctx context.Context, jid, text string) (string, error) {
	conv, err := o.convs.FindOrCreateCurrent(jid)
	if err != nil {
		return "", err
	}

	// History is captured before the new message is appended so the query
	// appears exactly once in the prompt.
	history, err := o.convs.History(jid, o.historyLimit)
	if err != nil {
		return "", err
	}

	if _, err := o.convs.AppendTurn(conv, models.RoleUser, text, nil); err != nil {
		return "", err
	}

	docs := o.corpus.Retrieve(text)
	reply := o.gen.Generate(ctx, exchanges(history), text, docs)

	annotations := map[string]interface{}{"decision": string(reply.Decision)}
	if reply.Category != llm.CategoryNone {
		annotations["category"] = reply.Category
	}
	if _, err := o.convs.AppendTurn(conv, models.RoleBot, reply.Message, annotations); err != nil {
		return "", err
	}

	switch reply.Decision {
	case llm.DecisionEnd:
		if err := o.transition(conv, models.ConversationEnded); err != nil {
			return "", err
		}
		o.log.Info("conversation ended", zap.String("jid", jid), zap.Uint("conversation", conv.ID))

	case llm.DecisionEscalate:
		if err := o.escalate(conv, jid, text, reply.Category); err != nil {
			return "", err
		}
	}

	return reply.Message, nil
}

// transition updates the conversation status, retrying once after a version
// conflict with a fresh read.
func (o *Orchestrator) transition(conv *models.Conversation, status string) error {
	err := o.convs.UpdateStatus(conv, status)
	if !errors.Is(err, store.ErrConflict) {
		return err
	}
	if err := o.convs.Reload(conv); err != nil {
		return err
	}
	return o.convs.UpdateStatus(conv, status)
}

// escalate marks the conversation escalated and opens a ticket. A repeat
// escalation of a conversation with an unresolved ticket is a no-op: the
// customer repeating themselves must not fan out duplicate tickets.
func (o *Orchestrator) escalate(conv *models.Conversation, jid, trigger, category string) error {
	if conv.Status == models.ConversationEscalated {
		existing, err := o.tickets.Unresolved(conv.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			o.log.Debug("escalation already ticketed",
				zap.String("jid", jid),
				zap.String("ticket", existing.ID))
			return nil
		}
	} else {
		if err := o.transition(conv, models.ConversationEscalated); err != nil {
			return err
		}
	}

	if category == llm.CategoryNone || category == "" {
		category = models.CategoryOther
	}

	ticket := &models.Ticket{
		JID:            jid,
		ConversationID: conv.ID,
		Category:       category,
		Status:         models.TicketOpen,
		Priority:       priorityFor(category),
		Summary:        summarize(trigger),
	}
	if err := o.tickets.Create(ticket); err != nil {
		return err
	}

	o.log.Info("conversation escalated",
		zap.String("jid", jid),
		zap.Uint("conversation", conv.ID),
		zap.String("ticket", ticket.ID),
		zap.String("category", category),
		zap.String("priority", ticket.Priority))
	return nil
}

// priorityFor maps a ticket category to its starting priority. Roadside
// emergencies jump the queue.
func priorityFor(category string) string {
	if category == models.CategoryRoadside {
		return models.PriorityUrgent
	}
	return models.PriorityMedium
}

// summarize builds a ticket summary from the message that triggered the
// escalation. Truncation counts runes so a multi-byte character is never
// split.
func summarize(trigger string) string {
	if r := []rune(trigger); len(r) > summaryLimit {
		trigger = string(r[:summaryLimit])
	}
	return "Customer needs help with: " + trigger + "..."
}

// HandleLocation processes a shared-location message: the share is recorded
// as a user turn, classified into a service type, and answered. Like Handle
// it never fails outward.
func (o *Orchestrator) HandleLocation(ctx context.Context, jid string, loc llm.Location) string {
	l := o.lockFor(jid)
	l.Lock()
	defer l.Unlock()

	reply, err := o.handleLocation(ctx, jid, loc)
	if err != nil {
		o.log.Error("location handling failed",
			zap.String("jid", jid),
			zap.Error(err))
		return apology
	}
	return reply
}

func (o *Orchestrator) handleLocation(ctx context.Context, jid string, loc llm.Location) (string, error) {
	conv, err := o.convs.FindOrCreateCurrent(jid)
	if err != nil {
		return "", err
	}

	userAnn := map[string]interface{}{
		"latitude":  loc.Latitude,
		"longitude": loc.Longitude,
	}
	if loc.Name != "" {
		userAnn["name"] = loc.Name
	}
	if loc.Address != "" {
		userAnn["address"] = loc.Address
	}
	if _, err := o.convs.AppendTurn(conv, models.RoleUser, "Shared location: "+loc.Describe(), userAnn); err != nil {
		return "", err
	}

	reply := o.gen.AnalyzeLocation(ctx, loc)

	botAnn := map[string]interface{}{"serviceType": reply.ServiceType}
	if _, err := o.convs.AppendTurn(conv, models.RoleBot, reply.Message, botAnn); err != nil {
		return "", err
	}

	o.log.Info("location classified",
		zap.String("jid", jid),
		zap.String("serviceType", reply.ServiceType))
	return reply.Message, nil
}

// exchanges converts stored turns to prompt exchanges.
func exchanges(turns []models.Turn) []llm.Exchange {
	out := make([]llm.Exchange, len(turns))
	for i, t := range turns {
		out[i] = llm.Exchange{Role: t.Role, Content: t.Content}
	}
	return out
}
