package llm

import (
	"context"

	"go.uber.org/zap"

	"github.com/avendano/forecourt/internal/retrieval"
)

// generatorFallback is returned when the completion call or parse fails.
// The failure is logged and swallowed: the caller always gets a usable reply.
const generatorFallback = "I'm having trouble processing your request. How else can I help you?"

// locationFallback is the equivalent for shared-location messages.
const locationFallback = "I received your location, but I'm having trouble processing it right now. Could you please tell me what kind of assistance you need?"

// Generator formats prompts, submits them through a Responder, and parses
// the structured reply.
type Generator struct {
	responder Responder
	log       *zap.Logger
}

// NewGenerator creates a Generator over the given Responder.
func NewGenerator(r Responder, logger *zap.Logger) *Generator {
	return &Generator{responder: r, log: logger.Named("generator")}
}

// Generate produces a decision/category/message triple for the new query
// given the conversation history and retrieved documents. It never fails:
// endpoint errors yield the default continue reply with a generic apology.
func (g *Generator) Generate(ctx context.Context, history []Exchange, query string, docs []retrieval.Document) Reply {
	msgs := BuildMessages(history, query, docs)

	raw, err := g.responder.Respond(ctx, msgs)
	if err != nil {
		g.log.Warn("completion failed, using fallback reply", zap.Error(err))
		return Reply{
			Decision: DecisionContinue,
			Category: CategoryNone,
			Message:  generatorFallback,
		}
	}
	return ParseReply(raw)
}

// AnalyzeLocation classifies a shared location into a service type and a
// user-facing message. Like Generate, it never fails.
func (g *Generator) AnalyzeLocation(ctx context.Context, loc Location) LocationReply {
	raw, err := g.responder.Respond(ctx, buildLocationMessages(loc))
	if err != nil {
		g.log.Warn("location analysis failed, using fallback reply", zap.Error(err))
		return LocationReply{
			ServiceType: ServiceTypeUnknown,
			Message:     locationFallback,
		}
	}
	return ParseLocationReply(raw)
}
