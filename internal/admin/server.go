// Package admin exposes the operator REST API: contacts and allow-list
// management, conversation browsing, ticket handling, outbound messaging,
// and corpus growth.
package admin

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/avendano/forecourt/internal/cache"
	"github.com/avendano/forecourt/internal/config"
	"github.com/avendano/forecourt/internal/gateway"
	"github.com/avendano/forecourt/internal/retrieval"
	"github.com/avendano/forecourt/internal/store"
	"github.com/avendano/forecourt/internal/tickets"
)

// Messenger is the outbound side of the gateway as the API needs it.
// Satisfied by gateway.Daemon.
type Messenger interface {
	Deliver(ctx context.Context, jid, text string) error
	Broadcast(ctx context.Context, jids []string, text string) []gateway.BroadcastResult
	BroadcastFiltered(ctx context.Context, f store.BroadcastFilter, text string) ([]gateway.BroadcastResult, error)
}

// Server holds the API's collaborators.
type Server struct {
	cfg       *config.Config
	db        *gorm.DB
	contacts  *store.ContactStore
	convs     *store.ConversationStore
	ticketSt  *store.TicketStore
	ticketSvc *tickets.Service
	corpus    *retrieval.Corpus
	messenger Messenger
	cache     *cache.Cache
	log       *zap.Logger
}

// ServerOpts holds parameters for creating a Server. Messenger and Cache
// are optional; messaging endpoints fail cleanly without a Messenger.
type ServerOpts struct {
	Config        *config.Config
	DB            *gorm.DB
	Contacts      *store.ContactStore
	Conversations *store.ConversationStore
	Tickets       *store.TicketStore
	TicketService *tickets.Service
	Corpus        *retrieval.Corpus
	Messenger     Messenger
	Cache         *cache.Cache
	Logger        *zap.Logger
}

// NewServer creates a Server with the given options.
func NewServer(opts ServerOpts) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("admin: config is required")
	}
	if opts.DB == nil {
		return nil, fmt.Errorf("admin: db is required")
	}
	if opts.Contacts == nil || opts.Conversations == nil || opts.Tickets == nil {
		return nil, fmt.Errorf("admin: stores are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:       opts.Config,
		db:        opts.DB,
		contacts:  opts.Contacts,
		convs:     opts.Conversations,
		ticketSt:  opts.Tickets,
		ticketSvc: opts.TicketService,
		corpus:    opts.Corpus,
		messenger: opts.Messenger,
		cache:     opts.Cache,
		log:       logger.Named("admin"),
	}, nil
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/api/auth/login", s.handleLogin)

	api := router.Group("/api", s.authRequired())
	{
		api.GET("/contacts", s.handleContactList)
		api.PUT("/contacts/:jid", s.handleContactUpdate)
		api.DELETE("/contacts/:jid", s.handleContactDelete)

		api.GET("/whitelist", s.handleWhitelistList)
		api.POST("/whitelist", s.handleWhitelistAdd)
		api.DELETE("/whitelist/:jid", s.handleWhitelistRemove)

		api.GET("/conversations", s.handleConversationList)
		api.GET("/conversations/:jid/history", s.handleConversationHistory)
		api.PUT("/conversations/:id/status", s.handleConversationStatus)

		api.GET("/tickets", s.handleTicketList)
		api.GET("/tickets/stats", s.handleTicketStats)
		api.GET("/tickets/:id", s.handleTicketGet)
		api.PUT("/tickets/:id", s.handleTicketUpdate)
		api.POST("/tickets/:id/respond", s.handleTicketRespond)

		api.POST("/messages/send", s.handleSend)
		api.POST("/messages/broadcast", s.handleBroadcast)

		api.POST("/documents", s.handleDocumentAdd)
	}

	return router
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	s.log.Info("admin api listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("admin: %w", err)
	}
	return nil
}

// --- Response helpers ---

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"success": false, "error": msg})
}
