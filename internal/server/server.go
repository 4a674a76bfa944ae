package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/betbot/derivaoption/internal/domain"
	"github.com/betbot/derivaoption/internal/engine"
	"github.com/betbot/derivaoption/internal/indexer"
	"github.com/betbot/derivaoption/internal/ledger"
	"github.com/betbot/derivaoption/internal/oracle"
	"github.com/betbot/derivaoption/internal/registry"
	"github.com/betbot/derivaoption/pkg/logger"
)

// Config wires the HTTP surface to the engine stack.
type Config struct {
	Engine   *engine.Engine
	Registry *registry.TokenRegistry
	Ledger   *ledger.InMemoryLedger
	Vault    *ledger.NativeVault
	Oracle   *oracle.RoundStore
	Adapter  *oracle.Adapter
	Indexer  *indexer.Indexer
	// SnapshotFn is invoked by POST /api/admin/snapshot (optional).
	SnapshotFn func() error
}

// Server exposes the engine's external interface over HTTP.
//
// Caller identity comes from the X-Caller-Address header: the dApp front-end
// owns signing and session handling, this service trusts the gateway.
type Server struct {
	cfg Config
}

// New validates the wiring and builds a server.
func New(cfg Config) (*Server, error) {
	if cfg.Engine == nil || cfg.Registry == nil || cfg.Ledger == nil ||
		cfg.Vault == nil || cfg.Oracle == nil || cfg.Indexer == nil {
		return nil, errors.New("server: engine/registry/ledger/vault/oracle/indexer are required")
	}
	return &Server{cfg: cfg}, nil
}

// Router builds the gin handler tree.
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestID())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")

	tokens := api.Group("/tokens")
	tokens.GET("/", s.handleTokensList)
	tokens.POST("/activate", s.handleTokenActivate)
	tokens.GET("/:address/activated", s.handleTokenActivated)

	faucet := api.Group("/faucet")
	faucet.POST("/mint", s.handleFaucetMint)
	faucet.POST("/deposit", s.handleFaucetDeposit)

	ldg := api.Group("/ledger")
	ldg.POST("/approve", s.handleLedgerApprove)
	ldg.GET("/balance", s.handleLedgerBalance)
	ldg.GET("/allowance", s.handleLedgerAllowance)

	offers := api.Group("/offers")
	offers.POST("/", s.handleOfferCreate)
	offers.GET("/last-id", s.handleOfferLastID)
	offers.GET("/:id", s.handleOfferGet)
	offers.DELETE("/:id", s.handleOfferCancel)

	api.GET("/orderbook", s.handleOrderbook)
	api.GET("/buyable", s.handleBuyable)
	api.GET("/positions", s.handlePositions)

	purchases := api.Group("/purchases")
	purchases.POST("/by-offer", s.handleBuyByOffer)
	purchases.POST("/by-terms", s.handleBuyByTerms)
	purchases.POST("/exercise-batch", s.handleExerciseBatch)
	purchases.GET("/last-id", s.handlePurchaseLastID)
	purchases.GET("/:id", s.handlePurchaseGet)
	purchases.POST("/:id/approve", s.handleApprove)
	purchases.GET("/:id/approval", s.handleApprovalGet)
	purchases.POST("/:id/transfer", s.handleTransfer)
	purchases.POST("/:id/transfer-from", s.handleTransferFrom)
	purchases.POST("/:id/exercise", s.handleExercise)
	purchases.POST("/:id/reclaim", s.handleReclaim)

	native := api.Group("/native")
	native.POST("/options", s.handleNativeWrite)
	native.GET("/options/last-id", s.handleNativeLastID)
	native.GET("/options/:id", s.handleNativeGet)
	native.POST("/options/:id/buy", s.handleNativeBuy)
	native.POST("/options/:id/exercise", s.handleNativeExercise)
	native.POST("/options/:id/expire-worthless", s.handleNativeExpireWorthless)
	native.POST("/options/:id/retrieve", s.handleNativeRetrieve)
	native.GET("/positions", s.handleNativePosition)

	orc := api.Group("/oracle")
	orc.GET("/latest", s.handleOracleLatest)
	orc.POST("/answer", s.handleOracleAnswer)

	audit := api.Group("/audit")
	audit.GET("/recent", s.handleAuditRecent)
	audit.GET("/by-name/:name", s.handleAuditByName)

	api.GET("/clock", s.handleClock)
	api.POST("/admin/snapshot", s.handleSnapshot)

	return r
}

// requestID tags every request with a uuid and logs the outcome.
func (s *Server) requestID() gin.HandlerFunc {
	log := logger.WithComponent("http")
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Header("X-Request-ID", id)
		c.Next()
		if c.Writer.Status() >= 500 {
			log.Warnf("req=%s %s %s -> %d", id, c.Request.Method, c.Request.URL.Path, c.Writer.Status())
		}
	}
}

// errStatus maps the engine error taxonomy onto HTTP status codes.
func errStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrReentrantCall):
		return http.StatusConflict
	case errors.Is(err, domain.ErrAlreadyExercised),
		errors.Is(err, domain.ErrAlreadyBought),
		errors.Is(err, domain.ErrAlreadyConsumed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStalePrice),
		errors.Is(err, domain.ErrTransferFailed):
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

func writeErr(c *gin.Context, err error) {
	c.JSON(errStatus(err), gin.H{"error": err.Error()})
}
