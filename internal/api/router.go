// Package api exposes the ledger over HTTP: the cron sweep trigger, loan and
// portal reads, token prices and the operational endpoints.
package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"loan-ledger/internal/common/logger"
	"loan-ledger/internal/ledger"
	"loan-ledger/internal/models"
	"loan-ledger/internal/quotes"
)

const serviceName = "loan-ledger"

type LedgerService interface {
	RunDailySweep(ctx context.Context) (*ledger.SweepResult, error)
	LoanSummary(ctx context.Context, loanID string) (*models.LoanSummary, error)
	DeletePayment(ctx context.Context, loanID, paymentID string) error
	PortalSummary(ctx context.Context, accessToken string) (*ledger.PortalView, error)
}

type QuoteService interface {
	Price(ctx context.Context, slug string) (*quotes.Quote, error)
}

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

type Deps struct {
	Ledger     LedgerService
	Quotes     QuoteService
	CronSecret string
	// Checks are run by /ready, keyed by dependency name.
	Checks map[string]Check
}

type Server struct {
	deps Deps
	log  logger.Logger
}

func NewServer(deps Deps, log logger.Logger) *Server {
	return &Server{deps: deps, log: log.WithFields(map[string]interface{}{"component": "api"})}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(requestLogger(s.log))

	r.GET("/health", s.health)
	r.GET("/ready", s.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		cron := api.Group("/cron", bearerAuth(s.deps.CronSecret))
		cron.GET("/interest", s.runInterestSweep)
		cron.POST("/interest", s.runInterestSweep)

		api.GET("/loans/:id", s.getLoan)
		api.DELETE("/loans/:id/payments/:paymentId", s.deletePayment)
		api.GET("/portal/:token", s.getPortal)
		api.GET("/token-price", s.getTokenPrice)
	}

	return r
}
