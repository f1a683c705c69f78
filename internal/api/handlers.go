package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"loan-ledger/internal/quotes"
)

func (s *Server) runInterestSweep(c *gin.Context) {
	result, err := s.deps.Ledger.RunDailySweep(c.Request.Context())
	if result == nil {
		if err == nil {
			err = errors.New("sweep returned no result")
		}
		s.log.WithError(err).Error("interest sweep failed", nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.log.Warn("interest sweep finished with failed loans", map[string]interface{}{
			"loansFailed": result.LoansFailed,
			"error":       err.Error(),
		})
	}

	if result.LoansAccrued+result.LoansSkipped+result.LoansFailed == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "No active loans with interest", "date": result.Date.String(), "accrued": 0})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Interest accrued for %d loan(s)", result.LoansAccrued),
		"date":    result.Date.String(),
		"accrued": result.LoansAccrued,
		"skipped": result.LoansSkipped,
		"failed":  result.LoansFailed,
	})
}

func (s *Server) getLoan(c *gin.Context) {
	summary, err := s.deps.Ledger.LoanSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) deletePayment(c *gin.Context) {
	if err := s.deps.Ledger.DeletePayment(c.Request.Context(), c.Param("id"), c.Param("paymentId")); err != nil {
		s.writeLedgerError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getPortal(c *gin.Context) {
	view, err := s.deps.Ledger.PortalSummary(c.Request.Context(), c.Param("token"))
	if err != nil {
		s.writeLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) getTokenPrice(c *gin.Context) {
	quote, err := s.deps.Quotes.Price(c.Request.Context(), c.Query("slug"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, quote)
	case errors.Is(err, quotes.ErrMissingSlug):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing slug parameter"})
	case errors.Is(err, quotes.ErrNotConfigured):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Quote API key not configured"})
	case errors.Is(err, quotes.ErrTokenNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Token not found"})
	case errors.Is(err, quotes.ErrUpstream):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch token price"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch token price"})
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// ready runs every dependency check with a shared deadline.
func (s *Server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.deps.Checks))
	status := http.StatusOK
	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}
