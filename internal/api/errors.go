package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	commonerrors "loan-ledger/internal/common/errors"
)

func statusFor(code commonerrors.ErrorCode) int {
	switch code {
	case commonerrors.ErrCodeInvalidLoanRequest:
		return http.StatusBadRequest
	case commonerrors.ErrCodeLoanNotFound,
		commonerrors.ErrCodeCreditorNotFound,
		commonerrors.ErrCodeResourceNotFound:
		return http.StatusNotFound
	case commonerrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeLedgerError maps a service error onto a status and a JSON body. Storage
// details stay in the logs.
func (s *Server) writeLedgerError(c *gin.Context, err error) {
	stdErr := commonerrors.FromLedgerError(err)
	status := statusFor(stdErr.Code)

	msg := stdErr.Message
	if status == http.StatusBadRequest {
		msg = stdErr.Details
	}
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).Error("ledger request failed", map[string]interface{}{
			"route": c.FullPath(),
			"code":  string(stdErr.Code),
		})
	}
	c.JSON(status, gin.H{"error": msg, "code": stdErr.Code})
}
