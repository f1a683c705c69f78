// internal/workers/interest/accrue-interest/handler.go
package accrueinterest

import (
	"context"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"loan-ledger/internal/common/camunda"
	commonerrors "loan-ledger/internal/common/errors"
	"loan-ledger/internal/common/logger"
	"loan-ledger/internal/ledger"
)

const (
	TaskType = "accrue-interest"
)

type Service interface {
	RunDailySweep(ctx context.Context) (*ledger.SweepResult, error)
}

// Handler runs the daily sweep from a timer-started process. It takes no
// input variables.
type Handler struct {
	config       *Config
	service      Service
	errorHandler *commonerrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, service Service, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		service:      service,
		errorHandler: commonerrors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return err
	}

	if err := camunda.CompleteJob(ctx, client, job, output); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{"error": err.Error()})
		return err
	}
	h.logger.Info("job completed", map[string]interface{}{"jobKey": job.Key, "loansAccrued": output.LoansAccrued})
	return nil
}

// Execute runs the sweep. Loans that failed individually are reported in the
// output and do not fail the job; only a sweep that could not start does.
func (h *Handler) Execute(ctx context.Context) (*Output, error) {
	result, err := h.service.RunDailySweep(ctx)
	if result == nil {
		if err == nil {
			err = fmt.Errorf("sweep returned no result")
		}
		return nil, commonerrors.NewInterestSweepFailedError(err)
	}
	if err != nil {
		h.logger.Warn("sweep finished with failed loans", map[string]interface{}{
			"loansFailed": result.LoansFailed,
			"error":       err.Error(),
		})
	}

	return &Output{
		Date:         result.Date.String(),
		LoansAccrued: result.LoansAccrued,
		LoansSkipped: result.LoansSkipped,
		LoansFailed:  result.LoansFailed,
		Message:      fmt.Sprintf("Interest accrued for %d loan(s)", result.LoansAccrued),
	}, nil
}
