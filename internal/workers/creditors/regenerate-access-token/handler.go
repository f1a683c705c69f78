// internal/workers/creditors/regenerate-access-token/handler.go
package regenerateaccesstoken

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"loan-ledger/internal/common/camunda"
	commonerrors "loan-ledger/internal/common/errors"
	"loan-ledger/internal/common/logger"
	"loan-ledger/internal/common/validation"
	"loan-ledger/internal/models"
)

const (
	TaskType = "regenerate-access-token"
)

type Service interface {
	RegenerateAccessToken(ctx context.Context, creditorID string) (*models.Creditor, error)
}

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

	var input Input
	if err := validation.Decode(job.Variables, InputSchema, &input); err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return err
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return err
	}

	if err := camunda.CompleteJob(ctx, client, job, output); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{"error": err.Error()})
		return err
	}
	// the token itself stays out of the logs
	h.logger.Info("job completed", map[string]interface{}{"jobKey": job.Key, "creditorId": output.CreditorID})
	return nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	creditor, err := h.service.RegenerateAccessToken(ctx, input.CreditorID)
	if err != nil {
		return nil, err
	}
	return &Output{CreditorID: creditor.ID, AccessToken: creditor.AccessToken}, nil
}
