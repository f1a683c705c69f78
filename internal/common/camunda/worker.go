// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"loan-ledger/internal/common/config"
	commonerrors "loan-ledger/internal/common/errors"
	"loan-ledger/internal/common/logger"
	"loan-ledger/internal/common/metrics"
	"loan-ledger/internal/common/observability"
)

// JobHandler completes or fails its job itself and returns the error it
// failed with, so the wrapper can record the outcome.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job) error
}

// Registrar opens one job worker per task type and closes them on shutdown.
type Registrar struct {
	client  zbc.Client
	obs     *observability.Observability
	log     logger.Logger
	workers []worker.JobWorker
}

func NewRegistrar(client zbc.Client, obs *observability.Observability, log logger.Logger) *Registrar {
	return &Registrar{client: client, obs: obs, log: log}
}

// Register opens a worker for taskType unless it is disabled in config.
func (r *Registrar) Register(taskType string, wcfg config.WorkerConfig, handler JobHandler) {
	if !wcfg.Enabled {
		r.log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return
	}

	jobWorker := r.client.NewJobWorker().
		JobType(taskType).
		Handler(Instrument(taskType, handler, r.obs, r.log)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()
	r.workers = append(r.workers, jobWorker)

	r.log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
}

// Count is the number of open workers.
func (r *Registrar) Count() int {
	return len(r.workers)
}

// Close stops polling on every worker and waits for in-flight jobs.
func (r *Registrar) Close() {
	for _, w := range r.workers {
		w.Close()
		w.AwaitClose()
	}
	r.workers = nil
}

// Instrument adapts a JobHandler to the Zeebe handler signature and records
// job metrics and a span around each invocation.
func Instrument(taskType string, handler JobHandler, obs *observability.Observability, log logger.Logger) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		done := metrics.TrackJob(taskType)

		ctx := context.Background()
		var span trace.Span
		if obs != nil {
			ctx, span = obs.StartSpan(ctx, "job."+taskType,
				attribute.Int64("job.key", job.Key),
				attribute.Int64("process.instance_key", job.ProcessInstanceKey),
			)
		}

		status := "completed"
		errorCode := ""
		if err := handler.Handle(client, job); err != nil {
			status = "failed"
			errorCode = string(commonerrors.FromLedgerError(err).Code)
			log.Debug("handler returned error", map[string]interface{}{
				"taskType":  taskType,
				"jobKey":    job.Key,
				"errorCode": errorCode,
			})
		}

		done(errorCode)
		if obs != nil {
			obs.RecordJobProcessed(ctx, taskType, status)
			obs.RecordJobDuration(ctx, taskType, time.Since(start), status)
			span.End()
		}
	}
}
