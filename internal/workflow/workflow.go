// Package workflow composes submit, poll and download into one blocking run.
package workflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"jason/internal/logger"
	"jason/pkg/api"
	"jason/pkg/jason"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "jason/internal/workflow"

// DefaultPollInterval is used when Config.PollInterval is not set.
const DefaultPollInterval = 3 * time.Second

// ProcessAPI is the subset of the API client the orchestrator needs.
type ProcessAPI interface {
	Submit(ctx context.Context, req jason.SubmitRequest) (*api.SubmitResponse, int, error)
	GetStatus(ctx context.Context, processID string) (*api.ProcessStatus, int, error)
	Download(ctx context.Context, processID string) (string, error)
	ListProcesses(ctx context.Context) ([]api.ProcessSummary, error)
}

// ResultSink publishes a downloaded archive somewhere else and returns a link to it.
type ResultSink interface {
	Publish(ctx context.Context, processID, localPath string) (string, error)
}

// State is the outcome of a Run.
type State string

const (
	StateNotSubmitted State = "NOT_SUBMITTED"
	StateFinished     State = "FINISHED"
	StateFailed       State = "FAILED"
	// StateTimedOut is client-only; the remote process may still finish.
	StateTimedOut State = "TIMED_OUT"
)

// Outcome describes how a Run ended.
type Outcome struct {
	State      State
	ProcessID  string
	LastStatus string
	Polls      int
	// Path is the local result archive, set when State is StateFinished
	Path string
	// Link is set when a ResultSink published the archive
	Link string
}

// Config holds the orchestrator settings.
type Config struct {
	PollInterval time.Duration
	Timeout      time.Duration // 0 waits until a terminal state or ctx cancellation
	Sink         ResultSink
	Logger       *slog.Logger
}

// Orchestrator drives a process through its remote lifecycle.
type Orchestrator struct {
	api    ProcessAPI
	config Config
	log    *slog.Logger

	tracer   trace.Tracer
	polls    metric.Int64Counter
	outcomes metric.Int64Counter
}

// New creates an orchestrator on top of a ProcessAPI such as *jason.Client.
func New(processAPI ProcessAPI, config Config) *Orchestrator {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.Timeout < 0 {
		config.Timeout = 0
	}

	log := config.Logger
	if log == nil {
		log = slog.Default()
	}

	meter := otel.Meter(instrumentationName)
	polls, _ := meter.Int64Counter("jason_workflow_polls",
		metric.WithDescription("Status polls issued while waiting for a process"))
	outcomes, _ := meter.Int64Counter("jason_workflow_outcomes",
		metric.WithDescription("Workflow runs by final state"))

	return &Orchestrator{
		api:      processAPI,
		config:   config,
		log:      log,
		tracer:   otel.Tracer(instrumentationName),
		polls:    polls,
		outcomes: outcomes,
	}
}

// Run submits req, polls until the process finishes, fails or the timeout
// elapses, and downloads the result archive of a finished process.
func (o *Orchestrator) Run(ctx context.Context, req jason.SubmitRequest) (out Outcome, err error) {
	ctx, span := o.tracer.Start(ctx, "workflow.Run",
		trace.WithAttributes(attribute.String("jason.process_type", string(req.Type))))
	defer func() {
		span.SetAttributes(
			attribute.String("jason.process_id", out.ProcessID),
			attribute.String("jason.outcome", string(out.State)),
			attribute.Int("jason.polls", out.Polls),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		o.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(out.State))))
	}()

	log := logger.FromContext(ctx, o.log)
	out.State = StateNotSubmitted

	id, err := o.SubmitOnly(ctx, req)
	if err != nil {
		return out, err
	}
	if id == "" {
		log.Error("submission was not accepted, nothing to poll")
		return out, nil
	}
	out.ProcessID = id

	start := time.Now()
	for {
		out.Polls++
		status, code, err := o.api.GetStatus(ctx, id)
		o.polls.Add(ctx, 1, metric.WithAttributes(attribute.Int("http.status_code", code)))
		if err != nil {
			return out, fmt.Errorf("failed to poll process %s: %w", id, err)
		}

		if code == 200 && status != nil {
			out.LastStatus = status.Process.Status
			log.Debug("process status", "process_id", id, "status", out.LastStatus, "poll", out.Polls)

			switch out.LastStatus {
			case api.StatusFinished:
				return o.finish(ctx, out)
			case api.StatusError:
				log.Error("process ended with an error", "process_id", id, "message", status.Message)
				out.State = StateFailed
				return out, nil
			}
		} else {
			log.Warn("status poll was not successful", "process_id", id, "code", code)
		}

		if o.config.Timeout > 0 && time.Since(start) >= o.config.Timeout {
			log.Warn("gave up waiting for process, it may still finish remotely",
				"process_id", id, "timeout", o.config.Timeout, "last_status", out.LastStatus)
			out.State = StateTimedOut
			return out, nil
		}

		timer := time.NewTimer(o.config.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return out, ctx.Err()
		case <-timer.C:
		}
	}
}

func (o *Orchestrator) finish(ctx context.Context, out Outcome) (Outcome, error) {
	log := logger.FromContext(ctx, o.log)

	out.State = StateFinished
	path, err := o.api.Download(ctx, out.ProcessID)
	if err != nil {
		return out, fmt.Errorf("failed to download results of process %s: %w", out.ProcessID, err)
	}
	out.Path = path
	log.Info("results downloaded", "process_id", out.ProcessID, "path", path)

	if o.config.Sink == nil {
		return out, nil
	}

	link, err := o.config.Sink.Publish(ctx, out.ProcessID, path)
	if err != nil {
		return out, fmt.Errorf("failed to publish results of process %s: %w", out.ProcessID, err)
	}
	out.Link = link
	log.Info("results published", "process_id", out.ProcessID, "link", link)
	return out, nil
}

// SubmitOnly submits req and returns the process id, or "" when the
// service did not answer 200 with an id.
func (o *Orchestrator) SubmitOnly(ctx context.Context, req jason.SubmitRequest) (string, error) {
	log := logger.FromContext(ctx, o.log)

	resp, code, err := o.api.Submit(ctx, req)
	if err != nil {
		return "", err
	}

	if code != http.StatusOK || resp == nil || resp.ID == "" {
		message := ""
		if resp != nil {
			message = resp.Message
		}
		log.Error("submission rejected", "code", code, "message", message)
		return "", nil
	}

	log.Info("process submitted", "process_id", resp.ID.String(), "type", req.Type)
	return resp.ID.String(), nil
}

// Status returns the current status of a process, or "" when the service
// did not answer with 200.
func (o *Orchestrator) Status(ctx context.Context, processID string) (string, error) {
	status, code, err := o.api.GetStatus(ctx, processID)
	if err != nil {
		return "", err
	}
	if code != 200 || status == nil {
		logger.FromContext(ctx, o.log).Warn("could not get process status", "process_id", processID, "code", code)
		return "", nil
	}
	return status.Process.Status, nil
}

// Download fetches the result archive of a finished process.
func (o *Orchestrator) Download(ctx context.Context, processID string) (string, error) {
	return o.api.Download(ctx, processID)
}

// List writes one comma-separated line per process, preceded by a header.
// Nothing is written when there are no processes.
func (o *Orchestrator) List(ctx context.Context, w io.Writer) error {
	summaries, err := o.api.ListProcesses(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		return nil
	}

	if _, err := fmt.Fprintf(w, "# %s\n", strings.Join(api.SummaryFields, ",")); err != nil {
		return err
	}
	for _, s := range summaries {
		if _, err := fmt.Fprintln(w, strings.Join(s.Values(), ",")); err != nil {
			return err
		}
	}
	return nil
}
