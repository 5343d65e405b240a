package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"xmlrelay/internal/converter"
	"xmlrelay/internal/forwarder"
	"xmlrelay/internal/logging"
	"xmlrelay/internal/staging"
)

// State is a step of the ingest pipeline.
type State string

const (
	StateReceived     State = "received"
	StateStaged       State = "staged"
	StateConverted    State = "converted"
	StateForwarded    State = "forwarded"
	StateAcknowledged State = "acknowledged"
)

// MessageProcessed is returned to the uploader once the storage service acknowledged the file.
const MessageProcessed = "File processed and sent successfully"

const defaultLogicalName = "upload"

// ErrFileRequired is returned when the upload carried no file or an empty one.
var ErrFileRequired = errors.New("file not uploaded")

// PipelineError reports the state an upload failed to reach.
type PipelineError struct {
	State State
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("ingest failed before %s: %v", e.State, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Upload is a single inbound file.
type Upload struct {
	Body io.Reader
	// Filename is the name the client gave the multipart part.
	Filename string
	// Name is the optional caller supplied logical name.
	Name string
}

// IngestResult is the response body of a successful upload.
type IngestResult struct {
	Message string `json:"message"`
	// FileID is omitted when the storage acknowledgement carried none.
	FileID int64 `json:"fileId,omitempty"`
}

// IngestService runs an upload through staging, conversion and forwarding.
type IngestService interface {
	Ingest(ctx context.Context, up Upload) (*IngestResult, error)
}

type ingestService struct {
	stager   staging.Stager
	fwd      forwarder.Forwarder
	logger   *slog.Logger
	outcomes *prometheus.CounterVec
	tracer   trace.Tracer
}

// NewOutcomeCounter registers xmlrelay_ingest_total on reg.
func NewOutcomeCounter(reg prometheus.Registerer) (*prometheus.CounterVec, error) {
	c := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xmlrelay_ingest_total",
			Help: "Uploads handled by the ingest pipeline, by outcome.",
		},
		[]string{"outcome"},
	)
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return c, nil
}

// NewIngestService constructs an IngestService. outcomes may be nil.
func NewIngestService(stager staging.Stager, fwd forwarder.Forwarder, logger *slog.Logger, outcomes *prometheus.CounterVec) IngestService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ingestService{
		stager:   stager,
		fwd:      fwd,
		logger:   logger.With("component", "ingest"),
		outcomes: outcomes,
		tracer:   otel.Tracer("xmlrelay/internal/service"),
	}
}

func (s *ingestService) Ingest(ctx context.Context, up Upload) (res *IngestResult, err error) {
	name := LogicalName(up.Name, up.Filename)

	ctx, span := s.tracer.Start(ctx, "ingest", trace.WithAttributes(
		attribute.String("xmlrelay.file_name", name),
	))
	defer span.End()

	state := StateReceived
	defer func() {
		outcome := string(StateAcknowledged)
		if err != nil {
			outcome = "failed_" + string(state)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logger.ErrorContext(ctx, "ingest_failed",
				"request_id", logging.RequestID(ctx),
				"file_name", name,
				"state", string(state),
				"error", err.Error(),
			)
		}
		span.SetAttributes(attribute.String("xmlrelay.outcome", outcome))
		if s.outcomes != nil {
			s.outcomes.WithLabelValues(outcome).Inc()
		}
	}()

	state = StateStaged
	if up.Body == nil {
		return nil, &PipelineError{State: state, Err: ErrFileRequired}
	}
	h, err := s.stager.Stage(ctx, up.Body)
	if err != nil {
		if errors.Is(err, staging.ErrEmptyUpload) {
			err = fmt.Errorf("%w: %w", ErrFileRequired, err)
		}
		return nil, &PipelineError{State: state, Err: err}
	}
	defer func() {
		if rerr := h.Release(context.WithoutCancel(ctx)); rerr != nil {
			s.logger.WarnContext(ctx, "staging_release_failed",
				"request_id", logging.RequestID(ctx),
				"error", rerr.Error(),
			)
		}
	}()
	span.AddEvent("staged", trace.WithAttributes(attribute.Int64("xmlrelay.size", h.Size())))

	state = StateConverted
	rc, err := h.Open(ctx)
	if err != nil {
		return nil, &PipelineError{State: state, Err: fmt.Errorf("open staged upload: %w", err)}
	}
	content, err := converter.ConvertReader(rc)
	_ = rc.Close()
	if err != nil {
		return nil, &PipelineError{State: state, Err: err}
	}

	state = StateForwarded
	receipt, err := s.fwd.Forward(ctx, name, content)
	if err != nil {
		return nil, &PipelineError{State: state, Err: err}
	}

	state = StateAcknowledged
	if receipt.FileID == 0 {
		s.logger.WarnContext(ctx, "storage_receipt_without_id",
			"request_id", logging.RequestID(ctx),
			"file_name", name,
		)
	}
	return &IngestResult{Message: MessageProcessed, FileID: receipt.FileID}, nil
}

// LogicalName picks the caller supplied name, or the upload filename without
// its directory and last extension.
func LogicalName(requested, original string) string {
	if n := strings.TrimSpace(requested); n != "" {
		return n
	}
	base := original
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	if strings.TrimSpace(base) == "" {
		return defaultLogicalName
	}
	return base
}
