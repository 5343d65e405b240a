package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"xmlrelay/internal/converter"
	"xmlrelay/internal/forwarder"
	fwdMocks "xmlrelay/internal/forwarder/mocks"
	"xmlrelay/internal/logging"
	"xmlrelay/internal/staging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type ingestFixture struct {
	svc      IngestService
	stager   *staging.DiskStager
	fwd      *fwdMocks.MockForwarder
	outcomes *prometheus.CounterVec
	logs     *bytes.Buffer
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	outcomes, err := NewOutcomeCounter(prometheus.NewRegistry())
	require.NoError(t, err)

	f := &ingestFixture{
		stager:   staging.NewDiskStager(t.TempDir()),
		fwd:      new(fwdMocks.MockForwarder),
		outcomes: outcomes,
		logs:     &bytes.Buffer{},
	}
	f.svc = NewIngestService(f.stager, f.fwd, logging.New(f.logs, nil, "debug"), outcomes)
	return f
}

func (f *ingestFixture) count(outcome string) float64 {
	return testutil.ToFloat64(f.outcomes.WithLabelValues(outcome))
}

func TestIngestService_Ingest(t *testing.T) {
	f := newIngestFixture(t)
	f.fwd.On("Forward", mock.Anything, "test", `{"test":{"a":"1"}}`).
		Return(&forwarder.Receipt{Message: MessageStored, FileID: 42}, nil).Once()

	res, err := f.svc.Ingest(context.Background(), Upload{
		Body:     strings.NewReader("<test><a>1</a></test>"),
		Filename: "test.xml",
	})

	require.NoError(t, err)
	assert.Equal(t, &IngestResult{Message: MessageProcessed, FileID: 42}, res)
	assert.Equal(t, int64(0), f.stager.Outstanding())
	assert.Equal(t, float64(1), f.count("acknowledged"))
	f.fwd.AssertExpectations(t)
}

func TestIngestService_Ingest_RequestedName(t *testing.T) {
	f := newIngestFixture(t)
	f.fwd.On("Forward", mock.Anything, "orders-2024", `{"r":null}`).
		Return(&forwarder.Receipt{FileID: 1}, nil).Once()

	_, err := f.svc.Ingest(context.Background(), Upload{
		Body:     strings.NewReader("<r/>"),
		Filename: "upload.xml",
		Name:     "orders-2024",
	})

	require.NoError(t, err)
	f.fwd.AssertExpectations(t)
}

func TestIngestService_Ingest_Failures(t *testing.T) {
	transportErr := &forwarder.ForwardingError{Kind: forwarder.KindTransport, Detail: "connection refused"}
	appErr := &forwarder.ForwardingError{Kind: forwarder.KindApplication, StatusCode: 401, Detail: "Invalid API Key"}

	tests := []struct {
		name      string
		body      io.Reader
		setup     func(fwd *fwdMocks.MockForwarder)
		wantState State
		wantErr   error
	}{
		{
			name:      "no file",
			body:      nil,
			wantState: StateStaged,
			wantErr:   ErrFileRequired,
		},
		{
			name:      "empty file",
			body:      strings.NewReader(""),
			wantState: StateStaged,
			wantErr:   ErrFileRequired,
		},
		{
			name:      "malformed xml",
			body:      strings.NewReader("invalid xml"),
			wantState: StateConverted,
			wantErr:   converter.ErrMalformedInput,
		},
		{
			name: "transport failure",
			body: strings.NewReader("<a/>"),
			setup: func(fwd *fwdMocks.MockForwarder) {
				fwd.On("Forward", mock.Anything, "doc", `{"a":null}`).Return(nil, transportErr).Once()
			},
			wantState: StateForwarded,
			wantErr:   transportErr,
		},
		{
			name: "application failure",
			body: strings.NewReader("<a/>"),
			setup: func(fwd *fwdMocks.MockForwarder) {
				fwd.On("Forward", mock.Anything, "doc", `{"a":null}`).Return(nil, appErr).Once()
			},
			wantState: StateForwarded,
			wantErr:   appErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngestFixture(t)
			if tt.setup != nil {
				tt.setup(f.fwd)
			}

			ctx := logging.WithRequestID(context.Background(), "rid-"+string(tt.wantState))
			res, err := f.svc.Ingest(ctx, Upload{Body: tt.body, Filename: "doc.xml"})

			assert.Nil(t, res)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var pe *PipelineError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantState, pe.State)

			assert.Equal(t, int64(0), f.stager.Outstanding())
			assert.Equal(t, float64(1), f.count("failed_"+string(tt.wantState)))

			var entry map[string]any
			require.NoError(t, json.Unmarshal(f.logs.Bytes(), &entry))
			assert.Equal(t, "ingest_failed", entry["msg"])
			assert.Equal(t, string(tt.wantState), entry["state"])
			assert.Equal(t, "rid-"+string(tt.wantState), entry["request_id"])

			f.fwd.AssertExpectations(t)
		})
	}
}

func TestIngestService_Ingest_ForwardingErrorKeepsKind(t *testing.T) {
	f := newIngestFixture(t)
	f.fwd.On("Forward", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &forwarder.ForwardingError{Kind: forwarder.KindTransport, Detail: "timeout"}).Once()

	_, err := f.svc.Ingest(context.Background(), Upload{Body: strings.NewReader("<a/>"), Filename: "a.xml"})

	var fe *forwarder.ForwardingError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, forwarder.KindTransport, fe.Kind)
}

func TestIngestService_Ingest_WithoutLoggerOrMetrics(t *testing.T) {
	disk := staging.NewDiskStager(t.TempDir())
	fwd := new(fwdMocks.MockForwarder)
	fwd.On("Forward", mock.Anything, "a", `{"a":"x"}`).Return(&forwarder.Receipt{FileID: 3}, nil).Once()

	svc := NewIngestService(disk, fwd, nil, nil)
	res, err := svc.Ingest(context.Background(), Upload{Body: strings.NewReader("<a>x</a>"), Filename: "a.xml"})

	require.NoError(t, err)
	assert.Equal(t, int64(3), res.FileID)
	assert.Equal(t, int64(0), disk.Outstanding())
}

func TestIngestService_Ingest_ReceiptWithoutID(t *testing.T) {
	f := newIngestFixture(t)
	f.fwd.On("Forward", mock.Anything, "a", `{"a":"x"}`).Return(&forwarder.Receipt{}, nil).Once()

	ctx := logging.WithRequestID(context.Background(), "rid-noid")
	res, err := f.svc.Ingest(ctx, Upload{Body: strings.NewReader("<a>x</a>"), Filename: "a.xml"})

	require.NoError(t, err)
	assert.Equal(t, MessageProcessed, res.Message)
	assert.Equal(t, float64(1), f.count("acknowledged"))

	body, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"File processed and sent successfully"}`, string(body))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(f.logs.Bytes(), &entry))
	assert.Equal(t, "storage_receipt_without_id", entry["msg"])
	assert.Equal(t, "WARN", strings.ToUpper(entry["level"].(string)))
	assert.Equal(t, "rid-noid", entry["request_id"])
}

func TestLogicalName(t *testing.T) {
	tests := []struct {
		requested string
		original  string
		want      string
	}{
		{"", "test.xml", "test"},
		{"custom", "test.xml", "custom"},
		{"  ", "report.final.xml", "report.final"},
		{"", `C:\uploads\orders.xml`, "orders"},
		{"", "nested/dir/data.XML", "data"},
		{"", "noext", "noext"},
		{"", ".xml", ".xml"},
		{"", "", "upload"},
	}

	for _, tt := range tests {
		t.Run(tt.original+"/"+tt.requested, func(t *testing.T) {
			assert.Equal(t, tt.want, LogicalName(tt.requested, tt.original))
		})
	}
}
