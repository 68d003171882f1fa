package telemetry

import (
	"fmt"
	"net/http"

	"github.com/hyperledger-labs/lane-relayer/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	api "go.opentelemetry.io/otel/metric"
)

const (
	namespaceRoot = "relayer"
)

var (
	ProcessedBlockHeightGauge *Int64SyncGauge
	BacklogSizeGauge          *Int64SyncGauge
	LaneStateGauge            *Int64SyncGauge
	MessagesDeliveredCounter  api.Int64Counter
	MessagesConfirmedCounter  api.Int64Counter
	SubmissionRetriesCounter  api.Int64Counter

	meter = otel.Meter(name)
)

func InitializeMetrics() error {
	var err error

	// create the instrument "relayer.processed_block_height"
	name := fmt.Sprintf("%s.processed_block_height", namespaceRoot)
	if ProcessedBlockHeightGauge, err = NewInt64SyncGauge(
		meter,
		name,
		api.WithUnit("1"),
		api.WithDescription("latest finalized height"),
	); err != nil {
		return fmt.Errorf("failed to create the instrument %s: %v", name, err)
	}

	// create the instrument "relayer.backlog_size"
	name = fmt.Sprintf("%s.backlog_size", namespaceRoot)
	if BacklogSizeGauge, err = NewInt64SyncGauge(
		meter,
		name,
		api.WithUnit("1"),
		api.WithDescription("number of messages that are emitted but not yet confirmed"),
	); err != nil {
		return fmt.Errorf("failed to create the instrument %s: %v", name, err)
	}

// create the instrument "relayer.lane_state"
	name = fmt.Sprintf("%s.lane_state", namespaceRoot)
	if LaneStateGauge, err = NewInt64SyncGauge(
		meter,
		name,
		api.WithUnit("1"),
		api.WithDescription("current engine state of the lane"),
	); err != nil {
		return fmt.Errorf("failed to create the instrument %s: %v", name, err)
	}

	// create the instrument "relayer.messages_delivered"
	name = fmt.Sprintf("%s.messages_delivered", namespaceRoot)
	if MessagesDeliveredCounter, err = meter.Int64Counter(
		name,
		api.WithUnit("1"),
		api.WithDescription("number of messages that are delivered and finalized on the target chain"),
	); err != nil {
		return fmt.Errorf("failed to create the instrument %s: %v", name, err)
	}

	// create the instrument "relayer.messages_confirmed"
	name = fmt.Sprintf("%s.messages_confirmed", namespaceRoot)
	if MessagesConfirmedCounter, err = meter.Int64Counter(
		name,
		api.WithUnit("1"),
		api.WithDescription("number of messages whose delivery is confirmed back on the source chain"),
	); err != nil {
		return fmt.Errorf("failed to create the instrument %s: %v", name, err)
	}

	// create the instrument "relayer.submission_retries"
	name = fmt.Sprintf("%s.submission_retries", namespaceRoot)
	if SubmissionRetriesCounter, err = meter.Int64Counter(
		name,
		api.WithUnit("1"),
		api.WithDescription("number of transaction submissions retried after a transient failure"),
	); err != nil {
		return fmt.Errorf("failed to create the instrument %s: %v", name, err)
	}

	return nil
}

func NewPrometheusExporter(addr string) (*prometheus.Exporter, error) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger := log.GetLogger().WithModule("telemetry")
			logger.Fatal("Prometheus exporter server failed", err)
		}
	}()

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create the Prometheus Exporter: %v", err)
	}

	return exporter, nil
}
