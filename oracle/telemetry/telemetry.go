package telemetry

import (
	"net/http"
	"strings"
	"time"

	metrics "github.com/armon/go-metrics"
)

const ServiceName = "flightsurety_oracle"

// metric keys
var (
	KeyRegistered         = []string{"oracle", "registered"}
	KeyRegistrationFailed = []string{"oracle", "registration", "failed"}
	KeyRequests           = []string{"request", "received"}
	KeyDuplicateRequests  = []string{"request", "duplicate"}
	KeyResponses          = []string{"response", "submitted"}
	KeyResponsesRejected  = []string{"response", "rejected"}
	KeyPoolSize           = []string{"oracle", "pool", "size"}
	KeySubmitLatency      = []string{"response", "latency"}
	KeyLastBlock          = []string{"subscription", "last_block"}
	KeyRequestAge         = []string{"subscription", "request_age_seconds"}
)

// Telemetry is an in-memory metrics sink. A nil *Telemetry discards everything.
type Telemetry struct {
	metrics *metrics.Metrics
	sink    *metrics.InmemSink
}

func New(interval, retain time.Duration) (*Telemetry, error) {
	sink := metrics.NewInmemSink(interval, retain)

	cfg := metrics.DefaultConfig(ServiceName)
	cfg.EnableHostname = false
	cfg.EnableRuntimeMetrics = false

	m, err := metrics.New(cfg, sink)
	if err != nil {
		return nil, err
	}

	return &Telemetry{metrics: m, sink: sink}, nil
}

func (t *Telemetry) IncrCounter(key []string, val float32) {
	if t == nil {
		return
	}
	t.metrics.IncrCounter(key, val)
}

func (t *Telemetry) SetGauge(key []string, val float32) {
	if t == nil {
		return
	}
	t.metrics.SetGauge(key, val)
}

func (t *Telemetry) MeasureSince(key []string, start time.Time) {
	if t == nil {
		return
	}
	t.metrics.MeasureSince(key, start)
}

// Summary returns the current interval's metrics in the sink's display format.
func (t *Telemetry) Summary(w http.ResponseWriter, r *http.Request) (any, error) {
	if t == nil {
		return struct{}{}, nil
	}
	return t.sink.DisplayMetrics(w, r)
}

// Gauge returns the most recent value of a gauge, or 0 when it was never set.
func (t *Telemetry) Gauge(key []string) float32 {
	if t == nil {
		return 0
	}

	name := strings.Join(append([]string{ServiceName}, key...), ".")
	var value float32
	for _, interval := range t.sink.Data() {
		interval.RLock()
		for _, gauge := range interval.Gauges {
			if gauge.Name == name {
				value = gauge.Value
			}
		}
		interval.RUnlock()
	}

	return value
}

// Counter returns the sum of a counter over the retained intervals.
func (t *Telemetry) Counter(key []string) float64 {
	if t == nil {
		return 0
	}

	name := strings.Join(append([]string{ServiceName}, key...), ".")
	var total float64
	for _, interval := range t.sink.Data() {
		interval.RLock()
		for _, counter := range interval.Counters {
			if counter.Name == name {
				total += counter.Sum
			}
		}
		interval.RUnlock()
	}

	return total
}
