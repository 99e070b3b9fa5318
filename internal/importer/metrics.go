package importer

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "continuum"
	subsystem = "import"
)

// Metrics holds import counters on a private registry. The CLI is short
// lived, so metrics are exported through a node-exporter textfile rather
// than scraped. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// messages counts messages by outcome (kept, dropped).
	messages *prometheus.CounterVec

	// tokens counts estimated tokens by stage (original, compressed).
	tokens *prometheus.CounterVec

	// findings counts loop findings by kind and severity.
	findings *prometheus.CounterVec

	// imports counts import runs by result (success, skipped, error).
	imports *prometheus.CounterVec

	// ratio observes the percentage of tokens removed per import.
	ratio *prometheus.HistogramVec
}

// NewMetrics registers the import metrics on a new registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "messages_total",
				Help:      "Messages seen by the importer, by outcome",
			},
			[]string{"assistant", "outcome"},
		),
		tokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tokens_total",
				Help:      "Estimated tokens before and after compression",
			},
			[]string{"assistant", "stage"},
		),
		findings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "loop_findings_total",
				Help:      "Loop detector findings",
			},
			[]string{"assistant", "kind", "severity"},
		),
		imports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "imports_total",
				Help:      "Import runs by result",
			},
			[]string{"assistant", "result"},
		),
		ratio: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "compression_ratio",
				Help:      "Percentage of estimated tokens removed per import",
				Buckets:   prometheus.LinearBuckets(0, 10, 11),
			},
			[]string{"assistant"},
		),
	}
}

// Registry returns the registry holding the import metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics in text exposition format. The file is
// replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

func (m *Metrics) record(res *Result) {
	if m == nil {
		return
	}
	a := res.Assistant
	m.messages.WithLabelValues(a, "kept").Add(float64(res.KeptMessages))
	m.messages.WithLabelValues(a, "dropped").Add(float64(res.DroppedMessages))
	m.tokens.WithLabelValues(a, "original").Add(float64(res.OriginalTokens))
	m.tokens.WithLabelValues(a, "compressed").Add(float64(res.CompressedTokens))
	for _, f := range res.Findings {
		m.findings.WithLabelValues(a, string(f.Kind), f.Severity.String()).Inc()
	}
	m.ratio.WithLabelValues(a).Observe(res.RatioPercent)

	if res.Skipped {
		m.imports.WithLabelValues(a, "skipped").Inc()
	} else {
		m.imports.WithLabelValues(a, "success").Inc()
	}
}

func (m *Metrics) recordError(assistant string) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(assistant, "error").Inc()
}
