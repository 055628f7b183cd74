// Package metrics exposes signing pipeline counters.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder receives domain events worth counting.
type Recorder interface {
	SlotsLocated(n int)
	SignatureSubmitted()
	SealResult(result string)
	PurgeFailure(artifact string)
}

// Prometheus is a Recorder backed by prometheus counters.
type Prometheus struct {
	slotsLocated  prometheus.Counter
	submitted     prometheus.Counter
	sealResults   *prometheus.CounterVec
	purgeFailures *prometheus.CounterVec
}

// NewPrometheus creates the counters and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		slotsLocated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docsign_slots_located_total",
			Help: "Signature slots located on rendered instances.",
		}),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docsign_signatures_submitted_total",
			Help: "Signatures accepted and stored.",
		}),
		sealResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docsign_seal_results_total",
			Help: "Certificate seal outcomes.",
		}, []string{"result"}),
		purgeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docsign_purge_failures_total",
			Help: "Artifacts that could not be deleted after completion.",
		}, []string{"artifact"}),
	}
	for _, c := range []prometheus.Collector{p.slotsLocated, p.submitted, p.sealResults, p.purgeFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) SlotsLocated(n int) {
	if n > 0 {
		p.slotsLocated.Add(float64(n))
	}
}

func (p *Prometheus) SignatureSubmitted() { p.submitted.Inc() }
func (p *Prometheus) SealResult(result string) { p.sealResults.WithLabelValues(result).Inc() }
func (p *Prometheus) PurgeFailure(artifact string) { p.purgeFailures.WithLabelValues(artifact).Inc() }

// Nop discards everything.
type Nop struct{}

func (Nop) SlotsLocated(int) {}
func (Nop) SignatureSubmitted() {}
func (Nop) SealResult(string) {}
func (Nop) PurgeFailure(string) {}
