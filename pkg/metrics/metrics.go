// Package metrics exposes prometheus collectors for a running
// consensus engine: events ingested, blocks emitted, elections,
// accusations, and DKG session state.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector a parsec node registers.
type Metrics struct {
	eventsIngested   prometheus.Counter
	eventsRejected   *prometheus.CounterVec
	blocksEmitted    prometheus.Counter
	electionsOpened  prometheus.Counter
	electionDuration prometheus.Histogram
	accusationsRaised *prometheus.CounterVec
	dkgSessionsActive prometheus.Gauge
	dkgSessionsDone   prometheus.Counter
	coinTosses        prometheus.Counter
	gossipRequests    *prometheus.CounterVec
}

// NewMetrics registers and returns the node's metrics collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		eventsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "parsec_events_ingested_total",
			Help: "Total number of gossip-graph events accepted",
		}),
		eventsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "parsec_events_rejected_total",
			Help: "Total number of gossip-graph events refused, by reason",
		}, []string{"reason"}),
		blocksEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "parsec_blocks_emitted_total",
			Help: "Total number of stable blocks produced",
		}),
		electionsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "parsec_elections_opened_total",
			Help: "Total number of meta-elections opened",
		}),
		electionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "parsec_election_duration_events",
			Help:    "Number of events processed between opening and deciding an election",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		accusationsRaised: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "parsec_accusations_raised_total",
			Help: "Total number of accusations raised, by malice kind",
		}, []string{"kind"}),
		dkgSessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "parsec_dkg_sessions_active",
			Help: "Number of DKG sessions currently in flight",
		}),
		dkgSessionsDone: promauto.NewCounter(prometheus.CounterOpts{
			Name: "parsec_dkg_sessions_completed_total",
			Help: "Total number of DKG sessions that reached is_ready",
		}),
		coinTosses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "parsec_coin_tosses_total",
			Help: "Total number of common-coin values derived",
		}),
		gossipRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "parsec_gossip_requests_total",
			Help: "Total number of gossip Request/Response exchanges, by direction",
		}, []string{"direction"}),
	}
}

func (m *Metrics) EventIngested()                  { m.eventsIngested.Inc() }
func (m *Metrics) EventRejected(reason string)      { m.eventsRejected.WithLabelValues(reason).Inc() }
func (m *Metrics) BlockEmitted()                    { m.blocksEmitted.Inc() }
func (m *Metrics) ElectionOpened()                  { m.electionsOpened.Inc() }
func (m *Metrics) ElectionDecided(eventsProcessed int) {
	m.electionDuration.Observe(float64(eventsProcessed))
}
func (m *Metrics) AccusationRaised(kind string)     { m.accusationsRaised.WithLabelValues(kind).Inc() }
func (m *Metrics) DKGSessionOpened()                { m.dkgSessionsActive.Inc() }
func (m *Metrics) DKGSessionCompleted()             { m.dkgSessionsActive.Dec(); m.dkgSessionsDone.Inc() }
func (m *Metrics) CoinTossed()                      { m.coinTosses.Inc() }
func (m *Metrics) GossipSent()                      { m.gossipRequests.WithLabelValues("sent").Inc() }
func (m *Metrics) GossipReceived()                  { m.gossipRequests.WithLabelValues("received").Inc() }
