package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for the message
// processing pipeline.
type ConversationMetrics struct {
	turnsTotal     *prometheus.CounterVec
	intentMatches  *prometheus.CounterVec
	fallbacksTotal prometheus.Counter
	topicSwitches  prometheus.Counter
	turnLatency    *prometheus.HistogramVec
	corpusReloads  *prometheus.CounterVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "converse",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total processed turns",
		}, []string{"next_action", "status"}),
		intentMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "converse",
			Subsystem: "conversation",
			Name:      "intent_matches_total",
			Help:      "Total intent matches by intent and topic",
		}, []string{"intent", "topic"}),
		fallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "converse",
			Subsystem: "conversation",
			Name:      "fallbacks_total",
			Help:      "Turns resolved to the general-inquiry fallback",
		}),
		topicSwitches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "converse",
			Subsystem: "conversation",
			Name:      "topic_switches_total",
			Help:      "Total topic switches across all sessions",
		}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "converse",
			Subsystem: "conversation",
			Name:      "turn_latency_seconds",
			Help:      "Latency of one ProcessMessage turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"next_action"}),
		corpusReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "converse",
			Subsystem: "corpus",
			Name:      "reloads_total",
			Help:      "Corpus reload attempts",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.turnsTotal,
		m.intentMatches,
		m.fallbacksTotal,
		m.topicSwitches,
		m.turnLatency,
		m.corpusReloads,
	)
	return m
}

func (m *ConversationMetrics) ObserveTurn(nextAction, status string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(nextAction, status).Inc()
	m.turnLatency.WithLabelValues(nextAction).Observe(seconds)
}

func (m *ConversationMetrics) ObserveIntentMatch(intentID, topic string) {
	if m == nil {
		return
	}
	m.intentMatches.WithLabelValues(intentID, topic).Inc()
}

func (m *ConversationMetrics) ObserveFallback() {
	if m == nil {
		return
	}
	m.fallbacksTotal.Inc()
}

func (m *ConversationMetrics) ObserveTopicSwitch() {
	if m == nil {
		return
	}
	m.topicSwitches.Inc()
}

func (m *ConversationMetrics) ObserveCorpusReload(status string) {
	if m == nil {
		return
	}
	m.corpusReloads.WithLabelValues(status).Inc()
}
