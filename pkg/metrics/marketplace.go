package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/angelmondragon/scanmarket-backend/pkg/errors"
)

// Outcome labels shared by the marketplace counters.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// OutcomeOf maps a service result onto an outcome label.
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), pkgerrors.IsCode(err, pkgerrors.CodeConflict):
		return OutcomeConflict
	case pkgerrors.IsCode(err, pkgerrors.CodeValidation), pkgerrors.IsCode(err, pkgerrors.CodeForbidden),
		pkgerrors.IsCode(err, pkgerrors.CodeNotFound), pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}

// MarketplaceMetrics tracks upload, purchase and chat activity.
type MarketplaceMetrics struct {
	uploads      *prometheus.CounterVec
	purchases    *prometheus.CounterVec
	chatMessages *prometheus.CounterVec
	wsClients    prometheus.Gauge
	aiCache      *prometheus.CounterVec
}

// NewMarketplaceMetrics registers the domain metrics on the provided registerer.
func NewMarketplaceMetrics(reg prometheus.Registerer) *MarketplaceMetrics {
	if reg == nil {
		return &MarketplaceMetrics{}
	}
	m := &MarketplaceMetrics{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "asset_upload_completions_total",
			Help: "Upload completion attempts by outcome.",
		}, []string{"outcome"}),
		purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "purchases_total",
			Help: "Purchase attempts by outcome.",
		}, []string{"outcome"}),
		chatMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Persisted chat messages by type.",
		}, []string{"type"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_ws_connections",
			Help: "Open chat WebSocket connections on this instance.",
		}),
		aiCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_suggestion_cache_total",
			Help: "AI suggestion cache lookups by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.uploads, m.purchases, m.chatMessages, m.wsClients, m.aiCache)
	return m
}

func (m *MarketplaceMetrics) UploadCompleted(outcome string) {
	if m == nil || m.uploads == nil {
		return
	}
	m.uploads.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *MarketplaceMetrics) Purchase(outcome string) {
	if m == nil || m.purchases == nil {
		return
	}
	m.purchases.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *MarketplaceMetrics) ChatMessage(messageType string) {
	if m == nil || m.chatMessages == nil {
		return
	}
	m.chatMessages.WithLabelValues(normalizeLabel(messageType)).Inc()
}

// WSConnected adjusts the open connection gauge by delta.
func (m *MarketplaceMetrics) WSConnected(delta int) {
	if m == nil || m.wsClients == nil {
		return
	}
	m.wsClients.Add(float64(delta))
}

func (m *MarketplaceMetrics) AICache(hit bool) {
	if m == nil || m.aiCache == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.aiCache.WithLabelValues(result).Inc()
}
