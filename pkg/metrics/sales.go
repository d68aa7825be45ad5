package metrics

import "github.com/prometheus/client_golang/prometheus"

// SalesMetrics counts committed sales and rejected checkouts.
type SalesMetrics struct {
	sales    *prometheus.CounterVec
	revenue  *prometheus.CounterVec
	rejected *prometheus.CounterVec
}

func NewSalesMetrics(reg prometheus.Registerer) *SalesMetrics {
	if reg == nil {
		return &SalesMetrics{}
	}
	sales := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loggas_sales_total",
		Help: "Committed sales by origin.",
	}, []string{"origin"})
	revenue := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loggas_sales_revenue_cents_total",
		Help: "Gross sale value in cents by origin.",
	}, []string{"origin"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loggas_sales_rejected_total",
		Help: "Sales rejected before commit by error code.",
	}, []string{"code"})
	reg.MustRegister(sales, revenue, rejected)
	return &SalesMetrics{sales: sales, revenue: revenue, rejected: rejected}
}

func (m *SalesMetrics) ObserveSale(origin string, totalCents int64) {
	if m == nil || m.sales == nil {
		return
	}
	origin = normalizeLabel(origin)
	m.sales.WithLabelValues(origin).Inc()
	if totalCents > 0 {
		m.revenue.WithLabelValues(origin).Add(float64(totalCents))
	}
}

func (m *SalesMetrics) IncRejected(code string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(code)).Inc()
}
