package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	OrdersSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_submitted_total", Help: "Orders accepted by the matching engine"})
	OrdersRejectedTotal  = prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_rejected_total", Help: "Orders rejected before matching"})
	OrdersKilledTotal    = prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_killed_total", Help: "Fill-or-kill orders killed as unfulfillable"})
	TradesExecutedTotal  = prometheus.NewCounter(prometheus.CounterOpts{Name: "trades_executed_total", Help: "Settled trades"})
	TradeVolume          = prometheus.NewCounter(prometheus.CounterOpts{Name: "trade_volume", Help: "Cumulative traded instrument quantity"})
	DepthRequestsTotal   = prometheus.NewCounter(prometheus.CounterOpts{Name: "depth_requests_total", Help: "Depth snapshots served"})
	QuoteRequestsTotal   = prometheus.NewCounter(prometheus.CounterOpts{Name: "quote_requests_total", Help: "Quote simulations served"})
	RequestDurationMs    = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "request_duration_ms", Help: "HTTP request duration by route", Buckets: prometheus.LinearBuckets(1, 5, 20)},
		[]string{"route"},
	)
)

func Init(logger zerolog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		OrdersSubmittedTotal, OrdersRejectedTotal, OrdersKilledTotal,
		TradesExecutedTotal, TradeVolume,
		DepthRequestsTotal, QuoteRequestsTotal, RequestDurationMs,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		_ = reg.Register(c)
	}
	logger.Info().Msg("prometheus metrics initialized")
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
