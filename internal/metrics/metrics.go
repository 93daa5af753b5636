package metrics

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "spin_rpc_requests_total", Help: "Contract view calls by method and result"},
		[]string{"method", "result"},
	)
	OrdersPlacedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "spin_orders_placed_total", Help: "Orders placed"},
		[]string{"market", "side"},
	)
	OrdersCancelledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "spin_orders_cancelled_total", Help: "Orders cancelled"},
		[]string{"market"},
	)
	BookL1NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "spin_book_l1_notifications_total", Help: "L1 order book notifications received"},
		[]string{"market"},
	)
	WSReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "spin_ws_reconnects_total", Help: "Websocket reconnect attempts"},
	)
)

func init() {
	prometheus.MustRegister(
		RPCRequestsTotal,
		OrdersPlacedTotal,
		OrdersCancelledTotal,
		BookL1NotificationsTotal,
		WSReconnectsTotal,
	)
}

// Serve 在 addr 上暴露 /metrics, 调用方负责 Shutdown
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	return srv
}
