package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BasketsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "baskets_created_total",
		Help: "Total number of baskets created",
	}, []string{"shop"})

	BasketOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "basket_operations_total",
		Help: "Total number of successful basket mutations",
	}, []string{"operation"})

	BasketOperationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "basket_operations_failed_total",
		Help: "Total number of rejected basket mutations",
	}, []string{"operation", "reason"})

	BasketLockContentionTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "basket_lock_contention_total",
		Help: "Total number of basket requests rejected because the basket was locked",
	})

	CodesAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "basket_codes_applied_total",
		Help: "Total number of coupon codes applied to baskets",
	})

	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created from baskets",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order conversions",
	}, []string{"reason"})

	StockCommittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_stock_committed_total",
		Help: "Total number of orders whose reserved stock was committed",
	})

	InventoryReserveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_reserve_latency_seconds",
		Help:    "Latency of inventory reservation operations",
		Buckets: prometheus.DefBuckets,
	})

	InventoryReservationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_reservations_failed_total",
		Help: "Total number of failed inventory reservations",
	}, []string{"reason"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
