// Package metrics holds the portal's Prometheus collectors, served on
// /metrics by the HTTP server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// DetectionsTotal counts probe results by detected family.
	DetectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_probe_detections_total",
		Help: "Gateway probe results by detected device family.",
	}, []string{"family"})

	// DeviceOpsTotal counts management operations by family and outcome.
	DeviceOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_device_operations_total",
		Help: "Device management operations by family and outcome.",
	}, []string{"family", "operation", "outcome"})

	// VouchersIssuedTotal counts voucher codes that landed on a router.
	VouchersIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_vouchers_issued_total",
		Help: "Voucher codes created on routers, by preset.",
	}, []string{"preset"})

	// VouchersFailedTotal counts voucher codes a router rejected.
	VouchersFailedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_vouchers_failed_total",
		Help: "Voucher codes rejected by routers, by preset.",
	}, []string{"preset"})

	// UpstreamErrorsTotal counts failures talking to external systems.
	UpstreamErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_upstream_errors_total",
		Help: "Errors from external systems, by backend.",
	}, []string{"backend"})
)

func init() {
	prometheus.MustRegister(
		DetectionsTotal,
		DeviceOpsTotal,
		VouchersIssuedTotal,
		VouchersFailedTotal,
		UpstreamErrorsTotal,
	)
}
