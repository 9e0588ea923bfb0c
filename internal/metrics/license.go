package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		licensesIssuedTotal,
		activationsTotal,
		checksTotal,
		webhooksTotal,
		revocationsTotal,
	)
}

var (
	licensesIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "licenses_issued_total",
			Help: "Licenses issued, labeled by the actor that requested issuance (webhook/admin).",
		},
		[]string{"actor"},
	)

	activationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "license_activations_total",
			Help: "Activation attempts by outcome (ok or error kind).",
		},
		[]string{"outcome"},
	)

	checksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "license_checks_total",
			Help: "Verification requests by outcome (ok or error kind).",
		},
		[]string{"outcome"},
	)

	webhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhooks_total",
			Help: "Payment webhook deliveries by result (issued/duplicate/rejected/failed).",
		},
		[]string{"result"},
	)

	revocationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "license_revocations_total",
			Help: "Licenses revoked by an administrator.",
		},
	)
)

func IncIssued(actor string) {
	licensesIssuedTotal.WithLabelValues(norm(actor)).Inc()
}

func IncActivation(outcome string) {
	activationsTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncCheck(outcome string) {
	checksTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncWebhook(result string) {
	webhooksTotal.WithLabelValues(norm(result)).Inc()
}

func IncRevocation() {
	revocationsTotal.Inc()
}
