package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(accountsByStatus, accountCooldownsTotal) }

var accountsByStatus = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "accounts_by_status",
		Help: "Current number of accounts per status.",
	},
	[]string{"status"}, // 'active', 'cooling_down', 'disabled'
)

var accountCooldownsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "account_cooldowns_total",
		Help: "Cooldown/disable transitions, labeled by triggering outcome.",
	},
	[]string{"reason"}, // 'failure', 'rate_limited', 'auth_failure'
)

func SetAccountsByStatus(active, coolingDown, disabled int) {
	accountsByStatus.WithLabelValues("active").Set(float64(active))
	accountsByStatus.WithLabelValues("cooling_down").Set(float64(coolingDown))
	accountsByStatus.WithLabelValues("disabled").Set(float64(disabled))
}

func IncAccountCooldown(reason string) {
	accountCooldownsTotal.WithLabelValues(norm(reason)).Inc()
}
