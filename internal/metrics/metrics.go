// Package metrics содержит prometheus-счётчики жизненного цикла заявок,
// входов пользователей и уведомлений. Все методы безопасны для nil-получателя,
// поэтому сервисы можно собирать без метрик.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/magabrotheeeer/abo-portal/internal/models"
)

// Metrics набор счётчиков портала.
type Metrics struct {
	requestsCreated *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	logins          *prometheus.CounterVec
	notifications   prometheus.Counter
	imports         *prometheus.CounterVec
}

// New создаёт счётчики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "requests_created_total",
			Help:      "Subscription requests created, by initial status.",
		}, []string{"status"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "status_transitions_total",
			Help:      "Applied status transitions.",
		}, []string{"from", "to"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "notifications_sent_total",
			Help:      "Messages appended to recipient inboxes.",
		}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "imports_total",
			Help:      "Bulk request imports by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.requestsCreated, m.transitions, m.logins, m.notifications, m.imports)
	return m
}

func (m *Metrics) RequestCreated(status models.Status) {
	if m == nil {
		return
	}
	m.requestsCreated.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) Transition(from, to models.Status) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

// Login учитывает попытку входа; result — "ok" или краткое имя ошибки.
func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) NotificationSent() {
	if m == nil {
		return
	}
	m.notifications.Inc()
}

func (m *Metrics) Import(ok bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if ok {
		result = "applied"
	}
	m.imports.WithLabelValues(result).Inc()
}
