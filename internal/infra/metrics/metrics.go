package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	TicksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lunch_ticks_total",
		Help: "Срабатывания планировщика по результату",
	}, []string{"result"})

	PostsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lunch_posts_total",
		Help: "Опубликованные меню по источнику",
	}, []string{"trigger"})

	ReactionErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lunch_reaction_errors_total",
		Help: "Ошибки добавления реакций",
	})

	BotSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_send_errors_total",
		Help: "Ошибки отправки оповещений ботом",
	})

	ConsecutiveFailures = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lunch_consecutive_failures",
		Help: "Число неудачных срабатываний подряд",
	})

	LastPostedTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lunch_last_posted_timestamp_seconds",
		Help: "Полночь дня последней публикации по расписанию",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 25, 30},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// Результаты срабатывания планировщика.
const (
	TickSkipped      = "skipped"
	TickPosted       = "posted"
	TickChannelError = "channel_error"
	TickFetchError   = "fetch_error"
	TickSendError    = "send_error"
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		TicksTotal,
		PostsTotal,
		ReactionErrors,
		BotSendErrors,
		ConsecutiveFailures,
		LastPostedTimestamp,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// IncTick увеличивает счётчик срабатываний с указанным результатом.
func IncTick(result string) {
	TicksTotal.WithLabelValues(result).Inc()
}

// IncPost увеличивает счётчик публикаций.
func IncPost(trigger string) {
	PostsTotal.WithLabelValues(trigger).Inc()
}

// SetLastPosted выставляет время последней публикации.
func SetLastPosted(t time.Time) {
	LastPostedTimestamp.Set(float64(t.Unix()))
}
