package notification

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce   sync.Once
	recordOutcome *prometheus.CounterVec
	sweepDeleted  prometheus.Counter
	remindersSent *prometheus.CounterVec
)

func initMetrics() {
	metricsOnce.Do(func() {
		recordOutcome = register(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskhub",
			Subsystem: "notifications",
			Name:      "records_total",
			Help:      "Notification record attempts by type and outcome",
		}, []string{"type", "outcome"}))
		sweepDeleted = register(prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taskhub",
			Subsystem: "notifications",
			Name:      "swept_total",
			Help:      "Read notifications removed by the retention sweep",
		}))
		remindersSent = register(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskhub",
			Subsystem: "notifications",
			Name:      "deadline_notices_total",
			Help:      "Deadline reminders and overdue notices emitted",
		}, []string{"type"}))
	})
}

// register adds c to the default registry, reusing an already registered
// collector of the same description.
func register[C prometheus.Collector](c C) C {
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}
