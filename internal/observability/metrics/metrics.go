package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for booking and reminder
// flows. A nil receiver is safe everywhere so metrics stay optional wiring.
type SchedulingMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	slotConflicts    prometheus.Counter
	transitionsTotal *prometheus.CounterVec
	bookingLatency   prometheus.Histogram
	remindersTotal   *prometheus.CounterVec
	reminderRuns     *prometheus.CounterVec
	runDuration      prometheus.Histogram
	waitlistFills    *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caredesk",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Total booking attempts",
		}, []string{"outcome"}),
		slotConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "caredesk",
			Subsystem: "scheduling",
			Name:      "slot_conflicts_total",
			Help:      "Bookings that lost the race for a slot",
		}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caredesk",
			Subsystem: "scheduling",
			Name:      "transitions_total",
			Help:      "Appointment status transitions applied",
		}, []string{"to"}),
		bookingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "caredesk",
			Subsystem: "scheduling",
			Name:      "booking_latency_seconds",
			Help:      "Latency of the atomic booking unit",
			Buckets:   prometheus.DefBuckets,
		}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caredesk",
			Subsystem: "reminders",
			Name:      "sends_total",
			Help:      "Reminder delivery attempts by kind and outcome",
		}, []string{"kind", "outcome"}),
		reminderRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caredesk",
			Subsystem: "reminders",
			Name:      "runs_total",
			Help:      "Reminder scheduler runs by final status",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "caredesk",
			Subsystem: "reminders",
			Name:      "run_duration_seconds",
			Help:      "Duration of reminder scheduler runs",
			Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		waitlistFills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caredesk",
			Subsystem: "waitlist",
			Name:      "fills_total",
			Help:      "Waitlist fill attempts by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.slotConflicts, m.transitionsTotal, m.bookingLatency,
		m.remindersTotal, m.reminderRuns, m.runDuration, m.waitlistFills)
	return m
}

func (m *SchedulingMetrics) ObserveBooking(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
	m.bookingLatency.Observe(seconds)
}

func (m *SchedulingMetrics) ObserveSlotConflict() {
	if m == nil {
		return
	}
	m.slotConflicts.Inc()
}

func (m *SchedulingMetrics) ObserveTransition(to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(to).Inc()
}

func (m *SchedulingMetrics) ObserveReminderSend(kind, outcome string) {
	if m == nil {
		return
	}
	m.remindersTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveReminderRun(status string, seconds float64) {
	if m == nil {
		return
	}
	m.reminderRuns.WithLabelValues(status).Inc()
	m.runDuration.Observe(seconds)
}

func (m *SchedulingMetrics) ObserveWaitlistFill(outcome string) {
	if m == nil {
		return
	}
	m.waitlistFills.WithLabelValues(outcome).Inc()
}
