package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// PrometheusSink implements Sink with client_golang collectors.
// Registration failures are logged and the collector keeps working unregistered.
type PrometheusSink struct {
	log *zap.Logger

	// Assignment metrics
	assignmentsTotal          *prometheus.CounterVec
	assignmentRejectionsTotal *prometheus.CounterVec

	// Job lifecycle metrics
	transitionsTotal *prometheus.CounterVec

	// Board and routing metrics
	boardDuration    prometheus.Histogram
	boardTechnicians prometheus.Histogram
	boardJobs        prometheus.Histogram
	routeStops       prometheus.Histogram
	routeMiles       prometheus.Histogram
	routeDuration    prometheus.Histogram

	// Notification metrics
	eventsPublishedTotal *prometheus.CounterVec
	eventsDeliveredTotal *prometheus.CounterVec
	deliveryDuration     prometheus.Histogram
	eventsRequeuedTotal  prometheus.Counter
}

func NewPrometheusSink(reg prometheus.Registerer, log *zap.Logger) *PrometheusSink {
	if log == nil {
		log = zap.NewNop()
	}
	s := &PrometheusSink{log: log}
	s.initAssignmentMetrics(reg)
	s.initBoardMetrics(reg)
	s.initNotificationMetrics(reg)
	return s
}

func (s *PrometheusSink) initAssignmentMetrics(reg prometheus.Registerer) {
	s.assignmentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_assignments_total",
		Help: "Assignments created, by whether the job status advanced.",
	}, []string{"status_changed"})

	s.assignmentRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_assignment_rejections_total",
		Help: "Assign requests that did not create a row.",
	}, []string{"reason"})

	s.transitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_job_status_transitions_total",
		Help: "Applied job status transitions.",
	}, []string{"from", "to"})

	s.register(reg, s.assignmentsTotal, "dispatch_assignments_total")
	s.register(reg, s.assignmentRejectionsTotal, "dispatch_assignment_rejections_total")
	s.register(reg, s.transitionsTotal, "dispatch_job_status_transitions_total")
}

func (s *PrometheusSink) initBoardMetrics(reg prometheus.Registerer) {
	s.boardDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_board_build_duration_seconds",
		Help:    "Time to assemble a dispatch board.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})
	s.boardTechnicians = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_board_technicians",
		Help:    "Technicians listed per dispatch board.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
	s.boardJobs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_board_jobs",
		Help:    "Jobs listed per dispatch board.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
	s.routeStops = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_route_stops",
		Help:    "Stops per sequenced route.",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
	})
	s.routeMiles = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_route_miles",
		Help:    "Total great-circle miles per sequenced route.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})
	s.routeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_route_sequence_duration_seconds",
		Help:    "Time to sequence one technician route.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	s.register(reg, s.boardDuration, "dispatch_board_build_duration_seconds")
	s.register(reg, s.boardTechnicians, "dispatch_board_technicians")
	s.register(reg, s.boardJobs, "dispatch_board_jobs")
	s.register(reg, s.routeStops, "dispatch_route_stops")
	s.register(reg, s.routeMiles, "dispatch_route_miles")
	s.register(reg, s.routeDuration, "dispatch_route_sequence_duration_seconds")
}

func (s *PrometheusSink) initNotificationMetrics(reg prometheus.Registerer) {
	s.eventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_events_published_total",
		Help: "Domain events handed to the notification queue.",
	}, []string{"outcome"})
	s.eventsDeliveredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_events_delivered_total",
		Help: "Domain events processed by notification workers.",
	}, []string{"outcome"})
	s.deliveryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_event_delivery_duration_seconds",
		Help:    "Time spent delivering one event.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
	s.eventsRequeuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_events_requeued_total",
		Help: "Events moved back from processing lists by the reaper.",
	})

	s.register(reg, s.eventsPublishedTotal, "dispatch_events_published_total")
	s.register(reg, s.eventsDeliveredTotal, "dispatch_events_delivered_total")
	s.register(reg, s.deliveryDuration, "dispatch_event_delivery_duration_seconds")
	s.register(reg, s.eventsRequeuedTotal, "dispatch_events_requeued_total")
}

func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		s.log.Warn("metrics: register failed", zap.String("metric", name), zap.Error(err))
	}
}

func (s *PrometheusSink) AssignmentCreated(statusChanged bool) {
	s.assignmentsTotal.WithLabelValues(strconv.FormatBool(statusChanged)).Inc()
}

func (s *PrometheusSink) AssignmentRejected(reason string) {
	s.assignmentRejectionsTotal.WithLabelValues(reason).Inc()
}

func (s *PrometheusSink) StatusTransition(from, to string) {
	s.transitionsTotal.WithLabelValues(from, to).Inc()
}

func (s *PrometheusSink) BoardBuilt(technicians, jobs int, duration time.Duration) {
	s.boardDuration.Observe(duration.Seconds())
	s.boardTechnicians.Observe(float64(technicians))
	s.boardJobs.Observe(float64(jobs))
}

func (s *PrometheusSink) RouteSequenced(stops int, miles float64, duration time.Duration) {
	s.routeStops.Observe(float64(stops))
	s.routeMiles.Observe(miles)
	s.routeDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) EventPublished(outcome string) {
	s.eventsPublishedTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) EventDelivered(outcome string, duration time.Duration) {
	s.eventsDeliveredTotal.WithLabelValues(outcome).Inc()
	s.deliveryDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) EventsRequeued(count int) {
	if count > 0 {
		s.eventsRequeuedTotal.Add(float64(count))
	}
}
