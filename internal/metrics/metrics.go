package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Usage metrics
	UsageSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "timekeeper_usage_seconds",
			Help: "Active time accumulated today in seconds",
		},
	)

	GoalSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "timekeeper_goal_seconds",
			Help: "Current daily goal in seconds",
		},
	)

	ActiveSecondsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "timekeeper_active_seconds_total",
			Help: "Total active seconds credited by the tracking tick",
		},
	)

	// Activity metrics
	ActivityEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timekeeper_activity_events_total",
			Help: "Total activity signals received",
		},
		[]string{"source"},
	)

	// Rollover metrics
	RolloversTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timekeeper_rollovers_total",
			Help: "Total day rollovers performed",
		},
		[]string{"trigger"},
	)

	// Goal metrics
	GoalClampsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timekeeper_goal_clamps_total",
			Help: "Total requested goals adjusted into the allowed range",
		},
		[]string{"reason"},
	)

	GoalNotificationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "timekeeper_goal_notifications_total",
			Help: "Total goal-exceeded notifications emitted",
		},
	)

	// Storage metrics
	StateRecoveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timekeeper_state_recoveries_total",
			Help: "Total times persisted state was missing or unreadable and defaults were used",
		},
		[]string{"reason"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		UsageSeconds,
		GoalSeconds,
		ActiveSecondsTotal,
		ActivityEventsTotal,
		RolloversTotal,
		GoalClampsTotal,
		GoalNotificationsTotal,
		StateRecoveriesTotal,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			// Use systemd socket-activated listener
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			// Create and bind listener ourselves
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
