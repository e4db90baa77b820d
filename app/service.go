package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/planner/app/plugins"
	"github.com/kilianp07/planner/config"
	apiaudit "github.com/kilianp07/planner/api/audit"
	"github.com/kilianp07/planner/api/runs"
	"github.com/kilianp07/planner/core/audit"
	coremetrics "github.com/kilianp07/planner/core/metrics"
	coremon "github.com/kilianp07/planner/core/monitoring"
	"github.com/kilianp07/planner/core/planner"
	"github.com/kilianp07/planner/core/store"
	"github.com/kilianp07/planner/infra/logger"
	"github.com/kilianp07/planner/infra/metrics"
	infmon "github.com/kilianp07/planner/infra/monitoring"
	"github.com/kilianp07/planner/infra/mqtt"
	"github.com/kilianp07/planner/internal/eventbus"
)

// Service wires the store, solver and run manager together with the
// observability stack.
type Service struct {
	Manager *planner.Manager
	Store   store.Store
	Audit   audit.Store

	cfg      *config.Config
	bus      *eventbus.Bus
	sink     coremetrics.MetricsSink
	notifier *mqtt.PahoNotifier
	log      logger.Logger
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logg := logger.New("service")

	mon, err := infmon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	st, err := plugins.NewStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	sol, err := plugins.NewSolver(cfg.Solver, logger.New("solver"))
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("solver: %w", err)
	}
	aud, err := plugins.NewAuditStore(cfg.Audit)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("audit: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = st.Close()
		_ = aud.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	bus := eventbus.New(eventbus.WithBuffer(cfg.Planner.EventBuffer))
	mgr, err := planner.NewManager(st, sol, planner.Config{
		DefaultTimeout:       cfg.Solver.DefaultTimeout(),
		CancelPollInterval:   cfg.Planner.CancelPoll(),
		Precheck:             cfg.Planner.Precheck,
		MaxPrecheckVariables: cfg.Solver.MaxPrecheckVariables,
	}, logger.New("planner"), bus, aud)
	if err != nil {
		_ = st.Close()
		_ = aud.Close()
		return nil, fmt.Errorf("planner: %w", err)
	}

	svc := &Service{Manager: mgr, Store: st, Audit: aud, cfg: cfg, bus: bus, sink: sink, log: logg}
	if cfg.MQTT.Enabled {
		n, err := mqtt.NewPahoNotifier(cfg.MQTT.Config)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("mqtt notifier: %w", err)
		}
		svc.notifier = n
	}
	return svc, nil
}

// Handler returns the HTTP API of the service.
func (s *Service) Handler() (http.Handler, error) {
	return runs.New(runs.Config{
		Runner:   s.Manager,
		BasePath: s.cfg.API.BasePath,
		Mount: map[string]http.Handler{
			"/audit/runs": apiaudit.NewLogHandler(s.Audit, s.cfg.API.AuditToken),
		},
	})
}

// Run starts the event consumers, the metrics endpoint and the HTTP API,
// and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	defer coremon.Current().Recover()

	metrics.StartEventCollector(ctx, s.bus, s.sink)
	if s.notifier != nil {
		mqtt.Forward(ctx, s.bus, s.notifier)
		s.notifier.SetCancelHandler(func(runID string) error {
			return s.Manager.Cancel(ctx, runID)
		})
	}
	if port := s.cfg.Metrics.PrometheusPort; port != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, port); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	h, err := s.Handler()
	if err != nil {
		return err
	}
	srv := &http.Server{Addr: s.cfg.API.Address, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("api listening on %s", s.cfg.API.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.notifier != nil {
		s.notifier.Disconnect()
	}
	// Closing the manager also closes the bus and the audit store.
	errs = append(errs, s.Manager.Close())
	if n := s.bus.Dropped(); n > 0 {
		s.log.Warnf("%d run events were dropped on full subscriber buffers", n)
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	errs = append(errs, s.Store.Close())
	coremon.Flush(s.cfg.Sentry.FlushTimeout())
	return errors.Join(errs...)
}
