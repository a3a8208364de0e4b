// Package app assembles the serving side of the host: registry, hub, event
// loop, HTTP server and discovery advertiser.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/harrylevesque/aviator/internal/api"
	"github.com/harrylevesque/aviator/internal/bridge"
	"github.com/harrylevesque/aviator/internal/config"
	"github.com/harrylevesque/aviator/internal/discovery"
	"github.com/harrylevesque/aviator/internal/hub"
	"github.com/harrylevesque/aviator/internal/launcher"
	"github.com/harrylevesque/aviator/internal/metrics"
	"github.com/harrylevesque/aviator/internal/mobile"
	"github.com/harrylevesque/aviator/internal/registry"
	"github.com/harrylevesque/aviator/internal/utils"
)

// Host is one running Aviator instance.
type Host struct {
	Config   config.Config
	Registry *registry.Store
	Hub      *hub.Hub
	Loop     *bridge.Loop

	logger     *slog.Logger
	version    string
	gatherer   *prometheus.Registry
	metrics    *metrics.Metrics
	advertiser *discovery.Advertiser
	listenAddr string

	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
	loopDone <-chan error
}

// New builds the components and loads the registry. Nothing listens until
// Start.
func New(cfg config.Config, version string, logger *slog.Logger) *Host {
	if logger == nil {
		logger = utils.DiscardLogger()
	}

	gatherer := prometheus.NewRegistry()
	gatherer.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(gatherer)

	store := registry.NewStore(cfg.Registry,
		registry.WithLogger(logger),
		registry.WithMetrics(m),
	)
	h := hub.New(
		hub.WithLogger(logger),
		hub.WithMetrics(m),
		hub.WithWriteTimeout(cfg.WriteTimeout),
	)
	loop := bridge.NewLoop(logger)
	store.AddListener(bridge.New(loop, h, hub.UpdateMessage, logger, m).NotifyChanged)

	return &Host{
		Config:     cfg,
		Registry:   store,
		Hub:        h,
		Loop:       loop,
		logger:     logger,
		version:    version,
		gatherer:   gatherer,
		metrics:    m,
		advertiser: discovery.New(cfg.ServiceName, cfg.Port, version, logger),
		listenAddr: cfg.Addr(),
	}
}

// Start binds the listener, starts the event loop and the HTTP server, and
// advertises the service. Only a failure to listen is returned; a failed
// advertisement is logged and serving continues.
func (h *Host) Start(ctx context.Context) error {
	static, err := mobile.StaticFS()
	if err != nil {
		return fmt.Errorf("load web client: %w", err)
	}

	ln, err := net.Listen("tcp", h.listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", h.listenAddr, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done, err := h.Loop.Start(ctx)
	if err != nil {
		cancel()
		ln.Close()
		return err
	}
	h.cancel, h.loopDone, h.listener = cancel, done, ln

	handlers := api.NewHandlers(h.Registry, launcher.New(h.logger, h.metrics), h.Hub, h.Loop, h.version, h.logger)
	h.server = api.NewHTTPServer(h.listenAddr, api.NewRouter(handlers, static, h.gatherer))

	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("app: http server stopped", "err", err)
		}
	}()
	h.logger.Info("app: serving", "addr", ln.Addr().String(), "registry", h.Registry.Path())

	if h.Config.Advertise {
		if err := h.advertiser.Register(); err != nil {
			h.logger.Warn("app: service discovery unavailable", "err", err)
		}
	}
	return nil
}

// Addr returns the bound listen address, or the configured one before Start.
func (h *Host) Addr() string {
	if h.listener != nil {
		return h.listener.Addr().String()
	}
	return h.listenAddr
}

// Port returns the bound TCP port.
func (h *Host) Port() int {
	_, p, err := net.SplitHostPort(h.Addr())
	if err != nil {
		return h.Config.Port
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return h.Config.Port
	}
	return n
}

// LocalURL and NetworkURL are what the operator shares with clients.
func (h *Host) LocalURL() string {
	return fmt.Sprintf("http://localhost:%d", h.Port())
}

func (h *Host) NetworkURL() string {
	return fmt.Sprintf("http://%s:%d", discovery.OutboundIP(), h.Port())
}

// Close withdraws the advertisement and stops serving without draining
// in-flight requests.
func (h *Host) Close() {
	h.advertiser.Unregister()
	if h.server != nil {
		if err := h.server.Close(); err != nil {
			h.logger.Debug("app: http close", "err", err)
		}
	}
	h.Hub.Close()
	if h.cancel != nil {
		h.cancel()
		<-h.loopDone
		h.cancel = nil
	}
	h.logger.Info("app: stopped")
}
