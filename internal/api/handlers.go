package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harrylevesque/aviator/internal/bridge"
	"github.com/harrylevesque/aviator/internal/hub"
	"github.com/harrylevesque/aviator/internal/models"
	"github.com/harrylevesque/aviator/internal/utils"
)

const tracerName = "github.com/harrylevesque/aviator/internal/api"

const (
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 4096
)

// Registry is the read side of the app store the handlers need.
type Registry interface {
	List() []models.App
	GetByID(id string) (models.App, bool)
}

// Launcher starts a registered executable and returns its pid.
type Launcher interface {
	Run(path, args string) (int, error)
}

// Handlers serves the REST and streaming endpoints. Hub membership changes
// are posted to the loop so they serialize with broadcasts.
type Handlers struct {
	registry Registry
	launcher Launcher
	hub      *hub.Hub
	loop     bridge.Poster
	version  string
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewHandlers(reg Registry, l Launcher, h *hub.Hub, loop bridge.Poster, version string, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = utils.DiscardLogger()
	}
	return &Handlers{
		registry: reg,
		launcher: l,
		hub:      h,
		loop:     loop,
		version:  version,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Phones load the client from this host or a dev server.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type launchResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	PID     int    `json:"pid"`
}

type infoResponse struct {
	Hostname string `json:"hostname"`
	Status   string `json:"status"`
	Backend  string `json:"backend"`
	Version  string `json:"version"`
	Clients  int    `json:"clients"`
}

// ListAppsHandler returns every registered app as a JSON array.
func (h *Handlers) ListAppsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.List())
}

// LaunchHandler starts the app named by the {id} path variable.
func (h *Handlers) LaunchHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	_, span := otel.Tracer(tracerName).Start(r.Context(), "api.launch")
	defer span.End()
	span.SetAttributes(attribute.String("aviator.app.id", id))

	app, ok := h.registry.GetByID(id)
	if !ok {
		span.SetStatus(codes.Error, "unknown app")
		writeError(w, http.StatusNotFound, "App not found")
		return
	}

	pid, err := h.launcher.Run(app.Path, app.Args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		status := http.StatusInternalServerError
		var ce *utils.CustomError
		if errors.As(err, &ce) {
			status = ce.HTTPStatus()
		}
		if status == http.StatusNotFound {
			writeError(w, status, "Executable file not found on disk")
			return
		}
		h.logger.Error("api: launch failed", "id", id, "name", app.Name, "err", err)
		writeError(w, status, err.Error())
		return
	}

	span.SetAttributes(attribute.Int("aviator.pid", pid))
	h.logger.Info("api: launched", "id", id, "name", app.Name, "pid", pid)
	writeJSON(w, http.StatusOK, launchResponse{
		Status:  "success",
		Message: "Launched " + app.Name,
		PID:     pid,
	})
}

// InfoHandler reports host identity and status.
func (h *Handlers) InfoHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, infoResponse{
		Hostname: utils.GetDisplayName(),
		Status:   "running",
		Backend:  "go",
		Version:  h.version,
		Clients:  h.hub.Count(),
	})
}

// WebSocketHandler upgrades the request and keeps the channel open until the
// client goes away. Inbound frames are read and discarded.
func (h *Handlers) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		h.logger.Debug("api: websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	if err := h.loop.Post(func(context.Context) { h.hub.Connect(conn) }); err != nil {
		h.logger.Warn("api: serving loop unavailable, rejecting websocket", "err", err)
		return
	}
	defer h.release(conn)

	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go h.ping(conn, done)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.logger.Debug("api: websocket read ended", "err", err)
			}
			return
		}
	}
}

// release removes conn from the hub, inline if the loop has already stopped.
func (h *Handlers) release(conn *websocket.Conn) {
	if err := h.loop.Post(func(context.Context) { h.hub.Disconnect(conn) }); err != nil {
		h.hub.Disconnect(conn)
	}
}

// ping keeps idle channels alive through NATs and phone sleep. WriteControl
// may run concurrently with the loop's data writes.
func (h *Handlers) ping(conn *websocket.Conn, done <-chan struct{}) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(hub.DefaultWriteTimeout)); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
