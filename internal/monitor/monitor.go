// Package monitor serves the driver's published statistics over HTTP.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"go.uber.org/zap"

	"github.com/criticalpoint/syncbridge/internal/driver"
)

// StatsSource is anything publishing driver statistics. Stats must be safe
// to call from the server goroutine.
type StatsSource interface {
	Stats() driver.Stats
}

// Monitor exposes /api/stats, /api/registry, /api/last_tick and
// /api/resource.
type Monitor struct {
	source StatsSource
	log    *zap.Logger
	router *mux.Router

	server   *http.Server
	listener net.Listener
}

func New(source StatsSource, log *zap.Logger) *Monitor {
	m := &Monitor{source: source, log: log}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Methods(http.MethodGet).Subrouter()
	api.HandleFunc("/stats", m.stats)
	api.HandleFunc("/registry", m.registry)
	api.HandleFunc("/last_tick", m.lastTick)
	api.HandleFunc("/resource", m.resource)
	m.router = r
	return m
}

// Handler returns the router, for embedding or tests.
func (m *Monitor) Handler() http.Handler { return m.router }

// Start listens on addr and serves in the background. An empty port picks a
// free one; Addr reports it.
func (m *Monitor) Start(addr string) error {
	if m.server != nil {
		return errors.New("monitor: already started")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	m.listener = ln
	m.server = &http.Server{
		Handler:           m.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.log.Info("monitor listening", zap.String("addr", ln.Addr().String()))

	go func() {
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error("monitor stopped", zap.Error(err))
		}
	}()
	return nil
}

func (m *Monitor) Addr() net.Addr {
	if m.listener == nil {
		return nil
	}
	return m.listener.Addr()
}

func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}

func (m *Monitor) stats(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, m.source.Stats())
}

func (m *Monitor) registry(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, m.source.Stats().Registry)
}

func (m *Monitor) lastTick(w http.ResponseWriter, _ *http.Request) {
	s := m.source.Stats()
	if s.Seq == 0 {
		http.Error(w, "no tick yet", http.StatusNotFound)
		return
	}
	m.writeJSON(w, s.LastTick)
}

type resourceRsp struct {
	PID        int32   `json:"pid"`
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) resource(w http.ResponseWriter, _ *http.Request) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		m.fail(w, err)
		return
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		m.fail(w, err)
		return
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		m.fail(w, err)
		return
	}
	m.writeJSON(w, resourceRsp{PID: p.Pid, CPUPercent: cpu, MemorySize: mem.RSS})
}

func (m *Monitor) fail(w http.ResponseWriter, err error) {
	m.log.Warn("monitor request", zap.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.log.Warn("monitor encode", zap.Error(err))
	}
}
