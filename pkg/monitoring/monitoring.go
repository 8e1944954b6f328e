// Package monitoring exposes Prometheus metrics and pprof over HTTP.
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/camview/camview/pkg/config"
	"github.com/camview/camview/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Monitoring struct {
	conf    config.Monitoring
	log     *logger.Logger
	metrics *Metrics
	server  *http.Server
	ln      net.Listener
}

// New creates new monitoring service serving the metrics m.
func New(conf config.Monitoring, m *Metrics, log *logger.Logger) *Monitoring {
	mon := &Monitoring{conf: conf, log: log.Module("monitoring"), metrics: m}
	mon.server = &http.Server{Addr: fmt.Sprintf(":%d", conf.Port), ReadHeaderTimeout: 5 * time.Second}
	mon.server.Handler = mon.handler()
	return mon
}

func (m *Monitoring) handler() http.Handler {
	h := http.NewServeMux()
	if m.conf.ProfilingEnabled {
		prefix := fmt.Sprintf("%s/debug/pprof", m.conf.URLPrefix)
		m.log.Info().Msgf("Profiling is enabled at %v", m.server.Addr+prefix)
		h.HandleFunc(prefix+"/", pprof.Index)
		h.HandleFunc(prefix+"/cmdline", pprof.Cmdline)
		h.HandleFunc(prefix+"/profile", pprof.Profile)
		h.HandleFunc(prefix+"/symbol", pprof.Symbol)
		h.HandleFunc(prefix+"/trace", pprof.Trace)
		// named profiles are not served by the index under a custom prefix
		for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
			h.Handle(prefix+"/"+name, pprof.Handler(name))
		}
	}
	if m.conf.MetricEnabled {
		path := fmt.Sprintf("%s/metrics", m.conf.URLPrefix)
		m.log.Info().Msgf("Prometheus metric is enabled at %v", m.server.Addr+path)
		h.Handle(path, promhttp.HandlerFor(m.metrics.reg, promhttp.HandlerOpts{}))
	}
	return h
}

// Run starts serving in the background.
func (m *Monitoring) Run() error {
	ln, err := net.Listen("tcp", m.server.Addr)
	if err != nil {
		return fmt.Errorf("monitoring listen: %w", err)
	}
	m.ln = ln
	m.log.Info().Msgf("Starting monitoring server at %v", ln.Addr())
	go func() {
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error().Err(err).Msg("Monitoring server has failed")
		}
	}()
	return nil
}

// Addr is the listening address once Run succeeded.
func (m *Monitoring) Addr() string {
	if m.ln == nil {
		return m.server.Addr
	}
	return m.ln.Addr().String()
}

func (m *Monitoring) Shutdown(ctx context.Context) error {
	m.log.Info().Msg("Shutting down monitoring server")
	return m.server.Shutdown(ctx)
}

func (m *Monitoring) String() string {
	return fmt.Sprintf("monitoring::%s:%d", m.conf.URLPrefix, m.conf.Port)
}
