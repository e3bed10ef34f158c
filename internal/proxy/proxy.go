// Package proxy serves the subdomain-routed reverse proxy: one listener on
// settings.proxy_port that cold-starts, health-checks, and forwards to each
// project's dev server, and bridges WebSocket upgrades directly.
package proxy

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/lazydevhq/lazydev/internal/config"
	"github.com/lazydevhq/lazydev/internal/process"
	"github.com/lazydevhq/lazydev/internal/store"
)

// Server is the reverse proxy's http.Handler and listener owner.
type Server struct {
	store      *store.Store
	supervisor *process.Supervisor
	cfgSource  func() *config.Config
	health     *healthCache
}

// New creates a proxy server. cfgSource must always return the latest
// routing table and settings (typically backed by a config.Watcher).
func New(st *store.Store, sup *process.Supervisor, cfgSource func() *config.Config) *Server {
	return &Server{
		store:      st,
		supervisor: sup,
		cfgSource:  cfgSource,
		health:     newHealthCache(),
	}
}

// ListenAndServe binds settings.proxy_port on loopback and serves until ctx
// is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.cfgSource().Settings.ProxyPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("proxy: listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: s}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		srv.Close()
		return nil
	case err := <-errCh:
		return err
	}
}

func subdomainFromHost(host string) string {
	host = strings.ToLower(host)
	if idx := strings.IndexByte(host, ':'); idx >= 0 {
		host = host[:idx]
	}
	const suffix = ".localhost"
	if strings.HasSuffix(host, suffix) {
		return strings.TrimSuffix(host, suffix)
	}
	return ""
}

func (s *Server) lookupProject(r *http.Request) *config.Project {
	label := subdomainFromHost(r.Host)
	if label == "" {
		return nil
	}
	cfg := s.cfgSource()
	rt := config.BuildRoutingTable(cfg)
	return rt[label]
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	proj := s.lookupProject(r)
	if proj == nil {
		http.Error(w, "Project not found", http.StatusNotFound)
		return
	}

	if isWebSocketUpgrade(r) {
		s.handleWebSocket(w, r, proj)
		return
	}
	s.handleHTTP(w, r, proj)
}

func (s *Server) handleHTTP(w http.ResponseWriter, r *http.Request, proj *config.Project) {
	name := proj.Name
	st, _ := s.store.GetState(name)

	port := st.Port
	if st.Status == store.StatusRunning && port != 0 {
		if healthy, cached := s.health.healthy(port); cached && healthy {
			s.store.UpdateActivity(name)
			s.forward(w, r, port)
			return
		}
		if s.health.probeWithBackoff(port) {
			s.store.UpdateActivity(name)
			s.forward(w, r, port)
			return
		}
		// Falls through to a cold start: the cached port is no longer
		// answering even after the backoff window.
	}

	newPort, _, err := s.supervisor.Start(r.Context(), name, proj, s.cfgSource().Settings)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to start %s: %v", name, err), http.StatusServiceUnavailable)
		return
	}
	s.store.UpdateActivity(name)
	s.forward(w, r, newPort)
}

// forward builds a one-shot reverse proxy to localhost:port per request,
// rewriting the Host header and tagging X-Forwarded-Host/Proto on the way
// upstream (§4.E step 6).
func (s *Server) forward(w http.ResponseWriter, r *http.Request, port int) {
	target := &url.URL{Scheme: "http", Host: fmt.Sprintf("localhost:%d", port)}
	originalHost := r.Host

	rp := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = target.Scheme
			req.URL.Host = target.Host
			req.Host = target.Host
			req.Header.Set("X-Forwarded-Host", originalHost)
			req.Header.Set("X-Forwarded-Proto", "http")
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Printf("[proxy] upstream %s unreachable: %v", target.Host, err)
			http.Error(w, fmt.Sprintf("%s: %v", process.ErrUpstreamUnreachable, err), http.StatusServiceUnavailable)
		},
	}
	rp.ServeHTTP(w, r)
}

func portURL(port int, path, rawQuery string) string {
	u := url.URL{Scheme: "http", Host: fmt.Sprintf("localhost:%d", port), Path: path, RawQuery: rawQuery}
	return u.String()
}
