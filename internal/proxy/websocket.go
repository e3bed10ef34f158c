package proxy

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/lazydevhq/lazydev/internal/config"
	"github.com/lazydevhq/lazydev/internal/store"
)

var upgrader = websocket.Upgrader{
	// Dev-loopback proxy: every origin is trusted, matching this lineage's
	// own WS client plumbing which never runs a same-origin check either.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func isWebSocketUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, proj *config.Project) {
	name := proj.Name
	st, _ := s.store.GetState(name)

	port := st.Port
	if st.Status != store.StatusRunning || port == 0 {
		newPort, _, err := s.supervisor.Start(r.Context(), name, proj, s.cfgSource().Settings)
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to start %s: %v", name, err), http.StatusServiceUnavailable)
			return
		}
		port = newPort
	}

	upstreamURL := fmt.Sprintf("ws://localhost:%d%s", port, r.URL.RequestURI())
	upstreamConn, _, err := websocket.DefaultDialer.Dial(upstreamURL, nil)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to reach upstream websocket for %s: %v", name, err), http.StatusServiceUnavailable)
		return
	}

	clientConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		upstreamConn.Close()
		log.Printf("[proxy] websocket upgrade for %s failed: %v", name, err)
		return
	}

	s.store.IncWS(name)
	connected := true
	dec := func() {
		if connected {
			connected = false
			s.store.DecWS(name)
		}
	}

	bridgeWebSocket(clientConn, upstreamConn, dec)
}

// bridgeWebSocket pumps frames in both directions with one goroutine per
// direction, closing both sides as soon as either closes or errors.
func bridgeWebSocket(client, upstream *websocket.Conn, onClientClose func()) {
	done := make(chan struct{}, 2)

	go func() {
		defer func() { done <- struct{}{} }()
		for {
			mt, msg, err := upstream.ReadMessage()
			if err != nil {
				return
			}
			if err := client.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}()

	go func() {
		defer func() { done <- struct{}{} }()
		for {
			mt, msg, err := client.ReadMessage()
			if err != nil {
				return
			}
			if err := upstream.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}()

	<-done
	onClientClose()
	client.Close()
	upstream.Close()
}
