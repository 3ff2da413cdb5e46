package api

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Event is one message on the /api/ws feed.
type Event struct {
	Type   string `json:"type"`
	Stream string `json:"stream,omitempty"`
	Value  any    `json:"value,omitempty"`
}

var (
	wsMu      sync.Mutex
	wsClients = map[*websocket.Conn]struct{}{}
)

// Publish fans an event out to every connected websocket client. Slow or
// dead clients are dropped, the feed is best effort.
func Publish(ev Event) {
	wsMu.Lock()
	defer wsMu.Unlock()

	for conn := range wsClients {
		if err := conn.WriteJSON(ev); err != nil {
			_ = conn.Close()
			delete(wsClients, conn)
		}
	}
}

func initWS(origin string) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  512,
		WriteBufferSize: 4096,
	}

	if origin == "*" {
		upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}

	HandleFunc("api/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug().Err(err).Msg("[api] ws upgrade")
			return
		}

		log.Trace().Str("addr", r.RemoteAddr).Msg("[api] ws connect")

		wsMu.Lock()
		wsClients[conn] = struct{}{}
		wsMu.Unlock()

		// drain control frames until the peer goes away
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
			wsMu.Lock()
			delete(wsClients, conn)
			wsMu.Unlock()
			_ = conn.Close()
		}()
	})
}
