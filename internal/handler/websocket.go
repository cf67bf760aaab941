package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"potholewatch/internal/httputil"
	"potholewatch/internal/logger"
	"potholewatch/internal/service/realtime"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var feedTables = map[string]bool{
	realtime.TablePotholes:      true,
	realtime.TableVehicles:      true,
	realtime.TableNotifications: true,
}

// RealtimeHandler handles GET /api/realtime?tables=potholes,vehicles. Each
// subscribed table first receives a SNAPSHOT event, then its change events.
// Without tables every table is subscribed.
func RealtimeHandler(hub *realtime.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var tables []string
		if raw := r.URL.Query().Get("tables"); raw != "" {
			for _, t := range strings.Split(raw, ",") {
				t = strings.TrimSpace(t)
				if !feedTables[t] {
					httputil.BadRequest(w, "unknown table "+t)
					return
				}
				tables = append(tables, t)
			}
		} else {
			tables = []string{realtime.TablePotholes, realtime.TableVehicles, realtime.TableNotifications}
		}

		serveSubscriber(w, r, hub, logger, "Realtime subscriber", tables...)
	}
}

// LiveViewHandler handles viewer connections to /api/live/view and streams
// annotated live frames.
func LiveViewHandler(hub *realtime.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveSubscriber(w, r, hub, logger, "Live viewer", realtime.TopicLive)
	}
}

// serveSubscriber registers the upgraded connection with the hub and blocks
// reading until the client goes away. The hub owns all writes.
func serveSubscriber(w http.ResponseWriter, r *http.Request, hub *realtime.HubService, logger *logger.Logger, kind string, topics ...string) {
	connection, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade error: %v", err)
		return
	}

	if !hub.Register(connection, topics...) {
		connection.Close()
		return
	}
	defer hub.Unregister(connection)

	logger.Info("%s connected (%s)", kind, strings.Join(topics, ","))

	for {
		_, _, err := connection.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Info("%s disconnected normally", kind)
			} else {
				logger.Warning("%s disconnected: %v", kind, err)
			}
			break
		}
	}
}
