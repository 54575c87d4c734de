package v1

import (
	"net/http"

	"github.com/gorilla/mux"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/blobcache/blobcache/internal/coordinator"
)

// Events streams resolution updates for one tracked resolution over a
// WebSocket. The current state is pushed first, then every change until
// the client disconnects. Slow consumers may miss intermediate progress
// updates; the most recent state always arrives.
func (h *ResolveHandler) Events(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	out, ok := h.svc.Get(id)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.l.Error("websocket accept", "id", id, "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "done") }()

	// latest-wins buffer: the watcher must not block, and a consumer
	// that lags only cares about the newest state anyway
	updates := make(chan coordinator.Update, 1)
	push := func(u coordinator.Update) {
		for {
			select {
			case updates <- u:
				return
			default:
				select {
				case <-updates:
				default:
				}
			}
		}
	}
	release, ok := h.svc.Watch(id, push)
	if !ok {
		return
	}
	defer release()

	ctx := r.Context()
	if err := wsjson.Write(ctx, conn, coordinator.Update{Resolution: out.Resolution, Job: out.Job}); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-updates:
			if err := wsjson.Write(ctx, conn, u); err != nil {
				return
			}
		}
	}
}
