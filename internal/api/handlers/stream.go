package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wonny/canslim-screener/internal/flow"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Stream pushes StatusView frames whenever the flow changes, then closes once terminal
// GET /api/flows/{id}/stream (websocket)
func (h *FlowHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	// 업그레이드 전에 존재 여부 확인 (404는 일반 HTTP로 응답)
	if _, err := h.service.Status(r.Context(), id); err != nil {
		h.statusFailed(w, id, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// 클라이언트 종료 감지용 read loop
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx := r.Context()
	poll := time.NewTicker(h.pollInterval)
	defer poll.Stop()
	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	var last []byte
	for {
		f, err := h.service.Status(ctx, id)
		if err != nil {
			h.logger.WithError(err).WithField("flow_id", id).Warn("Stream status read failed")
			return
		}
		view := flow.NewStatusView(f)

		frame, err := json.Marshal(view)
		if err != nil {
			return
		}
		if !bytes.Equal(frame, last) {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
			last = frame
		}

		if view.Terminal {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(f.State)))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-poll.C:
		}
	}
}
