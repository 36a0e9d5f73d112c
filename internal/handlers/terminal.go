package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/skiffterm/skiff/internal/audit"
	"github.com/skiffterm/skiff/internal/terminal"
)

// maxInputMessageSize is the largest accepted terminal input message.
const maxInputMessageSize = 64 * 1024

// maxResizeCols and maxResizeRows bound resize requests.
const (
	maxResizeCols = 500
	maxResizeRows = 500
)

type termResizeMsg struct {
	Type string `json:"type"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
}

// TerminalWS attaches a viewer to a session's terminal over WebSocket.
//
// On attach the surface is created (if needed), registered in the LRU
// cache, and the shell is started through the arbiter gate. The
// scrollback snapshot is replayed first, then live output streams as
// binary messages. Text messages carry resize requests; binary messages
// carry shell input.
func (a *API) TerminalWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s := a.Mgr.Get(id)
	if s == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("[handlers] accept terminal websocket: %v", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1024 * 1024)

	ctx := r.Context()

	surf, ok := a.Mgr.Terminal(id)
	if !ok {
		surf = terminal.NewSurface(id, a.ScrollbackBytes)
		if cols, rows := parseSizeQuery(r); cols > 0 && rows > 0 {
			surf.SetSize(cols, rows)
		}
		a.Mgr.RegisterTerminal(surf, id)
	}
	a.Mgr.TouchTerminal(id)
	surf.SetVisible(true)
	defer surf.SetVisible(false)

	if err := a.Mgr.StartShell(ctx, id); err != nil {
		log.Printf("[handlers] start shell for %s: %v", id, err)
		// The session may be reconnecting in the background; keep the
		// socket open so the viewer sees recovery output.
	}
	if a.Auditor != nil {
		a.Auditor.Log(s.ID, s.ServerID, audit.EventTerminalAttached, "")
	}

	relayCtx, relayCancel := context.WithCancel(ctx)
	defer relayCancel()
	a.Mgr.SetCancelHandler(id, relayCancel)

	// Replay the scrollback history, then stream each new output chunk
	// as it lands in the buffer.
	detach := surf.Scrollback().Attach(&socketWriter{ctx: relayCtx, conn: conn})
	defer detach()

	// Viewer -> shell stdin / resize.
	for {
		msgType, data, err := conn.Read(relayCtx)
		if err != nil {
			break
		}

		if msgType == websocket.MessageBinary {
			if len(data) > maxInputMessageSize {
				log.Printf("[handlers] terminal input too large: session=%s size=%d", id, len(data))
				continue
			}
			stdin, ok := a.Mgr.ShellStdin(id)
			if !ok {
				continue
			}
			if _, err := stdin.Write(data); err != nil {
				break
			}
		} else {
			var msg termResizeMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			if msg.Type == "resize" && msg.Cols > 0 && msg.Rows > 0 {
				cols, rows := msg.Cols, msg.Rows
				if cols > maxResizeCols {
					cols = maxResizeCols
				}
				if rows > maxResizeRows {
					rows = maxResizeRows
				}
				if err := a.Mgr.ResizeTerminal(id, cols, rows); err != nil {
					log.Printf("[handlers] resize %s: %v", id, err)
				}
			}
		}
	}

	conn.Close(websocket.StatusNormalClosure, "")
}

// socketWriter adapts a websocket connection to the io.Writer shape the
// scrollback sink expects. A write error detaches the sink.
type socketWriter struct {
	ctx  context.Context
	conn *websocket.Conn
}

func (w *socketWriter) Write(p []byte) (int, error) {
	if err := w.conn.Write(w.ctx, websocket.MessageBinary, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func parseSizeQuery(r *http.Request) (cols, rows int) {
	cols, _ = strconv.Atoi(r.URL.Query().Get("cols"))
	rows, _ = strconv.Atoi(r.URL.Query().Get("rows"))
	return cols, rows
}
