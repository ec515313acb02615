package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/Tyrowin/collabchat/internal/domain"
)

// chatTimeLayout renders parseable timestamps on the plain-text chat export.
const chatTimeLayout = "02/01/2006, 15:04:05"

// WebSocketHandler upgrades the request and hands the connection to the hub,
// which sends the initial snapshot and starts the pumps.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("addr", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	s.hub.Serve(NewClient(conn, s.router, r.RemoteAddr, s.clientOptions()))
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "collabchat server is running!")
}

// ChatHandler returns the chat history as plain text, one
// "[time] author: text" line per message.
func (s *Server) ChatHandler(w http.ResponseWriter, _ *http.Request) {
	history := s.state.Snapshot().History
	lines := lo.Map(history, func(m domain.ChatMessage, _ int) string {
		m.Timestamp = displayTimestamp(m.Timestamp)
		return m.FormatLine()
	})

	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, strings.Join(lines, "\n"))
}

// DocumentHandler returns the raw document content.
func (s *Server) DocumentHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, s.state.DocumentText())
}

type postMessageRequest struct {
	Message string `json:"message"`
	Author  string `json:"author"`
}

// PostMessageHandler appends a chat message stamped with the server time and
// broadcasts it to every websocket client.
func (s *Server) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.Message == "" || req.Author == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Message or author is empty"})
		return
	}

	if _, err := s.router.AppendMessage(req.Author, req.Message, ""); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": ErrMsgInvalidMessage})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": ErrMsgSaveChat})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

func displayTimestamp(ts string) string {
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return parsed.UTC().Format(chatTimeLayout)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Error writing JSON response")
	}
}

// TestPageHandler serves an HTML page that speaks the websocket protocol:
// it shows the chat and the shared document and can edit both.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPage); err != nil {
		log.Warn().Err(err).Msg("Error writing HTML response")
	}
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>collabchat test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages { border: 1px solid #ccc; height: 250px; padding: 10px; overflow-y: scroll; background-color: #f9f9f9; }
        #doc { width: 100%; height: 150px; margin-top: 10px; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>collabchat</h1>
    <div id="status" class="status disconnected">Disconnected</div>
    <div>
        <input type="text" id="author" placeholder="Your name">
        <input type="text" id="text" placeholder="Type a message...">
        <button onclick="sendMessage()">Send</button>
    </div>
    <div id="messages"></div>
    <textarea id="doc" oninput="sendDocument()"></textarea>

    <script>
        const messages = document.getElementById('messages');
        const statusDiv = document.getElementById('status');
        const doc = document.getElementById('doc');
        const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');

        function line(text) {
            const el = document.createElement('div');
            el.textContent = text;
            messages.appendChild(el);
            messages.scrollTop = messages.scrollHeight;
        }

        ws.onopen = function() {
            statusDiv.textContent = 'Connected';
            statusDiv.className = 'status connected';
        };
        ws.onclose = function() {
            statusDiv.textContent = 'Disconnected';
            statusDiv.className = 'status disconnected';
        };
        ws.onmessage = function(event) {
            const data = JSON.parse(event.data);
            switch (data.type) {
            case 'system': line('* ' + data.message); break;
            case 'error': line('! ' + data.message); break;
            case 'document': if (doc.value !== data.content) { doc.value = data.content; } break;
            case 'chatHistory': data.history.forEach(function(m) { line('[' + m.timestamp + '] ' + m.author + ': ' + m.text); }); break;
            case 'broadcast': line('[' + data.timestamp + '] ' + data.author + ': ' + data.text); break;
            }
        };

        function sendMessage() {
            const text = document.getElementById('text');
            ws.send(JSON.stringify({
                type: 'message',
                author: document.getElementById('author').value,
                text: text.value,
                timestamp: new Date().toISOString()
            }));
            text.value = '';
        }

        function sendDocument() {
            ws.send(JSON.stringify({ type: 'document', content: doc.value }));
        }
    </script>
</body>
</html>`
