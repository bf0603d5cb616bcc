package handler

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"mypts/internal/domain"
	"mypts/internal/verifier"
	"mypts/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now (CORS)
	},
}

// VerifyHandler exposes on-demand verification, reconciliation, and a
// websocket stream of verification outcomes for the live dashboard.
type VerifyHandler struct {
	service *verifier.Service
	logger  logger.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

// NewVerifyHandler creates a VerifyHandler.
func NewVerifyHandler(service *verifier.Service, log logger.Logger) *VerifyHandler {
	return &VerifyHandler{
		service: service,
		logger:  log,
		conns:   make(map[*websocket.Conn]bool),
	}
}

// Verify runs one consistency check and returns the classified result,
// with the corrective operation the hub would perform if inconsistent.
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Verify(r.Context())
	if err != nil {
		respondOperationError(w, err)
		return
	}

	h.BroadcastResult(result, nil)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"result":     result,
		"correction": verifier.PlanCorrection(result),
	})
}

type reconcileRequest struct {
	Reason string `json:"reason"`
}

// Reconcile triggers the hub's corrective operation for the last detected
// inconsistency.
func (h *VerifyHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	state, message, err := h.service.Reconcile(r.Context(), req.Reason)
	if err != nil {
		respondOperationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"state":   state,
		"message": message,
	})
}

// Stream upgrades to a websocket that receives every verification outcome,
// whether triggered manually or by the scheduler.
func (h *VerifyHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()

	// Drain reads until the client goes away.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

type streamEvent struct {
	Result     *domain.ConsistencyCheckResult `json:"result,omitempty"`
	Correction *verifier.Correction           `json:"correction,omitempty"`
	Error      string                         `json:"error,omitempty"`
}

// BroadcastResult pushes a verification outcome to every connected client.
// Wired as the scheduler's result callback.
func (h *VerifyHandler) BroadcastResult(result *domain.ConsistencyCheckResult, err error) {
	event := streamEvent{Result: result}
	if result != nil {
		event.Correction = verifier.PlanCorrection(result)
	}
	if err != nil {
		event.Error = err.Error()
	}

	// Writes stay under h.mu: a gorilla connection allows at most one
	// concurrent writer, and broadcasts arrive from both HTTP handlers
	// and the scheduler callback.
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteJSON(event); err != nil {
			delete(h.conns, conn)
			conn.Close()
		}
	}
}

func (h *VerifyHandler) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		conn.Close()
	}
	h.mu.Unlock()
}
