package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"printmatch/internal/callback"
	"printmatch/internal/workflow"

	"github.com/go-chi/chi/v5"
)

// Handler оборачивает каталог и маршрутизатор событий
type Handler struct {
	Store  StorageInterface
	Router Dispatcher
	Logger *slog.Logger
}

// NewHandler создает новый Handler
func NewHandler(store StorageInterface, router Dispatcher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Store: store, Router: router, Logger: logger}
}

// PingHandler отвечает "ok" для проверки сервера
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// eventRequest - тело POST /api/participants/{participantId}/events
type eventRequest struct {
	Text     string `json:"text"`
	Callback string `json:"callback"`
}

// EventHandler принимает событие участника и возвращает ответ бота.
// Тот же путь, что и у сообщений из чата, только без транспорта:
// participantId никто не подтверждает, поэтому админские команды закрыты.
func (h *Handler) EventHandler(w http.ResponseWriter, r *http.Request) {
	participant, err := callback.PositiveID(chi.URLParam(r, "participantId"))
	if err != nil {
		http.Error(w, "Invalid participantId", http.StatusBadRequest)
		return
	}

	// Ограничение размера тела, чтобы избежать DoS
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req eventRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if (req.Text == "") == (req.Callback == "") {
		http.Error(w, "exactly one of text or callback is required", http.StatusBadRequest)
		return
	}

	reply, err := h.Router.Dispatch(r.Context(), workflow.Event{
		Participant: participant,
		Text:        req.Text,
		Callback:    req.Callback,
		Untrusted:   true,
	})
	if errors.Is(err, workflow.ErrBadCallback) {
		http.Error(w, "Invalid callback", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.Logger.Error("dispatch event", "participant", participant, "error", err)
		http.Error(w, "Failed to process event", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(reply)
}
