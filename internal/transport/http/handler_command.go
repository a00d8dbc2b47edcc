package httptransport

import (
	"encoding/json"
	"net/http"
	"strings"

	"galaxy-core/internal/command"

	"github.com/go-chi/chi/v5"
)

type CommandHandlers struct {
	registry *command.Registry
}

func NewCommandHandlers(reg *command.Registry) *CommandHandlers {
	return &CommandHandlers{registry: reg}
}

// List returns the catalogue, or only the commands tagged ?capability=.
func (h *CommandHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var items []command.Definition
		if c := strings.TrimSpace(r.URL.Query().Get("capability")); c != "" {
			items = h.registry.ByCapability(c)
		} else {
			items = h.registry.AllMeta()
		}
		WriteJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

func (h *CommandHandlers) Stats() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, h.registry.Stats())
	}
}

func (h *CommandHandlers) Execute() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricCommandRequestsTotal.Add(1)
		var body struct {
			ActorID string         `json:"actor_id"`
			Args    map[string]any `json:"args"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			metricCommandRequestErrors.Add(1)
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if strings.TrimSpace(body.ActorID) == "" {
			metricCommandRequestErrors.Add(1)
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		res := h.registry.Execute(r.Context(), chi.URLParam(r, "command_id"), command.ExecContext{
			SessionID: chi.URLParam(r, "session_id"),
			ActorID:   body.ActorID,
			Args:      body.Args,
		})
		status := resultStatus(res)
		if status != http.StatusOK {
			metricCommandRequestErrors.Add(1)
		}
		WriteJSON(w, status, res)
	}
}

func resultStatus(res command.Result) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.Code {
	case command.CodeUnknownCommand, command.CodeUnknownActor:
		return http.StatusNotFound
	case command.CodeValidationFailed, command.CodeUnknownCounter:
		return http.StatusUnprocessableEntity
	case command.CodeInsufficientResource:
		return http.StatusPaymentRequired
	case command.CodeContention:
		return http.StatusConflict
	case command.CodeLedgerUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
