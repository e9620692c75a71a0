// Package handlers exposes the voice platform webhook over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/zhukovDV72toru/alice/internal/dialog"
	"github.com/zhukovDV72toru/alice/pkg/logging"
)

// webhookRequest is the envelope the voice platform posts on every
// user turn.
type webhookRequest struct {
	Version string `json:"version"`
	Session struct {
		New       bool   `json:"new"`
		SessionID string `json:"session_id"`
		UserID    string `json:"user_id"`
		User      struct {
			UserID string `json:"user_id"`
		} `json:"user"`
		Application struct {
			ApplicationID string `json:"application_id"`
		} `json:"application"`
	} `json:"session"`
	Request struct {
		Command           string `json:"command"`
		OriginalUtterance string `json:"original_utterance"`
	} `json:"request"`
}

type webhookResponse struct {
	Version  string `json:"version"`
	Response struct {
		Text       string `json:"text"`
		TTS        string `json:"tts,omitempty"`
		EndSession bool   `json:"end_session"`
	} `json:"response"`
}

// userID prefers the stable authenticated id and falls back to the
// per-device application id for anonymous users.
func (r *webhookRequest) userID() string {
	if r.Session.User.UserID != "" {
		return r.Session.User.UserID
	}
	if r.Session.UserID != "" {
		return r.Session.UserID
	}
	return r.Session.Application.ApplicationID
}

// WebhookHandler turns platform envelopes into dialogue turns.
type WebhookHandler struct {
	machine *dialog.Machine
	logger  *logging.Logger
}

// NewWebhookHandler builds the handler.
func NewWebhookHandler(machine *dialog.Machine, logger *logging.Logger) *WebhookHandler {
	if machine == nil {
		panic("handlers: dialog machine cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{machine: machine, logger: logger}
}

// ServeHTTP handles POST /webhook.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("rejected malformed webhook payload", "error", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	text := req.Request.Command
	if text == "" {
		text = req.Request.OriginalUtterance
	}

	resp, err := h.machine.Handle(r.Context(), dialog.Input{
		UserID:     req.userID(),
		SessionID:  req.Session.SessionID,
		Text:       text,
		NewSession: req.Session.New,
	})
	if err != nil {
		h.logger.Error("dialogue turn failed", "session_id", req.Session.SessionID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := webhookResponse{Version: req.Version}
	if out.Version == "" {
		out.Version = "1.0"
	}
	out.Response.Text = resp.Text
	out.Response.TTS = resp.TTS
	out.Response.EndSession = resp.EndSession

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		h.logger.Error("failed to write webhook response", "error", err)
	}
}
