// Package api is the webhook gateway: it resolves a token from the
// request path back to a chat destination and performs the send.
// Token resolution outcomes are logical results carried in a 200 body;
// only the rate limiter answers with an HTTP error code.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"chatrelay/pkg/chat"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/token"
	"chatrelay/pkg/utils"
)

// Config holds gateway settings.
type Config struct {
	RateMax     int
	RateWindow  time.Duration
	SendTimeout time.Duration
}

// Gateway serves the token-addressed send endpoints.
type Gateway struct {
	tokens   *token.Registry
	cfg      Config
	limiters *limiterPool
}

// New returns a Gateway over the given registry.
func New(tokens *token.Registry, cfg Config) *Gateway {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	return &Gateway{
		tokens:   tokens,
		cfg:      cfg,
		limiters: newLimiterPool(cfg.RateMax, cfg.RateWindow),
	}
}

// statusResponse is the logical outcome body shared by all endpoints.
type statusResponse struct {
	Status bool   `json:"status"`
	Msg    string `json:"msg,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Register mounts the gateway routes on r.
func (g *Gateway) Register(r *mux.Router) {
	s := r.NewRoute().Subrouter()
	s.Use(g.limitMiddleware)
	s.HandleFunc("/send/{token}", g.sendToContact).Methods(http.MethodGet, http.MethodPost)
	s.HandleFunc("/room/{token}", g.sendToRoom).Methods(http.MethodGet)
}

func (g *Gateway) sendToContact(w http.ResponseWriter, r *http.Request) {
	tok := mux.Vars(r)["token"]

	contact, err := g.tokens.ResolveContactByToken(r.Context(), tok)
	if errors.Is(err, token.ErrNotFound) {
		requestsTotal.WithLabelValues("send", "not_found").Inc()
		_ = utils.JSONWrite(w, http.StatusOK, statusResponse{Status: false, Msg: "token not exists"})
		return
	}
	if err != nil {
		requestsTotal.WithLabelValues("send", "error").Inc()
		logger.Error("contact_resolve_failed", "error", err)
		_ = utils.JSONWrite(w, http.StatusOK, statusResponse{Status: false, Error: err.Error()})
		return
	}

	content, fail := g.extractContent(r)
	if fail != nil {
		requestsTotal.WithLabelValues("send", "bad_payload").Inc()
		_ = utils.JSONWrite(w, http.StatusOK, *fail)
		return
	}

	g.deliver(w, r, "send", contact, content)
}

func (g *Gateway) sendToRoom(w http.ResponseWriter, r *http.Request) {
	tok := mux.Vars(r)["token"]

	room, err := g.tokens.ResolveRoomByToken(r.Context(), tok)
	if errors.Is(err, token.ErrNotFound) {
		requestsTotal.WithLabelValues("room", "not_found").Inc()
		_ = utils.JSONWrite(w, http.StatusOK, statusResponse{Status: false, Msg: "room token not exists"})
		return
	}
	if err != nil {
		requestsTotal.WithLabelValues("room", "error").Inc()
		logger.Error("room_resolve_failed", "error", err)
		_ = utils.JSONWrite(w, http.StatusOK, statusResponse{Status: false, Error: err.Error()})
		return
	}

	g.deliver(w, r, "room", room, chat.Text(r.URL.Query().Get("msg")))
}

// deliver performs the send and reports the outcome. Both endpoints await
// delivery so transport failures reach the caller.
func (g *Gateway) deliver(w http.ResponseWriter, r *http.Request, endpoint string, dst chat.Sendable, content chat.Content) {
	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.SendTimeout)
	defer cancel()
	if err := dst.Say(ctx, content); err != nil {
		requestsTotal.WithLabelValues(endpoint, "send_failed").Inc()
		logger.Error("send_failed", "endpoint", endpoint, "destination", dst.ID(), "error", err)
		_ = utils.JSONWrite(w, http.StatusOK, statusResponse{Status: false, Error: err.Error()})
		return
	}
	requestsTotal.WithLabelValues(endpoint, "ok").Inc()
	logger.Info("message_relayed", "endpoint", endpoint, "destination", dst.ID())
	_ = utils.JSONWrite(w, http.StatusOK, statusResponse{Status: true})
}

// extractContent resolves the message payload for /send requests. A msg
// query parameter is used verbatim; otherwise the body is decoded as JSON
// and walked by the property dot-path. An explicit property that does not
// resolve is an error; without one the walk tries "msg" and then takes
// the body whole, so a bare image descriptor posts as-is. The extracted
// value must be a string or an image descriptor.
func (g *Gateway) extractContent(r *http.Request) (chat.Content, *statusResponse) {
	if msg := r.URL.Query().Get("msg"); msg != "" || r.Method == http.MethodGet {
		return chat.Text(msg), nil
	}

	var body any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, &statusResponse{Status: false, Msg: "invalid json body"}
	}
	property := r.URL.Query().Get("property")
	path := property
	if path == "" {
		path = "msg"
	}
	v, ok := resolvePath(body, path)
	if !ok {
		if property != "" {
			logger.Warn("property_not_found", "property", property)
			return nil, &statusResponse{Status: false, Msg: "property not found"}
		}
		v = body
	}

	switch m := v.(type) {
	case string:
		return chat.Text(m), nil
	case map[string]any:
		if t, _ := m["type"].(string); t == "image" {
			if url, _ := m["url"].(string); url != "" {
				return chat.Media{Type: t, URL: url}, nil
			}
		}
	}
	return nil, &statusResponse{Status: false, Msg: "unsupported msg type"}
}
