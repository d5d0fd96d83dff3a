package websocket

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/services"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// Handler upgrades GET /ws. The credential is read from ?token= or an Authorization bearer header.
type Handler struct {
	service  services.IDeliveryService
	verifier contract.IIdentityVerifier
	upgrader websocket.Upgrader
	options  Options
	ctx      context.Context
	cancel   context.CancelFunc
	log      *slog.Logger
}

func NewHandler(service services.IDeliveryService, verifier contract.IIdentityVerifier, options Options,
	allowedOrigins []string, log *slog.Logger) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		service:  service,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		options: options.withDefaults(),
		ctx:     ctx,
		cancel:  cancel,
		log:     log,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = auth.BearerToken(r.Header.Get("Authorization"))
	}
	userID, verifyErr := h.verifier.Verify(token)

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	// No state is touched for a rejected credential, the peer only gets the close code.
	if verifyErr != nil {
		h.log.Info("Rejecting connection", "remote", r.RemoteAddr, "error", verifyErr)
		deadline := time.Now().Add(h.options.WriteTimeout)
		_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""), deadline)
		_ = ws.Close()
		return
	}

	conn := NewConnection(ws, userID, h.options, h.log)
	h.service.Connect(userID, conn)
	defer h.service.Disconnect(userID, conn)

	ctx, cancel := context.WithCancel(h.ctx)
	defer cancel()
	stop := context.AfterFunc(r.Context(), cancel)
	defer stop()

	err = conn.Serve(ctx, func(data []byte) {
		frame, err := event.Decode(data)
		if err != nil {
			h.log.Debug("Dropping client frame", "user_id", userID, "error", err)
			return
		}
		if err := h.service.HandleInbound(ctx, userID, frame); err != nil {
			h.log.Debug("Client frame rejected", "user_id", userID, "type", frame.FrameType(), "error", err)
		}
	})
	if err != nil {
		h.log.Debug("Connection ended", "user_id", userID, "conn_id", conn.ID(), "error", err)
	}
}

// Shutdown closes every socket served by this handler.
func (h *Handler) Shutdown() {
	h.cancel()
}

// checkOrigin accepts everything when no origin is configured or "*" is listed.
// Requests without an Origin header are not browsers and are accepted.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || lo.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || lo.Contains(allowed, origin)
	}
}
