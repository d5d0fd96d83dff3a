package main

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Probe terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run connects as one user and prints every frame until interrupted or --duration elapses.
func run() (int, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	flags := pflag.NewFlagSet("probe", pflag.ContinueOnError)
	target := flags.String("url", cfg.URL, "WebSocket endpoint of the relay")
	token := flags.String("token", cfg.Token, "Bearer token, minted from PROBE_JWT_SECRET when empty")
	user := flags.String("user", "", "User to connect as when minting a token (random when empty)")
	typingChat := flags.String("typing", "", "Chat to send a typing signal to once connected")
	ack := flags.Bool("ack", true, "Acknowledge delivery of every received message")
	duration := flags.Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	noColour := flags.Bool("no-colour", !cfg.Colours, "Disable colours")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return exitConfig, err
	}
	out := printer{out: os.Stdout, colours: !*noColour}

	if *token == "" {
		if cfg.Secret == "" {
			return exitConfig, fmt.Errorf("either --token or PROBE_JWT_SECRET is required")
		}
		if *user == "" {
			*user = "probe-" + uuid.NewString()[:8]
		}
		*token, err = auth.GenerateToken(cfg.Secret, cfg.Issuer, domain.UserID(*user), *user, time.Hour)
		if err != nil {
			return exitConfig, fmt.Errorf("unable to mint token: %w", err)
		}
	}

	endpoint, err := url.Parse(*target)
	if err != nil {
		return exitConfig, fmt.Errorf("invalid url: %w", err)
	}
	query := endpoint.Query()
	query.Set("token", *token)
	endpoint.RawQuery = query.Encode()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("dial %s: %w", *target, err)
	}
	defer ws.Close()
	go func() {
		<-ctx.Done()
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = ws.Close()
	}()

	if *typingChat != "" {
		if err := ws.WriteJSON(map[string]any{"type": "typing", "chatId": *typingChat, "isTyping": true}); err != nil {
			return exitRuntime, fmt.Errorf("typing: %w", err)
		}
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return exitOK, nil
			}
			if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
				return exitConfig, fmt.Errorf("relay rejected the credential")
			}
			return exitRuntime, fmt.Errorf("read: %w", err)
		}
		var frame map[string]any
		if err := json.Unmarshal(data, &frame); err != nil {
			out.Error("unreadable frame: %s", string(data))
			continue
		}
		out.Frame(frame)

		if *ack && frame["type"] == "new_message" {
			message, _ := frame["message"].(map[string]any)
			if err := ws.WriteJSON(map[string]any{"type": "message_delivered", "messageId": message["_id"]}); err != nil {
				out.Error("ack failed: %v", err)
			}
		}
	}
}
