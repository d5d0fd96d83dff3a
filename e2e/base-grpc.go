package e2e

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/infrastructure/grpc/client"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// BaseRelaySuite drives a running relay. It is skipped when RELAY_GRPC_ADDR is not set.
type BaseRelaySuite struct {
	suite.Suite
	Config Config
}

func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.RelayGRPCAddr == "" || s.Config.JWTSecret == "" {
		s.T().Skip("RELAY_GRPC_ADDR and E2E_JWT_SECRET are required for end to end tests")
	}
}

func (s *BaseRelaySuite) header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// GrpcConn initializes a gRPC connection that logs every call, with bodies when E2E_DEBUG_JSON is set.
func (s *BaseRelaySuite) GrpcConn(t *testing.T, name string) *grpc.ClientConn {
	s.header(t, name)

	conn, err := grpc.NewClient(s.Config.RelayGRPCAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
			start := time.Now()
			err := invoker(ctx, method, req, reply, cc, opts...)

			logBuilder := strings.Builder{}
			fmt.Fprintf(&logBuilder, "GRPC %s [%s] in %v", method, status.Code(err), time.Since(start))
			if s.Config.DebugJSON {
				fmt.Fprintln(&logBuilder, "\nREQUEST:")
				fmt.Fprintln(&logBuilder, indent(req))
				if err != nil {
					fmt.Fprintln(&logBuilder, "ERROR:", err)
				} else {
					fmt.Fprintln(&logBuilder, "RESPONSE:")
					fmt.Fprintln(&logBuilder, indent(reply))
				}
			}
			t.Log(logBuilder.String())
			return err
		}),
	)
	s.Require().NoError(err, "Failed to connect to gRPC server at "+s.Config.RelayGRPCAddr)
	return conn
}

// WithRelay provides a delivery client acting as userID within a contextual test step.
func (s *BaseRelaySuite) WithRelay(name string, userID domain.UserID, fn func(ctx context.Context, relay *client.DeliveryClient)) {
	conn := s.GrpcConn(s.T(), name)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	fn(client.WithToken(ctx, s.Token(userID)), client.NewDeliveryClient(conn))
}

func (s *BaseRelaySuite) Token(userID domain.UserID) string {
	token, err := auth.GenerateToken(s.Config.JWTSecret, s.Config.JWTIssuer, userID, string(userID), time.Hour)
	s.Require().NoError(err)
	return token
}

// Socket connects userID and returns the socket with its snapshot already consumed.
func (s *BaseRelaySuite) Socket(userID domain.UserID) *websocket.Conn {
	s.header(s.T(), "socket for "+string(userID))
	endpoint, err := url.Parse(s.Config.RelayWSURL)
	s.Require().NoError(err)
	query := endpoint.Query()
	query.Set("token", s.Token(userID))
	endpoint.RawQuery = query.Encode()

	ws, _, err := websocket.DefaultDialer.Dial(endpoint.String(), nil)
	s.Require().NoError(err)
	s.Require().Equal("online_users", s.Read(ws)["type"])
	return ws
}

// Read returns the next frame, failing after five seconds.
func (s *BaseRelaySuite) Read(ws *websocket.Conn) map[string]any {
	s.Require().NoError(ws.SetReadDeadline(time.Now().Add(5 * time.Second)))
	_, data, err := ws.ReadMessage()
	s.Require().NoError(err)
	var frame map[string]any
	s.Require().NoError(json.Unmarshal(data, &frame))
	return frame
}

// ReadUntil skips presence noise from other clients of a shared relay.
func (s *BaseRelaySuite) ReadUntil(ws *websocket.Conn, frameType string) map[string]any {
	for {
		frame := s.Read(ws)
		if frame["type"] == frameType {
			return frame
		}
	}
}

func indent(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}
