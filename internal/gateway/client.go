// pattern: Imperative Shell
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/EKINSOL-DEV/crewhub-sub010/internal/logging"
)

// ProbeConfig configures a one-shot gateway handshake.
type ProbeConfig struct {
	URL          string // e.g. "ws://localhost:18789"
	GatewayToken string // shared token for first-time device registration
	Identity     *Identity
	IdentityDir  string // where token updates are persisted
	Timeout      time.Duration
}

// Status is the result of a successful probe.
type Status struct {
	Connected   bool   `json:"connected"`
	DeviceID    string `json:"device_id"`
	AuthMode    string `json:"auth_mode"` // "device-token" or "gateway-token"
	NewToken    bool   `json:"new_token_stored"`
	GatewayURL  string `json:"gateway_url"`
	ProtocolMin int    `json:"protocol_min"`
	ProtocolMax int    `json:"protocol_max"`
}

const (
	protocolMin = 3
	protocolMax = 3
)

// gatewayMessage covers both the challenge event and the connect response.
type gatewayMessage struct {
	Type    string          `json:"type"`
	Event   string          `json:"event,omitempty"`
	OK      bool            `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *gatewayError   `json:"error,omitempty"`
}

type gatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type challengePayload struct {
	Nonce string `json:"nonce"`
}

type connectResponsePayload struct {
	Auth struct {
		DeviceToken string `json:"deviceToken"`
		Token       string `json:"token"`
	} `json:"auth"`
}

// connectRequest is the v2 connect frame.
type connectRequest struct {
	Type   string        `json:"type"`
	ID     string        `json:"id"`
	Method string        `json:"method"`
	Params connectParams `json:"params"`
}

type connectParams struct {
	MinProtocol int               `json:"minProtocol"`
	MaxProtocol int               `json:"maxProtocol"`
	Client      clientInfo        `json:"client"`
	Device      DeviceBlock       `json:"device"`
	Role        string            `json:"role"`
	Scopes      []string          `json:"scopes"`
	Auth        map[string]string `json:"auth"`
	Locale      string            `json:"locale"`
	UserAgent   string            `json:"userAgent"`
}

type clientInfo struct {
	ID       string `json:"id"`
	Version  string `json:"version"`
	Platform string `json:"platform"`
	Mode     string `json:"mode"`
}

// Probe performs the OpenClaw v2 device-identity handshake once and
// disconnects. Used by `crewhub gateway probe` to verify pairing without
// keeping a session open.
//
// Tokens rank: a stored device token wins over the shared gateway token.
// A device token the gateway rejects is cleared so the next probe
// re-registers.
func Probe(ctx context.Context, cfg ProbeConfig, logger *logging.ScopedLogger) (*Status, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if cfg.Identity == nil {
		return nil, fmt.Errorf("gateway probe requires a device identity")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to reach gateway at %s: %w", cfg.URL, err)
	}
	defer func() { _ = conn.CloseNow() }()
	conn.SetReadLimit(1 << 20)

	// The gateway speaks first: a connect.challenge event carrying the nonce
	// we must sign.
	challenge, err := readMessage(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to read challenge: %w", err)
	}
	if challenge.Type != "event" || challenge.Event != "connect.challenge" {
		return nil, fmt.Errorf("expected connect.challenge, got type=%q event=%q", challenge.Type, challenge.Event)
	}
	var chal challengePayload
	if err := json.Unmarshal(challenge.Payload, &chal); err != nil {
		return nil, fmt.Errorf("failed to parse challenge payload: %w", err)
	}

	ident := cfg.Identity
	useDeviceToken := ident.DeviceToken != ""
	authToken := ident.DeviceToken
	if !useDeviceToken {
		authToken = cfg.GatewayToken
	}
	authMode := "gateway-token"
	if useDeviceToken {
		authMode = "device-token"
	}
	logger.Debug("gateway challenge received", "device_id", ident.DeviceID[:16], "auth_mode", authMode)

	signedAt := time.Now().UnixMilli()
	req := connectRequest{
		Type:   "req",
		ID:     "connect-" + uuid.NewString(),
		Method: "connect",
		Params: connectParams{
			MinProtocol: protocolMin,
			MaxProtocol: protocolMax,
			Client:      clientInfo{ID: clientID, Version: "1.0.0", Platform: "crewhub", Mode: clientMode},
			Device:      ident.BuildDeviceBlock(chal.Nonce, authToken, signedAt),
			Role:        clientRole,
			Scopes:      scopes,
			Auth:        authMap(authToken),
			Locale:      "en-US",
			UserAgent:   "crewhub/" + ident.DeviceName + "/1.0.0",
		},
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal connect request: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return nil, fmt.Errorf("failed to send connect request: %w", err)
	}

	resp, err := readMessage(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to read connect response: %w", err)
	}
	if !resp.OK {
		if resp.Error != nil && useDeviceToken && tokenRejected(resp.Error.Code) {
			logger.Warn("device token rejected, clearing", "code", resp.Error.Code)
			if cfg.IdentityDir != "" {
				_ = ident.ClearDeviceToken(cfg.IdentityDir)
			}
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("gateway rejected connect: %s (%s)", resp.Error.Message, resp.Error.Code)
		}
		return nil, fmt.Errorf("gateway rejected connect")
	}

	status := &Status{
		Connected:   true,
		DeviceID:    ident.DeviceID,
		AuthMode:    authMode,
		GatewayURL:  cfg.URL,
		ProtocolMin: protocolMin,
		ProtocolMax: protocolMax,
	}

	var payload connectResponsePayload
	if len(resp.Payload) > 0 {
		_ = json.Unmarshal(resp.Payload, &payload)
	}
	newToken := payload.Auth.DeviceToken
	if newToken == "" {
		newToken = payload.Auth.Token
	}
	if newToken != "" && newToken != authToken && cfg.IdentityDir != "" {
		if err := ident.SaveDeviceToken(cfg.IdentityDir, newToken); err != nil {
			logger.Warn("failed to store device token", "error", err)
		} else {
			status.NewToken = true
			logger.Info("device token stored", "device_id", ident.DeviceID[:16])
		}
	}

	_ = conn.Close(websocket.StatusNormalClosure, "probe complete")
	return status, nil
}

func readMessage(ctx context.Context, conn *websocket.Conn) (*gatewayMessage, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	var msg gatewayMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid gateway frame: %w", err)
	}
	return &msg, nil
}

func authMap(token string) map[string]string {
	if token == "" {
		return map[string]string{}
	}
	return map[string]string{"token": token}
}

// tokenRejected reports whether the error code means the stored device
// token is no longer usable.
func tokenRejected(code string) bool {
	switch code {
	case "DEVICE_TOKEN_INVALID", "DEVICE_NOT_FOUND", "TOKEN_EXPIRED", "UNAUTHORIZED":
		return true
	}
	return false
}
