package gateway

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// fakeGateway speaks just enough of the v2 handshake to test Probe. Each
// received connect request is pushed to requests for inspection.
type fakeGateway struct {
	t         *testing.T
	requests  chan connectRequest
	respond   func(req connectRequest) gatewayMessage
	challenge string
}

func newFakeGateway(t *testing.T, respond func(req connectRequest) gatewayMessage) (*fakeGateway, string) {
	t.Helper()
	fg := &fakeGateway{
		t:         t,
		requests:  make(chan connectRequest, 4),
		respond:   respond,
		challenge: "nonce-xyz",
	}
	srv := httptest.NewServer(http.HandlerFunc(fg.handle))
	t.Cleanup(srv.Close)
	return fg, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (fg *fakeGateway) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		fg.t.Errorf("accept: %v", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()
	ctx := context.Background()

	challenge, _ := json.Marshal(map[string]any{
		"type":    "event",
		"event":   "connect.challenge",
		"payload": map[string]string{"nonce": fg.challenge},
	})
	if err := conn.Write(ctx, websocket.MessageText, challenge); err != nil {
		return
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		return
	}
	var req connectRequest
	if err := json.Unmarshal(data, &req); err != nil {
		fg.t.Errorf("bad connect request: %v", err)
		return
	}
	fg.requests <- req

	resp, _ := json.Marshal(fg.respond(req))
	_ = conn.Write(ctx, websocket.MessageText, resp)
	// Wait for the probe to close from its side.
	_, _, _ = conn.Read(ctx)
}

func acceptResponse(deviceToken string) func(connectRequest) gatewayMessage {
	return func(connectRequest) gatewayMessage {
		payload, _ := json.Marshal(map[string]any{
			"auth": map[string]string{"deviceToken": deviceToken},
		})
		return gatewayMessage{Type: "res", OK: true, Payload: payload}
	}
}

func TestProbe_RegistersDeviceWithGatewayToken(t *testing.T) {
	fg, url := newFakeGateway(t, acceptResponse("issued-device-token"))

	dir := t.TempDir()
	ident, err := LoadOrCreateIdentity(dir, "CrewHub-test")
	if err != nil {
		t.Fatalf("identity: %v", err)
	}

	status, err := Probe(context.Background(), ProbeConfig{
		URL:          url,
		GatewayToken: "shared-gateway-token",
		Identity:     ident,
		IdentityDir:  dir,
		Timeout:      5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}

	if !status.Connected || status.AuthMode != "gateway-token" {
		t.Errorf("status = %+v", status)
	}
	if !status.NewToken {
		t.Error("expected the issued device token to be stored")
	}

	req := <-fg.requests
	if req.Method != "connect" || !strings.HasPrefix(req.ID, "connect-") {
		t.Errorf("request = %s %s", req.Method, req.ID)
	}
	if req.Params.MinProtocol != 3 || req.Params.MaxProtocol != 3 {
		t.Errorf("protocol range = %d..%d", req.Params.MinProtocol, req.Params.MaxProtocol)
	}
	if req.Params.Auth["token"] != "shared-gateway-token" {
		t.Errorf("auth token = %q", req.Params.Auth["token"])
	}
	if req.Params.Device.Nonce != fg.challenge {
		t.Errorf("device nonce = %q", req.Params.Device.Nonce)
	}

	// The signature must verify against the advertised public key.
	pub, err := base64.RawURLEncoding.DecodeString(req.Params.Device.PublicKey)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	sig, err := base64.RawURLEncoding.DecodeString(req.Params.Device.Signature)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	payload := ident.signedPayload(fg.challenge, "shared-gateway-token", req.Params.Device.SignedAt)
	if !ed25519.Verify(ed25519.PublicKey(pub), []byte(payload), sig) {
		t.Error("device signature does not verify")
	}

	// The token must survive a reload.
	reloaded, err := LoadOrCreateIdentity(dir, "")
	if err != nil {
		t.Fatalf("reload identity: %v", err)
	}
	if reloaded.DeviceToken != "issued-device-token" {
		t.Errorf("stored token = %q", reloaded.DeviceToken)
	}
}

func TestProbe_PrefersStoredDeviceToken(t *testing.T) {
	fg, url := newFakeGateway(t, acceptResponse(""))

	dir := t.TempDir()
	ident, err := LoadOrCreateIdentity(dir, "")
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	if err := ident.SaveDeviceToken(dir, "stored-device-token"); err != nil {
		t.Fatalf("SaveDeviceToken: %v", err)
	}

	status, err := Probe(context.Background(), ProbeConfig{
		URL:          url,
		GatewayToken: "shared-gateway-token",
		Identity:     ident,
		IdentityDir:  dir,
	}, nil)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if status.AuthMode != "device-token" {
		t.Errorf("auth mode = %q", status.AuthMode)
	}

	req := <-fg.requests
	if req.Params.Auth["token"] != "stored-device-token" {
		t.Errorf("auth token = %q, want the stored device token", req.Params.Auth["token"])
	}
}

func TestProbe_RejectedDeviceTokenIsCleared(t *testing.T) {
	_, url := newFakeGateway(t, func(connectRequest) gatewayMessage {
		return gatewayMessage{
			Type:  "res",
			OK:    false,
			Error: &gatewayError{Code: "DEVICE_TOKEN_INVALID", Message: "token revoked"},
		}
	})

	dir := t.TempDir()
	ident, err := LoadOrCreateIdentity(dir, "")
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	if err := ident.SaveDeviceToken(dir, "revoked-token"); err != nil {
		t.Fatalf("SaveDeviceToken: %v", err)
	}

	_, err = Probe(context.Background(), ProbeConfig{
		URL:         url,
		Identity:    ident,
		IdentityDir: dir,
	}, nil)
	if err == nil {
		t.Fatal("Probe should fail on rejection")
	}
	if !strings.Contains(err.Error(), "token revoked") {
		t.Errorf("err = %v", err)
	}

	reloaded, err := LoadOrCreateIdentity(dir, "")
	if err != nil {
		t.Fatalf("reload identity: %v", err)
	}
	if reloaded.DeviceToken != "" {
		t.Errorf("rejected token still stored: %q", reloaded.DeviceToken)
	}
}

func TestProbe_UnexpectedFirstFrameFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.CloseNow() }()
		frame, _ := json.Marshal(map[string]string{"type": "event", "event": "something-else"})
		_ = conn.Write(context.Background(), websocket.MessageText, frame)
		_, _, _ = conn.Read(context.Background())
	}))
	defer srv.Close()

	ident, err := NewIdentity("")
	if err != nil {
		t.Fatal(err)
	}
	_, err = Probe(context.Background(), ProbeConfig{
		URL:      "ws" + strings.TrimPrefix(srv.URL, "http"),
		Identity: ident,
	}, nil)
	if err == nil || !strings.Contains(err.Error(), "connect.challenge") {
		t.Errorf("err = %v", err)
	}
}

func TestProbe_RequiresIdentity(t *testing.T) {
	_, err := Probe(context.Background(), ProbeConfig{URL: "ws://localhost:18789"}, nil)
	if err == nil {
		t.Fatal("expected error without identity")
	}
}
