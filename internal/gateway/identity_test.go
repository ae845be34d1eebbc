package gateway

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"
)

func TestNewIdentity_DeviceIDDerivedFromPublicKey(t *testing.T) {
	ident, err := NewIdentity("CrewHub-test")
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}

	pub, err := base64.RawURLEncoding.DecodeString(ident.PublicKeyB64URL())
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	sum := sha256.Sum256(pub)
	if want := hex.EncodeToString(sum[:]); ident.DeviceID != want {
		t.Errorf("DeviceID = %s, want %s", ident.DeviceID, want)
	}
}

func TestNewIdentity_DefaultName(t *testing.T) {
	ident, err := NewIdentity("")
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}
	if !strings.HasPrefix(ident.DeviceName, "CrewHub-") {
		t.Errorf("DeviceName = %q", ident.DeviceName)
	}
}

func TestBuildDeviceBlock_SignatureVerifies(t *testing.T) {
	ident, err := NewIdentity("CrewHub-test")
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}

	block := ident.BuildDeviceBlock("nonce-123", "tok-abc", 1700000000000)

	if block.ID != ident.DeviceID {
		t.Errorf("block id = %s", block.ID)
	}
	if block.Nonce != "nonce-123" {
		t.Errorf("block nonce = %s", block.Nonce)
	}
	if block.SignedAt != 1700000000000 {
		t.Errorf("block signedAt = %d", block.SignedAt)
	}

	pub, err := base64.RawURLEncoding.DecodeString(block.PublicKey)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	sig, err := base64.RawURLEncoding.DecodeString(block.Signature)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}

	payload := ident.signedPayload("nonce-123", "tok-abc", 1700000000000)
	if !ed25519.Verify(ed25519.PublicKey(pub), []byte(payload), sig) {
		t.Error("signature does not verify against the signed payload")
	}
}

func TestSignedPayload_V2Format(t *testing.T) {
	ident, err := NewIdentity("CrewHub-test")
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}

	payload := ident.signedPayload("the-nonce", "the-token", 42)
	parts := strings.Split(payload, "|")
	if len(parts) != 9 {
		t.Fatalf("payload has %d fields: %q", len(parts), payload)
	}
	if parts[0] != "v2" || parts[1] != ident.DeviceID || parts[2] != "cli" ||
		parts[3] != "cli" || parts[4] != "operator" {
		t.Errorf("payload prefix = %v", parts[:5])
	}
	if parts[6] != "42" || parts[7] != "the-token" || parts[8] != "the-nonce" {
		t.Errorf("payload suffix = %v", parts[6:])
	}
}

func TestLoadOrCreateIdentity_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrCreateIdentity(dir, "CrewHub-laptop")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	second, err := LoadOrCreateIdentity(dir, "ignored-on-load")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if second.DeviceID != first.DeviceID {
		t.Errorf("DeviceID changed across load: %s vs %s", second.DeviceID, first.DeviceID)
	}
	if second.DeviceName != "CrewHub-laptop" {
		t.Errorf("DeviceName = %q", second.DeviceName)
	}
	if second.PublicKeyB64URL() != first.PublicKeyB64URL() {
		t.Error("public key changed across load")
	}
}

func TestSaveDeviceToken_Persisted(t *testing.T) {
	dir := t.TempDir()

	ident, err := LoadOrCreateIdentity(dir, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ident.SaveDeviceToken(dir, "issued-token"); err != nil {
		t.Fatalf("SaveDeviceToken: %v", err)
	}

	loaded, err := LoadOrCreateIdentity(dir, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.DeviceToken != "issued-token" {
		t.Errorf("DeviceToken = %q", loaded.DeviceToken)
	}

	if err := loaded.ClearDeviceToken(dir); err != nil {
		t.Fatalf("ClearDeviceToken: %v", err)
	}
	reloaded, err := LoadOrCreateIdentity(dir, "")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.DeviceToken != "" {
		t.Errorf("DeviceToken = %q after clear", reloaded.DeviceToken)
	}
}
