// pattern: Functional Core
package gateway

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Fixed client identifiers, matching the gateway schema constants.
const (
	clientID   = "cli"
	clientMode = "cli"
	clientRole = "operator"
)

// Scopes requested on every connect.
var scopes = []string{
	"operator.admin",
	"operator.approvals",
	"operator.pairing",
	"operator.read",
	"operator.write",
}

const identityFileName = "gateway-identity.json"

// Identity is the Ed25519 device identity used for OpenClaw gateway
// pairing. The gateway derives trust from the keypair: deviceId is the
// SHA-256 of the raw public key, and every connect carries a signature over
// a challenge nonce.
type Identity struct {
	DeviceID    string
	DeviceName  string
	DeviceToken string

	priv ed25519.PrivateKey
}

// identityFile is the on-disk representation. The seed alone reconstructs
// the keypair.
type identityFile struct {
	DeviceID    string `json:"device_id"`
	DeviceName  string `json:"device_name"`
	DeviceToken string `json:"device_token,omitempty"`
	Seed        string `json:"seed"` // base64url, 32 bytes
}

// DeviceBlock is the device section of the gateway connect request.
type DeviceBlock struct {
	ID        string `json:"id"`
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
	SignedAt  int64  `json:"signedAt"`
	Nonce     string `json:"nonce"`
}

// NewIdentity generates a fresh device identity.
func NewIdentity(deviceName string) (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate device key: %w", err)
	}
	id := deviceIDFor(pub)
	if deviceName == "" {
		deviceName = "CrewHub-" + id[:16]
	}
	return &Identity{DeviceID: id, DeviceName: deviceName, priv: priv}, nil
}

// LoadOrCreateIdentity loads the persisted identity from dir, creating and
// saving a new one on first use.
func LoadOrCreateIdentity(dir, deviceName string) (*Identity, error) {
	path := filepath.Join(dir, identityFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		ident, err := NewIdentity(deviceName)
		if err != nil {
			return nil, err
		}
		if err := ident.save(dir); err != nil {
			return nil, err
		}
		return ident, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read identity file: %w", err)
	}

	var f identityFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse identity file: %w", err)
	}
	seed, err := base64.RawURLEncoding.DecodeString(f.Seed)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("identity file has an invalid key seed")
	}
	priv := ed25519.NewKeyFromSeed(seed)

	ident := &Identity{
		DeviceID:    f.DeviceID,
		DeviceName:  f.DeviceName,
		DeviceToken: f.DeviceToken,
		priv:        priv,
	}
	// Recompute rather than trust the stored id: a hand-edited file must not
	// impersonate another device.
	if got := deviceIDFor(ident.publicKey()); got != f.DeviceID {
		ident.DeviceID = got
	}
	return ident, nil
}

// SaveDeviceToken persists a device token issued by the gateway, so future
// connects authenticate with it instead of the shared gateway token.
func (i *Identity) SaveDeviceToken(dir, token string) error {
	i.DeviceToken = token
	return i.save(dir)
}

// ClearDeviceToken drops a rejected device token and persists the removal.
func (i *Identity) ClearDeviceToken(dir string) error {
	i.DeviceToken = ""
	return i.save(dir)
}

func (i *Identity) save(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create identity dir: %w", err)
	}
	f := identityFile{
		DeviceID:    i.DeviceID,
		DeviceName:  i.DeviceName,
		DeviceToken: i.DeviceToken,
		Seed:        base64.RawURLEncoding.EncodeToString(i.priv.Seed()),
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}
	path := filepath.Join(dir, identityFileName)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write identity file: %w", err)
	}
	return nil
}

func (i *Identity) publicKey() ed25519.PublicKey {
	return i.priv.Public().(ed25519.PublicKey)
}

// PublicKeyB64URL returns the raw public key as unpadded base64url, the
// encoding the gateway expects in the device block.
func (i *Identity) PublicKeyB64URL() string {
	return base64.RawURLEncoding.EncodeToString(i.publicKey())
}

// signedPayload builds the v2 payload string the gateway verifies:
//
//	"v2|<deviceId>|<clientId>|<clientMode>|<role>|<scopes CSV>|<signedAtMs>|<token>|<nonce>"
func (i *Identity) signedPayload(nonce, authToken string, signedAtMs int64) string {
	parts := []string{
		"v2",
		i.DeviceID,
		clientID,
		clientMode,
		clientRole,
		strings.Join(scopes, ","),
		strconv.FormatInt(signedAtMs, 10),
		authToken,
		nonce,
	}
	return strings.Join(parts, "|")
}

// BuildDeviceBlock signs the challenge nonce and assembles the device
// section of the connect request.
func (i *Identity) BuildDeviceBlock(nonce, authToken string, signedAtMs int64) DeviceBlock {
	payload := i.signedPayload(nonce, authToken, signedAtMs)
	sig := ed25519.Sign(i.priv, []byte(payload))
	return DeviceBlock{
		ID:        i.DeviceID,
		PublicKey: i.PublicKeyB64URL(),
		Signature: base64.RawURLEncoding.EncodeToString(sig),
		SignedAt:  signedAtMs,
		Nonce:     nonce,
	}
}

// deviceIDFor derives the deviceId as SHA-256 hex of the raw public key.
func deviceIDFor(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:])
}
