package deck

import (
	"errors"
	"fmt"
	"strings"

	"github.com/openclaw/claw-deck/internal/gateway"
	"github.com/openclaw/claw-deck/internal/localstore"
)

// GatewaySettings are the push-socket URL and API key.
type GatewaySettings struct {
	URL    string `json:"url"`
	APIKey string `json:"apiKey,omitempty"`
}

// Redacted hides all but the last four characters of the API key.
func (s GatewaySettings) Redacted() GatewaySettings {
	if s.APIKey == "" {
		return s
	}
	if len(s.APIKey) <= 4 {
		s.APIKey = "****"
		return s
	}
	s.APIKey = "****" + s.APIKey[len(s.APIKey)-4:]
	return s
}

// loadSettings reads the stored settings; unreadable data is logged and
// treated as unset.
func (d *Deck) loadSettings() GatewaySettings {
	var s GatewaySettings
	err := d.store.GetJSON(SettingsKey, &s)
	switch {
	case err == nil:
	case errors.Is(err, localstore.ErrNotFound):
	default:
		d.logger.Warn("gateway settings unreadable, ignoring", "error", err)
		s = GatewaySettings{}
	}
	return s
}

// GatewaySettings returns the stored settings, API key included.
func (d *Deck) GatewaySettings() GatewaySettings {
	cfg := d.socket.Config()
	return GatewaySettings{URL: cfg.URL, APIKey: cfg.APIKey}
}

// SetGatewaySettings stores s and points the push socket at it. An empty URL
// disables the socket; the CLI probe takes over. A redacted key ("****...")
// keeps the stored key.
func (d *Deck) SetGatewaySettings(s GatewaySettings) error {
	s.URL = strings.TrimSpace(s.URL)
	s.APIKey = strings.TrimSpace(s.APIKey)
	if strings.HasPrefix(s.APIKey, "****") {
		s.APIKey = d.socket.Config().APIKey
	}
	if s.URL != "" {
		if err := gateway.ValidateURL(s.URL); err != nil {
			return err
		}
	}

	if err := d.store.SetJSON(SettingsKey, s); err != nil {
		return fmt.Errorf("save gateway settings: %w", err)
	}
	d.socket.SetConfig(gateway.SocketConfig{URL: s.URL, APIKey: s.APIKey})
	d.logger.Info("gateway settings updated", "url", s.URL, "api_key_set", s.APIKey != "")
	return nil
}
