package gateway

import (
	"context"
	"errors"
	"io"

	"github.com/openclaw/claw-deck/internal/openclaw"
)

// Bridge is the mechanism the client probes the gateway through.
type Bridge interface {
	// Name identifies the bridge in diagnostics ("cli", "socket").
	Name() string
	// Available reports whether the bridge can be used at all (binary
	// present, URL configured).
	Available() error
	// Probe asks the gateway for its status.
	Probe(ctx context.Context) (*openclaw.GatewayStatus, error)
}

// StatusSource is satisfied by *openclaw.Client.
type StatusSource interface {
	GatewayStatus(ctx context.Context) (*openclaw.GatewayStatus, error)
}

// CLIBridge probes through `openclaw gateway status`.
type CLIBridge struct {
	source    StatusSource
	available func() error
}

// NewCLIBridge creates a CLIBridge. available may be nil.
func NewCLIBridge(source StatusSource, available func() error) *CLIBridge {
	return &CLIBridge{source: source, available: available}
}

func (b *CLIBridge) Name() string { return "cli" }

func (b *CLIBridge) Available() error {
	if b.available == nil {
		return nil
	}
	return b.available()
}

func (b *CLIBridge) Probe(ctx context.Context) (*openclaw.GatewayStatus, error) {
	return b.source.GatewayStatus(ctx)
}

// PreferredBridge probes through Primary whenever Primary is available
// (the push socket once a URL is configured) and through Fallback otherwise.
type PreferredBridge struct {
	Primary  Bridge
	Fallback Bridge
}

func (b *PreferredBridge) active() Bridge {
	if b.Primary != nil && b.Primary.Available() == nil {
		return b.Primary
	}
	return b.Fallback
}

func (b *PreferredBridge) Name() string { return b.active().Name() }

func (b *PreferredBridge) Available() error { return b.active().Available() }

func (b *PreferredBridge) Probe(ctx context.Context) (*openclaw.GatewayStatus, error) {
	return b.active().Probe(ctx)
}

// Close closes whichever of the two bridges hold resources.
func (b *PreferredBridge) Close() error {
	var errs []error
	for _, br := range []Bridge{b.Primary, b.Fallback} {
		if c, ok := br.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
