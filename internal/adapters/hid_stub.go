//go:build !linux

package adapters

import (
	"fmt"

	"github.com/kstaniek/groundstation/internal/catalogue"
	"github.com/kstaniek/groundstation/internal/telemetry"
)

// HidEndpoint is unsupported outside Linux; Init always fails so the
// DeviceRegistry surfaces a clear error instead of silently no-opping.
type HidEndpoint struct {
	base
}

func NewHidEndpoint(cat *catalogue.Catalogue, clock telemetry.Clock) *HidEndpoint {
	return &HidEndpoint{base: newBase(cat, clock)}
}

func (h *HidEndpoint) Kind() Kind { return KindHID }

func (h *HidEndpoint) Init(string, int) error {
	return fmt.Errorf("adapter: hid endpoints unsupported on this platform")
}

func (h *HidEndpoint) ReadRaw() ([]byte, error) { return nil, fmt.Errorf("adapter: not initialised") }
func (h *HidEndpoint) Write([]byte) error { return fmt.Errorf("adapter: not initialised") }
func (h *HidEndpoint) Close() error { return nil }
