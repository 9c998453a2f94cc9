//go:build !linux

package adc

import "errors"

var errNoSPI = errors.New("adc: spidev is only available on linux")

// MCP3008 is unavailable on this platform.
type MCP3008 struct {
	Path    string
	SpeedHz uint32
}

func NewMCP3008(path string, speedHz uint32) *MCP3008 {
	return &MCP3008{Path: path, SpeedHz: speedHz}
}

func (m *MCP3008) Open(InitOptions) error   { return errNoSPI }
func (m *MCP3008) Read(Channel) (int, error) { return 0, ErrUnavailable }
func (m *MCP3008) Close() error              { return nil }
