//go:build linux

package adc

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// spidev ioctl requests (linux/spi/spidev.h).
const (
	spiIOCWrMode        = 0x40016b01
	spiIOCWrBitsPerWord = 0x40016b03
	spiIOCWrMaxSpeedHz  = 0x40046b04
	spiIOCMessage1      = 0x40206b00
)

// spiTransfer mirrors struct spi_ioc_transfer.
type spiTransfer struct {
	txBuf       uint64
	rxBuf       uint64
	length      uint32
	speedHz     uint32
	delayUsecs  uint16
	bitsPerWord uint8
	csChange    uint8
	txNbits     uint8
	rxNbits     uint8
	wordDelay   uint8
	pad         uint8
}

// MCP3008 reads a Microchip MCP3008 10-bit converter through spidev.
type MCP3008 struct {
	Path    string
	SpeedHz uint32

	mu sync.Mutex
	fd int
}

// NewMCP3008 returns a converter on the given spidev node, e.g.
// /dev/spidev0.0 for chip select 0.
func NewMCP3008(path string, speedHz uint32) *MCP3008 {
	if speedHz == 0 {
		speedHz = 1_000_000
	}
	return &MCP3008{Path: path, SpeedHz: speedHz, fd: -1}
}

func (m *MCP3008) Open(InitOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fd, err := unix.Open(m.Path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", m.Path, err)
	}
	if err := unix.IoctlSetPointerInt(fd, spiIOCWrMode, 0); err != nil {
		unix.Close(fd)
		return fmt.Errorf("set spi mode: %w", err)
	}
	if err := unix.IoctlSetPointerInt(fd, spiIOCWrBitsPerWord, 8); err != nil {
		unix.Close(fd)
		return fmt.Errorf("set bits per word: %w", err)
	}
	if err := unix.IoctlSetPointerInt(fd, spiIOCWrMaxSpeedHz, int(m.SpeedHz)); err != nil {
		unix.Close(fd)
		return fmt.Errorf("set max speed: %w", err)
	}
	m.fd = fd
	return nil
}

func (m *MCP3008) Read(ch Channel) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fd < 0 {
		return 0, ErrUnavailable
	}

	// start bit, single-ended mode + channel, then clock out 10 bits
	tx := [3]byte{0x01, byte(0x08|ch) << 4, 0x00}
	var rx [3]byte
	tr := spiTransfer{
		txBuf:       uint64(uintptr(unsafe.Pointer(&tx[0]))),
		rxBuf:       uint64(uintptr(unsafe.Pointer(&rx[0]))),
		length:      uint32(len(tx)),
		speedHz:     m.SpeedHz,
		bitsPerWord: 8,
	}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(m.fd), uintptr(spiIOCMessage1), uintptr(unsafe.Pointer(&tr)))
	if errno != 0 {
		if errors.Is(errno, unix.ENODEV) || errors.Is(errno, unix.EBADF) || errors.Is(errno, unix.EIO) {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, errno)
		}
		return 0, fmt.Errorf("spi transfer: %v", errno)
	}
	return int(rx[1]&0x03)<<8 | int(rx[2]), nil
}

func (m *MCP3008) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fd < 0 {
		return nil
	}
	err := unix.Close(m.fd)
	m.fd = -1
	return err
}
