package adc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// SerialBridge reads a converter attached to a microcontroller that
// answers line-oriented requests over a serial port. Read requests carry
// a sequence tag that the bridge echoes:
//
//	host: "R3#17\n"       bridge: "3:517#17\n"
//	host: "I100\n"        bridge: "OK\n"
//
// A bridge reports a failed conversion as "E3:<reason>#17\n". Untagged
// replies from older firmware are matched by channel only.
//
// Replies arrive in request order, so a reply that missed its deadline is
// still queued when the next request goes out. Read discards such stale
// lines until the reply to its own request shows up.
type SerialBridge struct {
	Port    string
	Baud    int
	Timeout time.Duration

	open func() (io.ReadWriteCloser, error)

	mu      sync.Mutex
	rw      io.ReadWriteCloser
	reader  *bufio.Reader
	partial string
	seq     uint16
}

// maxStale bounds the lines one request may discard.
const maxStale = 8

// NewSerialBridge returns a converter on a serial port, e.g. /dev/ttyACM0.
func NewSerialBridge(port string, baud int) *SerialBridge {
	b := &SerialBridge{Port: port, Baud: baud, Timeout: 200 * time.Millisecond}
	b.open = func() (io.ReadWriteCloser, error) {
		return serial.OpenPort(&serial.Config{
			Name:        b.Port,
			Baud:        b.Baud,
			ReadTimeout: b.Timeout,
		})
	}
	return b
}

// newSerialBridgeWith builds a bridge over an already connected stream.
func newSerialBridgeWith(rw io.ReadWriteCloser) *SerialBridge {
	return &SerialBridge{
		Port:    "stream",
		Timeout: 200 * time.Millisecond,
		open:    func() (io.ReadWriteCloser, error) { return rw, nil },
	}
}

func (b *SerialBridge) Open(opts InitOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rw, err := b.open()
	if err != nil {
		return fmt.Errorf("open %s: %w", b.Port, err)
	}
	b.rw = rw
	b.reader = bufio.NewReader(rw)

	ms := opts.PollInterval.Milliseconds()
	if ms <= 0 {
		return nil
	}
	if err := b.send(fmt.Sprintf("I%d", ms)); err != nil {
		b.closeLocked()
		return fmt.Errorf("configure bridge: %w", err)
	}
	for stale := 0; ; stale++ {
		reply, err := b.readLine()
		if err != nil {
			b.closeLocked()
			return fmt.Errorf("configure bridge: %w", err)
		}
		if reply == "OK" {
			return nil
		}
		if stale >= maxStale {
			b.closeLocked()
			return fmt.Errorf("configure bridge: unexpected reply %q", reply)
		}
	}
}

func (b *SerialBridge) Read(ch Channel) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rw == nil {
		return 0, ErrUnavailable
	}
	b.seq++
	seq := b.seq
	if err := b.send(fmt.Sprintf("R%d#%d", ch, seq)); err != nil {
		return 0, err
	}

	deadline := time.Now().Add(b.Timeout)
	var lastErr error
	for stale := 0; stale <= maxStale; stale++ {
		line, err := b.readLine()
		if err != nil {
			return 0, err
		}
		r, err := parseBridgeReply(line)
		switch {
		case err != nil:
			lastErr = err
		case r.answers(ch, seq):
			return r.value, r.err
		default:
			lastErr = fmt.Errorf("stale reply %q", line)
		}
		if time.Now().After(deadline) {
			break
		}
	}
	return 0, fmt.Errorf("no reply for %s: %w", ch, lastErr)
}

func (b *SerialBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}

func (b *SerialBridge) closeLocked() error {
	if b.rw == nil {
		return nil
	}
	err := b.rw.Close()
	b.rw = nil
	b.reader = nil
	b.partial = ""
	return err
}

func (b *SerialBridge) send(request string) error {
	if _, err := io.WriteString(b.rw, request+"\n"); err != nil {
		return fmt.Errorf("%w: write: %v", ErrUnavailable, err)
	}
	return nil
}

// readLine returns the next complete line. A line cut short by a timeout
// is kept and completed by the next call.
func (b *SerialBridge) readLine() (string, error) {
	line, err := b.reader.ReadString('\n')
	line = b.partial + line
	if err != nil {
		b.partial = line
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe),
			errors.Is(err, os.ErrDeadlineExceeded), errors.Is(err, io.ErrNoProgress):
			return "", fmt.Errorf("%w: read: %v", ErrUnavailable, err)
		}
		return "", fmt.Errorf("read reply: %w", err)
	}
	b.partial = ""
	return strings.TrimSpace(line), nil
}

type bridgeReply struct {
	ch    Channel
	seq   int // -1 when untagged
	value int
	err   error
}

func (r bridgeReply) answers(ch Channel, seq uint16) bool {
	return r.ch == ch && (r.seq < 0 || r.seq == int(seq))
}

// parseBridgeReply decodes "<ch>:<value>[#seq]" or "E<ch>:<reason>[#seq]".
// A conversion failure reported by the bridge is returned in the reply's
// err; the error result is for lines that are not replies at all.
func parseBridgeReply(line string) (bridgeReply, error) {
	r := bridgeReply{seq: -1}
	body := line
	if i := strings.LastIndexByte(line, '#'); i >= 0 {
		seq, err := strconv.ParseUint(line[i+1:], 10, 16)
		if err != nil {
			return r, fmt.Errorf("malformed tag %q", line)
		}
		r.seq, body = int(seq), line[:i]
	}

	failed := strings.HasPrefix(body, "E")
	idx, val, ok := strings.Cut(strings.TrimPrefix(body, "E"), ":")
	if !ok {
		return r, fmt.Errorf("malformed reply %q", line)
	}
	n, err := strconv.Atoi(idx)
	if err != nil || n < 0 || n >= NumChannels {
		return r, fmt.Errorf("malformed channel %q", line)
	}
	r.ch = Channel(n)

	if failed {
		r.err = fmt.Errorf("bridge: %s", val)
		return r, nil
	}
	if r.value, err = strconv.Atoi(val); err != nil {
		return r, fmt.Errorf("malformed value %q", line)
	}
	return r, nil
}
