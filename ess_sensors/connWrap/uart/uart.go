package uart

import (
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ess/ess_sensors/connWrap"

	"github.com/albenik/go-serial/v2"
	"go.uber.org/zap"
)

func getParity(parity string) serial.Parity {
	parity = strings.ToLower(parity)
	if p, ok := parityMap[parity]; ok {
		return p
	} else {
		return serial.NoParity
	}
}

var parityMap = map[string]serial.Parity{
	"none":  serial.NoParity,
	"odd":   serial.OddParity,
	"even":  serial.EvenParity,
	"mark":  serial.MarkParity,
	"space": serial.SpaceParity,
}

type Mode struct {
	BaudRate int    `json:"baud_rate"` // The serial port bitrate (aka Baud rate)
	DataBits int    `json:"data_bits"` // Size of the character (must be 5, 6, 7 or 8)
	Parity   string `json:"parity"`    // Parity: None, Odd, Even, Mark, Space
}

type port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	ResetInputBuffer() error
	Close() error
}

var openPort = func(name string, mode Mode, readTimeout time.Duration) (port, error) {
	p, err := serial.Open(name,
		serial.WithBaudrate(mode.BaudRate),
		serial.WithDataBits(mode.DataBits),
		serial.WithParity(getParity(mode.Parity)),
		serial.WithStopBits(serial.OneStopBit),
		serial.WithReadTimeout(int(readTimeout/time.Millisecond)),
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Uart is a port of the Raspberry Pi serial HAT, e.g. /dev/ttyS0 or serial_ch_1.
type Uart struct {
	mode        Mode
	portName    string
	readTimeout time.Duration

	mu          sync.Mutex
	conn        port
	closed      atomic.Bool
	inReconnect atomic.Bool
	logger      *zap.Logger
}

func NewUart(name string, readTimeout time.Duration, mode Mode, logger *zap.Logger) *Uart {
	return &Uart{
		portName:    name,
		readTimeout: readTimeout,
		mode:        mode,
		logger:      logger,
	}
}

func (c *Uart) Open() error {
	c.closed.Store(false)
	return c.open()
}

func (c *Uart) open() error {
	p, err := openPort(c.portName, c.mode, c.readTimeout)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// Close ran while the port was being opened
	if c.closed.Load() {
		_ = p.Close()
		return os.ErrClosed
	}
	c.conn = p
	return nil
}

func (c *Uart) port() port {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Uart) reopenUntilSuccess() {
	if !c.inReconnect.CompareAndSwap(false, true) {
		// inReconnect == true
		return
	}
	defer c.inReconnect.Store(false)
	if conn := c.port(); conn != nil {
		_ = conn.Close()
	}
	for !c.closed.Load() {
		err := c.open()
		if err == nil {
			c.logger.Info("reconnected", zap.String("uart", c.portName))
			return
		}
		if errors.Is(err, os.ErrClosed) {
			return
		}
		c.logger.Error("reconnect failed", zap.String("uart", c.portName), zap.Error(err))
		time.Sleep(10 * time.Second)
	}
}

func (c *Uart) Read(b []byte) (n int, err error) {
	conn := c.port()
	if conn == nil {
		return 0, os.ErrInvalid
	}
	defer func() { c.handleErr(err) }()
	n, err = conn.Read(b)
	if n == 0 && err == nil {
		return 0, connWrap.ErrTimeout
	}
	return n, err
}

func (c *Uart) Write(b []byte) (n int, err error) {
	conn := c.port()
	if conn == nil {
		return 0, os.ErrInvalid
	}
	defer func() { c.handleErr(err) }()
	return conn.Write(b)
}

func (c *Uart) ResetInputBuffer() (err error) {
	conn := c.port()
	if conn == nil {
		return os.ErrInvalid
	}
	defer func() { c.handleErr(err) }()
	return conn.ResetInputBuffer()
}

func (c *Uart) Close() error {
	c.closed.Store(true)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Uart) handleErr(err error) {
	if err == nil || errors.Is(err, connWrap.ErrTimeout) || c.closed.Load() {
		return
	}
	go c.reopenUntilSuccess()
}
