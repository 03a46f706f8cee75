package ftdi

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"ess/ess_sensors/connWrap"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"
)

// VendorId is the USB vendor id of Future Technology Devices International.
const VendorId = "0403"

var ErrNotFound = errors.New("ftdi device not found")

// Ftdi is an FTDI USB adapter driven through its virtual COM port. The adapter is
// addressed by its USB serial number, so it survives being plugged into another port.
type Ftdi struct {
	serialNumber string
	mode         serial.Mode
	readTimeout  time.Duration
	logger       *zap.Logger

	mu       sync.Mutex
	conn     serial.Port
	portName string
}

func NewFtdi(serialNumber string, readTimeout time.Duration, baudRate int, logger *zap.Logger) *Ftdi {
	return &Ftdi{
		serialNumber: serialNumber,
		readTimeout:  readTimeout,
		mode: serial.Mode{
			BaudRate: baudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
		logger: logger,
	}
}

// FindPort returns the port name of the FTDI adapter with the given serial number.
func FindPort(serialNumber string) (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", err
	}
	for _, port := range ports {
		if !port.IsUSB || !strings.EqualFold(port.VID, VendorId) {
			continue
		}
		if port.SerialNumber == serialNumber {
			return port.Name, nil
		}
	}
	return "", fmt.Errorf("%w: serial number %q", ErrNotFound, serialNumber)
}

func (c *Ftdi) Open() error {
	name, err := FindPort(c.serialNumber)
	if err != nil {
		return err
	}
	port, err := serial.Open(name, &c.mode)
	if err != nil {
		return err
	}
	if err = port.SetReadTimeout(c.readTimeout); err != nil {
		_ = port.Close()
		return err
	}
	c.mu.Lock()
	c.conn = port
	c.portName = name
	c.mu.Unlock()
	c.logger.Debug("opened", zap.String("ftdi_id", c.serialNumber), zap.String("port", name))
	return nil
}

func (c *Ftdi) port() serial.Port {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Ftdi) Read(b []byte) (int, error) {
	conn := c.port()
	if conn == nil {
		return 0, os.ErrInvalid
	}
	n, err := conn.Read(b)
	if n == 0 && err == nil {
		return 0, connWrap.ErrTimeout
	}
	return n, err
}

func (c *Ftdi) Write(b []byte) (int, error) {
	conn := c.port()
	if conn == nil {
		return 0, os.ErrInvalid
	}
	return conn.Write(b)
}

func (c *Ftdi) ResetInputBuffer() error {
	conn := c.port()
	if conn == nil {
		return os.ErrInvalid
	}
	return conn.ResetInputBuffer()
}

func (c *Ftdi) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
