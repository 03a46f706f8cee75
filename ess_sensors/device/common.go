package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ess/common"
	"ess/ess_sensors/connWrap"
	"ess/ess_sensors/connWrap/uart"
	"ess/ess_sensors/sensor"

	"go.uber.org/zap"
)

var ErrUnsupportedDevice = errors.New("unsupported device")

// Device is a transport bound to a sensor. Once opened it reads on its own and hands
// every reading to the reply callback until it is closed.
type Device interface {
	Name() string
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	// Read returns one reading. While the device is open it is the latest reading of
	// the read loop.
	Read() common.Telemetry
}

type Kind uint8

const (
	KindMock Kind = iota + 1
	KindFtdi
	KindSerial
)

func (k Kind) String() string {
	switch k {
	case KindMock:
		return "MockDevice"
	case KindFtdi:
		return "VcpFtdi"
	case KindSerial:
		return "RpiSerialHat"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Select decides which kind of device serves conf. Simulation wins over everything.
func Select(conf common.DeviceConfig, simulation common.SimulationMode, hw common.SerialHardware) (Kind, error) {
	switch {
	case simulation == common.SimulationOn:
		return KindMock, nil
	case conf.DeviceType == common.DeviceTypeFtdi:
		return KindFtdi, nil
	case conf.DeviceType == common.DeviceTypeSerial && hw == common.SerialHardwareAvailable:
		return KindSerial, nil
	}
	return 0, fmt.Errorf("%w: could not get a %q device with serial hardware %s, please check the configuration",
		ErrUnsupportedDevice, conf.DeviceType, hw)
}

type Options struct {
	ReadTimeout  time.Duration
	RetryWait    time.Duration
	Uart         uart.Mode
	FtdiBaudRate int
	MockInterval time.Duration
	Mock         MockOptions
}

func (o Options) withDefaults() Options {
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 2 * time.Second
	}
	if o.RetryWait <= 0 {
		o.RetryWait = time.Second
	}
	if o.Uart.BaudRate == 0 {
		o.Uart.BaudRate = 19200
	}
	if o.Uart.DataBits == 0 {
		o.Uart.DataBits = 8
	}
	if o.FtdiBaudRate == 0 {
		o.FtdiBaudRate = 19200
	}
	if o.MockInterval <= 0 {
		o.MockInterval = time.Second
	}
	return o
}

// NewConnFunc builds the transport of one device. id is the FTDI serial number or the
// serial port, or the device name for mocks.
type NewConnFunc func(id string, d sensor.Descriptor, opts Options, logger *zap.Logger) connWrap.ConnCommon

var (
	transportsMu sync.RWMutex
	transports   = make(map[Kind]NewConnFunc)
)

func RegisterTransport(kind Kind, f NewConnFunc) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	if f == nil {
		panic("Register transport is nil")
	}
	if _, dup := transports[kind]; dup {
		panic("Register called twice for transport " + kind.String())
	}
	transports[kind] = f
}

func getTransport(kind Kind) (NewConnFunc, bool) {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	f, ok := transports[kind]
	return f, ok
}

// New resolves the sensor of conf, selects the device kind and builds the device.
// It does no I/O; the device is opened by Open.
func New(conf common.DeviceConfig, simulation common.SimulationMode, hw common.SerialHardware,
	reply common.ReplyFunc, logger *zap.Logger, opts Options) (*SensorDevice, error) {
	d, err := sensor.Resolve(conf.SensorType, conf.Channels)
	if err != nil {
		return nil, fmt.Errorf("could not get a sensor for device %q: %w", conf.Name, err)
	}
	kind, err := Select(conf, simulation, hw)
	if err != nil {
		return nil, err
	}
	id, err := conf.DeviceId()
	if err != nil {
		if kind != KindMock {
			return nil, err
		}
		id = conf.Name
	}
	newConn, ok := getTransport(kind)
	if !ok {
		return nil, fmt.Errorf("%w: no transport registered for %s", ErrUnsupportedDevice, kind)
	}
	opts = opts.withDefaults()
	logger = logger.Named(kind.String()).With(zap.String("device", conf.Name))
	logger.Debug("creating device", zap.String("id", id), zap.Stringer("sensor", d))

	dev := &SensorDevice{
		name:      conf.Name,
		kind:      kind,
		id:        id,
		sensor:    d,
		conn:      connWrap.NewConnUtil(newConn(id, d, opts, logger), kind.String()),
		reply:     reply,
		logger:    logger,
		retryWait: opts.RetryWait,
		now:       time.Now,
	}
	if kind == KindMock && opts.Mock.InErrorState {
		dev.SetErrorState(true)
	}
	return dev, nil
}
