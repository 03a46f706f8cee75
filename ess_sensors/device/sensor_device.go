package device

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ess/common"
	"ess/ess_sensors/connWrap"
	"ess/ess_sensors/sensor"

	"go.uber.org/zap"
)

type SensorDevice struct {
	name      string
	kind      Kind
	id        string
	sensor    sensor.Descriptor
	conn      *connWrap.ConnUtil
	reply     common.ReplyFunc
	logger    *zap.Logger
	retryWait time.Duration
	now       func() time.Time

	mu     sync.Mutex
	isOpen bool
	cancel context.CancelFunc
	done   chan struct{}

	readMu       sync.Mutex
	last         atomic.Pointer[common.Telemetry]
	inErrorState atomic.Bool
}

func (d *SensorDevice) Name() string { return d.name }
func (d *SensorDevice) Kind() Kind { return d.kind }
func (d *SensorDevice) Id() string { return d.id }
func (d *SensorDevice) Sensor() sensor.Descriptor { return d.sensor }

func (d *SensorDevice) String() string {
	return fmt.Sprintf("%s(%s, %s)", d.kind, d.name, d.sensor)
}

func (d *SensorDevice) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isOpen
}

// SetErrorState makes every following reading fail. Used to exercise error handling
// without hardware.
func (d *SensorDevice) SetErrorState(on bool) {
	d.inErrorState.Store(on)
}

// Open opens the transport and starts the read loop. The loop keeps the values of ctx
// but not its cancellation; it ends with Close.
func (d *SensorDevice) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.isOpen {
		d.logger.Error("already open, ignoring")
		return nil
	}
	if err := d.conn.Open(); err != nil {
		return fmt.Errorf("open %s: %w", d, err)
	}
	d.isOpen = true
	d.last.Store(nil)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel
	d.done = make(chan struct{})
	d.logger.Debug("starting read loop")
	go d.run(loopCtx, d.done)
	return nil
}

// Close stops the read loop and closes the transport. No reading is delivered after
// Close returns.
func (d *SensorDevice) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.isOpen {
		return nil
	}
	d.isOpen = false
	d.logger.Debug("stopping read loop")
	d.cancel()
	err := d.conn.Close()
	select {
	case <-d.done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	if err != nil {
		return fmt.Errorf("close %s: %w", d, err)
	}
	return nil
}

// Read returns one reading. While the read loop runs it is the latest reading of the
// loop and the transport is left alone.
func (d *SensorDevice) Read() common.Telemetry {
	if t := d.last.Load(); t != nil && d.IsOpen() {
		return *t
	}
	t, _ := d.readOnce()
	return t
}

func (d *SensorDevice) readOnce() (common.Telemetry, error) {
	d.readMu.Lock()
	defer d.readMu.Unlock()
	t, err := d.read()
	d.last.Store(&t)
	return t, err
}

// read returns the reading and the transport error, if any. A reading always has one
// value per channel; failed channels are NaN.
func (d *SensorDevice) read() (common.Telemetry, error) {
	t := common.Telemetry{
		Name:      d.name,
		Timestamp: float64(d.now().UnixNano()) / 1e9,
		Code:      common.OK,
		Values:    d.sensor.Missing(),
	}
	line, err := d.conn.ReadLine(d.sensor.Terminator)
	if err != nil {
		d.logger.Error("reading device failed, continuing", zap.Error(err))
		t.Code = common.DeviceReadError
	} else if values, perr := d.sensor.Extract(line); perr != nil {
		d.logger.Error("extracting telemetry failed",
			zap.Error(&connWrap.Error{Type: connWrap.ErrParse, Received: line, Err: perr}))
		t.Code = common.DeviceReadError
	} else {
		t.Values = values
	}
	if d.inErrorState.Load() {
		t.Code = common.DeviceReadError
		t.Values = d.sensor.Missing()
	}
	return t, err
}

func (d *SensorDevice) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for ctx.Err() == nil {
		t, readErr := d.readOnce()
		if ctx.Err() != nil {
			return
		}
		if d.logger.Core().Enabled(zap.DebugLevel) {
			d.logger.Debug("returning telemetry", zap.Any("telemetry", t.Tuple()))
		}
		if err := d.reply(ctx, t); err != nil {
			d.logger.Warn("delivering telemetry failed", zap.Error(err))
		}
		if readErr != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.retryWait):
			}
		}
	}
}
