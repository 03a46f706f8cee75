package controller

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"ess/common"
	"ess/ess_sensors/db"
	"ess/ess_sensors/device"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := db.Init("file::memory:?cache=shared"); err != nil {
		log.Fatal(err)
	}

	exitCode := m.Run()
	db.Close()
	os.Exit(exitCode)
}

const (
	temperatureConfig = `{"devices": [
  {"name": "Test01", "device_type": "FTDI", "ftdi_id": "ABC", "sensor_type": "Temperature", "channels": 4}
]}`
	hx85aConfig = `{"devices": [
  {"name": "hx85a", "device_type": "FTDI", "ftdi_id": "ABC", "sensor_type": "HX85A"}
]}`
	threeDevicesConfig = `{"devices": [
  {"name": "a", "device_type": "FTDI", "ftdi_id": "A1", "sensor_type": "HX85A"},
  {"name": "b", "device_type": "Serial", "serial_port": "serial_ch_1", "sensor_type": "Wind"},
  {"name": "c", "device_type": "FTDI", "ftdi_id": "C1", "sensor_type": "Temperature", "channels": 2}
]}`
	missingSensorTypeConfig = `{"devices": [
  {"name": "a", "device_type": "FTDI", "ftdi_id": "A1", "sensor_type": "HX85A"},
  {"name": "b", "device_type": "Serial", "serial_port": "serial_ch_1"}
]}`
)

// configureParams decodes doc the way the command server does.
func configureParams(t *testing.T, doc string) map[string]any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(doc), &v))
	return map[string]any{common.KeyConfiguration: v}
}

// replies records what the handler and its devices deliver.
type replies struct {
	mu        sync.Mutex
	responses []common.ResponseCode
	err       error
	telemetry chan common.Telemetry
}

func newReplies() *replies {
	return &replies{telemetry: make(chan common.Telemetry, 1000)}
}

func (r *replies) reply(_ context.Context, v any) error {
	switch x := v.(type) {
	case common.Response:
		r.mu.Lock()
		defer r.mu.Unlock()
		r.responses = append(r.responses, x.Response)
		return r.err
	case common.Telemetry:
		select {
		case r.telemetry <- x:
		default:
		}
	}
	return nil
}

func (r *replies) codes() []common.ResponseCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]common.ResponseCode(nil), r.responses...)
}

func (r *replies) last(t *testing.T) common.ResponseCode {
	t.Helper()
	codes := r.codes()
	require.NotEmpty(t, codes)
	return codes[len(codes)-1]
}

func (r *replies) nextTelemetry(t *testing.T) common.Telemetry {
	t.Helper()
	select {
	case tel := <-r.telemetry:
		return tel
	case <-time.After(5 * time.Second):
		t.Fatal("no telemetry received")
	}
	return common.Telemetry{}
}

// eventLog records device opens and closes across devices.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeDevice struct {
	name     string
	log      *eventLog
	openErr  error
	closeErr error
}

func (d *fakeDevice) Name() string { return d.name }

func (d *fakeDevice) Open(context.Context) error {
	d.log.add("open " + d.name)
	return d.openErr
}

func (d *fakeDevice) Close(context.Context) error {
	d.log.add("close " + d.name)
	return d.closeErr
}

func (d *fakeDevice) Read() common.Telemetry {
	return common.Telemetry{Name: d.name}
}

type fakeFactory struct {
	log      *eventLog
	newErr   map[string]error
	openErr  map[string]error
	closeErr map[string]error
}

func (f *fakeFactory) newDevice(conf common.DeviceConfig, _ common.SimulationMode, _ common.SerialHardware,
	_ common.ReplyFunc, _ *zap.Logger) (device.Device, error) {
	if err := f.newErr[conf.Name]; err != nil {
		return nil, err
	}
	return &fakeDevice{name: conf.Name, log: f.log, openErr: f.openErr[conf.Name], closeErr: f.closeErr[conf.Name]}, nil
}

func newTestHandler(t *testing.T, r *replies, simulation common.SimulationMode, opts ...Option) *CommandHandler {
	t.Helper()
	h, err := NewCommandHandler(r.reply, simulation, common.SerialHardwareNone, zaptest.NewLogger(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { h.Shutdown(context.Background()) })
	return h
}

// mockOptions makes mock devices produce quickly.
func mockOptions(mock device.MockOptions) Option {
	return WithDeviceOptions(device.Options{MockInterval: 5 * time.Millisecond, RetryWait: 5 * time.Millisecond, Mock: mock})
}
