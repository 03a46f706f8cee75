package schema

import (
	"testing"

	"ess/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func device(kv ...any) map[string]any {
	m := make(map[string]any)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i].(string)] = kv[i+1]
	}
	return m
}

func devices(ds ...map[string]any) map[string]any {
	list := make([]any, len(ds))
	for i, d := range ds {
		list[i] = d
	}
	return map[string]any{"devices": list}
}

var (
	temperature = device("name", "Test01", "device_type", "FTDI", "ftdi_id", "ABC", "sensor_type", "Temperature", "channels", 4)
	wind        = device("name", "Test02", "device_type", "Serial", "serial_port", "serial_ch_1", "sensor_type", "Wind")
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     any
		wantErr string
	}{
		{name: "two devices", doc: devices(temperature, wind)},
		{name: "no devices", doc: devices()},
		{name: "float channels from json", doc: devices(device("name", "t", "device_type", "FTDI", "ftdi_id", "A", "sensor_type", "Temperature", "channels", 2.0))},
		{name: "hx85 on ftdi", doc: devices(device("name", "hx", "device_type", "FTDI", "ftdi_id", "A", "sensor_type", "HX85BA"))},
		{name: "missing devices", doc: map[string]any{}, wantErr: "devices"},
		{name: "devices not a list", doc: map[string]any{"devices": "Test01"}, wantErr: "/devices"},
		{name: "extra property", doc: map[string]any{"devices": []any{}, "verbose": true}, wantErr: "verbose"},
		{name: "not an object", doc: []any{temperature}, wantErr: "/"},
		{name: "missing name", doc: devices(device("device_type", "Serial", "serial_port", "p", "sensor_type", "Wind")), wantErr: "name"},
		{name: "unknown device type", doc: devices(device("name", "x", "device_type", "Bluetooth", "sensor_type", "Wind")), wantErr: "/devices/0/device_type"},
		{name: "unknown sensor type", doc: devices(device("name", "x", "device_type", "Serial", "serial_port", "p", "sensor_type", "Barometer")), wantErr: "/devices/0/sensor_type"},
		{name: "ftdi without ftdi_id", doc: devices(device("name", "x", "device_type", "FTDI", "sensor_type", "Wind")), wantErr: "ftdi_id"},
		{name: "serial without serial_port", doc: devices(wind, device("name", "x", "device_type", "Serial", "sensor_type", "Wind")), wantErr: "serial_port"},
		{name: "temperature without channels", doc: devices(device("name", "x", "device_type", "FTDI", "ftdi_id", "A", "sensor_type", "Temperature")), wantErr: "channels"},
		{name: "negative channels", doc: devices(device("name", "x", "device_type", "FTDI", "ftdi_id", "A", "sensor_type", "Temperature", "channels", -1)), wantErr: "/devices/0/channels"},
		{name: "fractional channels", doc: devices(device("name", "x", "device_type", "FTDI", "ftdi_id", "A", "sensor_type", "Temperature", "channels", 1.5)), wantErr: "/devices/0/channels"},
		{name: "name not a string", doc: devices(device("name", 1, "device_type", "Serial", "serial_port", "p", "sensor_type", "Wind")), wantErr: "/devices/0/name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.doc)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_AllViolationsReported(t *testing.T) {
	err := Validate(devices(
		device("name", "a", "device_type", "FTDI", "sensor_type", "Wind"),
		device("name", "b", "device_type", "Serial", "sensor_type", "Wind"),
	))
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "/devices/0")
	assert.Contains(t, err.Error(), "ftdi_id")
	assert.Contains(t, err.Error(), "/devices/1")
	assert.Contains(t, err.Error(), "serial_port")
}

func TestValidate_Configuration(t *testing.T) {
	conf := common.Configuration{Devices: []common.DeviceConfig{
		{Name: "Test01", DeviceType: common.DeviceTypeFtdi, SensorType: common.SensorTypeTemperature, FtdiId: "ABC", Channels: 4},
		{Name: "Test02", DeviceType: common.DeviceTypeSerial, SensorType: common.SensorTypeWind, SerialPort: "serial_ch_1"},
	}}
	assert.NoError(t, Validate(conf))

	conf.Devices[1].SerialPort = ""
	assert.ErrorIs(t, Validate(conf), ErrInvalid)
}

func TestValidate_Unencodable(t *testing.T) {
	assert.ErrorIs(t, Validate(map[string]any{"devices": make(chan int)}), ErrInvalid)
}
