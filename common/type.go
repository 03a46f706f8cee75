package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ReplyFunc delivers a Response or a Telemetry reply to the remote caller.
// Device read loops and the command handler call it concurrently.
type ReplyFunc func(ctx context.Context, reply any) error

type Configuration struct {
	Devices []DeviceConfig `json:"devices" mapstructure:"devices"`
}

type DeviceConfig struct {
	Name       string     `json:"name" mapstructure:"name"`
	DeviceType DeviceType `json:"device_type" mapstructure:"device_type"`
	SensorType SensorType `json:"sensor_type" mapstructure:"sensor_type"`
	FtdiId     string     `json:"ftdi_id,omitempty" mapstructure:"ftdi_id"`
	SerialPort string     `json:"serial_port,omitempty" mapstructure:"serial_port"`
	Channels   int        `json:"channels,omitempty" mapstructure:"channels"`
}

var ErrMissingField = errors.New("missing configuration field")

// DeviceId returns the transport address matching the device type.
func (c DeviceConfig) DeviceId() (string, error) {
	switch c.DeviceType {
	case DeviceTypeFtdi:
		if c.FtdiId == "" {
			return "", fmt.Errorf("%w %s for device %q", ErrMissingField, KeyFtdiId, c.Name)
		}
		return c.FtdiId, nil
	case DeviceTypeSerial:
		if c.SerialPort == "" {
			return "", fmt.Errorf("%w %s for device %q", ErrMissingField, KeySerialPort, c.Name)
		}
		return c.SerialPort, nil
	default:
		return "", fmt.Errorf("%w %s for device %q", ErrMissingField, KeyDeviceType, c.Name)
	}
}

type Response struct {
	Response ResponseCode `json:"response"`
}

// Telemetry is one reading of a device. Values holds NaN for channels the device
// did not produce.
type Telemetry struct {
	Name      string
	Timestamp float64
	Code      ResponseCode
	Values    []float64
}

// Tuple returns the reading as (name, timestamp, code, *values). NaN becomes nil.
func (t Telemetry) Tuple() []any {
	out := make([]any, 0, 3+len(t.Values))
	out = append(out, t.Name, t.Timestamp, t.Code)
	for _, v := range t.Values {
		if math.IsNaN(v) {
			out = append(out, nil)
		} else {
			out = append(out, v)
		}
	}
	return out
}

func (t Telemetry) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string][]any{KeyTelemetry: t.Tuple()})
}

// CommandMsg is one line sent by the remote caller.
type CommandMsg struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters"`
}
