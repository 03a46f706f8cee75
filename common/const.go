package common

import (
	"errors"
	"fmt"
)

type ResponseCode int

const (
	OK ResponseCode = iota
	NotConfigured
	NotStarted
	AlreadyStarted
	InvalidConfiguration
	DeviceReadError
)

func (c ResponseCode) String() string {
	switch c {
	case OK:
		return "OK"
	case NotConfigured:
		return "NOT_CONFIGURED"
	case NotStarted:
		return "NOT_STARTED"
	case AlreadyStarted:
		return "ALREADY_STARTED"
	case InvalidConfiguration:
		return "INVALID_CONFIGURATION"
	case DeviceReadError:
		return "DEVICE_READ_ERROR"
	default:
		return fmt.Sprintf("ResponseCode(%d)", int(c))
	}
}

// Command is one of the commands understood by the command handler.
type Command uint8

const (
	CmdConfigure Command = iota + 1
	CmdStart
	CmdStop
)

var commandNames = map[string]Command{
	"configure": CmdConfigure,
	"start":     CmdStart,
	"stop":      CmdStop,
}

func (c Command) String() string {
	switch c {
	case CmdConfigure:
		return "configure"
	case CmdStart:
		return "start"
	case CmdStop:
		return "stop"
	default:
		return fmt.Sprintf("Command(%d)", uint8(c))
	}
}

var ErrUnknownCommand = errors.New("unknown command")

// ParseCommand maps a wire command name to a Command.
func ParseCommand(name string) (Command, error) {
	if c, ok := commandNames[name]; ok {
		return c, nil
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownCommand, name)
}

type DeviceType = string
type SensorType = string

const (
	DeviceTypeFtdi   DeviceType = "FTDI"
	DeviceTypeSerial DeviceType = "Serial"
)

const (
	SensorTypeHx85a       SensorType = "HX85A"
	SensorTypeHx85ba      SensorType = "HX85BA"
	SensorTypeTemperature SensorType = "Temperature"
	SensorTypeWind        SensorType = "Wind"
)

// Keys of the command protocol and the configuration document.
const (
	KeyCommand       = "command"
	KeyParameters    = "parameters"
	KeyConfiguration = "configuration"
	KeyResponse      = "response"
	KeyTelemetry     = "telemetry"
	KeyDevices       = "devices"
	KeyName          = "name"
	KeyDeviceType    = "device_type"
	KeySensorType    = "sensor_type"
	KeyFtdiId        = "ftdi_id"
	KeySerialPort    = "serial_port"
	KeyChannels      = "channels"
)

// SimulationMode 0 reads real hardware, 1 replaces every device with a mock.
type SimulationMode int

const (
	SimulationOff SimulationMode = 0
	SimulationOn  SimulationMode = 1
)

var ErrInvalidSimulationMode = errors.New("invalid simulation mode")

func (m SimulationMode) Validate() error {
	switch m {
	case SimulationOff, SimulationOn:
		return nil
	default:
		return fmt.Errorf("%w: simulation_mode=%d not in (%d, %d)", ErrInvalidSimulationMode, int(m), SimulationOff, SimulationOn)
	}
}

// SerialHardware tells whether this host may drive serial hardware directly.
type SerialHardware uint8

const (
	SerialHardwareNone SerialHardware = iota
	SerialHardwareAvailable
)

func (s SerialHardware) String() string {
	if s == SerialHardwareAvailable {
		return "available"
	}
	return "none"
}
