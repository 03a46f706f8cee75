package sensor

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"ess/common"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var ErrUnknownSensor = errors.New("unknown sensor type")

type Quantity string

const (
	Humidity      Quantity = "humidity"
	Temperature   Quantity = "temperature"
	DewPoint      Quantity = "dew_point"
	Pressure      Quantity = "pressure"
	WindSpeed     Quantity = "wind_speed"
	WindDirection Quantity = "wind_direction"
)

// Channel is one value of a reading together with the range the instrument reports.
type Channel struct {
	Quantity Quantity
	Unit     string
	Min      float64
	Max      float64
}

func (c Channel) InRange(v float64) bool {
	return v >= c.Min && v <= c.Max
}

var (
	humidityChannel      = Channel{Quantity: Humidity, Unit: "%", Min: 5, Max: 95}
	airTempChannel       = Channel{Quantity: Temperature, Unit: "°C", Min: -20, Max: 120}
	dewPointChannel      = Channel{Quantity: DewPoint, Unit: "°C", Min: -40, Max: 60}
	pressureChannel      = Channel{Quantity: Pressure, Unit: "mbar", Min: 10, Max: 1100}
	probeTempChannel     = Channel{Quantity: Temperature, Unit: "°C", Min: -40, Max: 100}
	windSpeedChannel     = Channel{Quantity: WindSpeed, Unit: "m/s", Min: 0, Max: 60}
	windDirectionChannel = Channel{Quantity: WindDirection, Unit: "deg", Min: 0, Max: 359}
)

// Descriptor describes the readings produced by one sensor type. It does no I/O.
type Descriptor struct {
	Type       common.SensorType
	Channels   []Channel
	Terminator string
	charset    encoding.Encoding
	proto      protocol
}

type protocol interface {
	extract(d Descriptor, line string) ([]float64, error)
	// format renders values the way the instrument does. The first missed channels are
	// left out, as when a read starts in the middle of a line.
	format(d Descriptor, values []float64, missed int) string
}

// Resolve maps a sensor type to its descriptor. channels is only used by Temperature.
func Resolve(typ common.SensorType, channels int) (Descriptor, error) {
	switch typ {
	case common.SensorTypeHx85a:
		return Descriptor{
			Type:       typ,
			Channels:   []Channel{humidityChannel, airTempChannel, dewPointChannel},
			Terminator: "\n\r",
			charset:    charmap.ISO8859_1,
			proto:      keyValue{prefixes: []string{"%RH", "AT°C", "DP°C"}, valueFmt: "%.2f"},
		}, nil
	case common.SensorTypeHx85ba:
		return Descriptor{
			Type:       typ,
			Channels:   []Channel{humidityChannel, airTempChannel, pressureChannel},
			Terminator: "\n\r",
			charset:    charmap.ISO8859_1,
			proto:      keyValue{prefixes: []string{"%RH", "AT°C", "Pmb"}, valueFmt: "%.2f"},
		}, nil
	case common.SensorTypeTemperature:
		if channels < 0 {
			return Descriptor{}, fmt.Errorf("temperature sensor with %d channels", channels)
		}
		chans := make([]Channel, channels)
		prefixes := make([]string, channels)
		for i := range chans {
			chans[i] = probeTempChannel
			prefixes[i] = fmt.Sprintf("C%02d", i)
		}
		return Descriptor{
			Type:       typ,
			Channels:   chans,
			Terminator: "\r\n",
			proto:      keyValue{prefixes: prefixes, valueFmt: "%09.4f", disconnected: DisconnectedValue},
		}, nil
	case common.SensorTypeWind:
		return Descriptor{
			Type:       typ,
			Channels:   []Channel{windSpeedChannel, windDirectionChannel},
			Terminator: "\r\n",
			proto:      windsonic{},
		}, nil
	}
	return Descriptor{}, fmt.Errorf("%w %q", ErrUnknownSensor, typ)
}

func (d Descriptor) NumChannels() int {
	return len(d.Channels)
}

// Missing returns a reading with every channel marked missing.
func (d Descriptor) Missing() []float64 {
	out := make([]float64, len(d.Channels))
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Extract converts one raw line, terminator included, into channel values.
func (d Descriptor) Extract(raw []byte) ([]float64, error) {
	line := string(raw)
	if d.charset != nil {
		b, err := d.charset.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, err
		}
		line = string(b)
	}
	return d.proto.extract(d, line)
}

// Format renders a line as the instrument would send it. NaN values are reported as
// disconnected where the protocol has a marker for it.
func (d Descriptor) Format(values []float64, missed int) ([]byte, error) {
	line := d.proto.format(d, values, missed) + d.Terminator
	if d.charset != nil {
		return d.charset.NewEncoder().Bytes([]byte(line))
	}
	return []byte(line), nil
}

func (d Descriptor) String() string {
	return string(d.Type) + "(" + strconv.Itoa(len(d.Channels)) + ")"
}
