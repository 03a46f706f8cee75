package sensor

import (
	"math"
	"testing"

	"ess/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		typ      common.SensorType
		channels int
		want     []Quantity
	}{
		{name: "hx85a", typ: common.SensorTypeHx85a, want: []Quantity{Humidity, Temperature, DewPoint}},
		{name: "hx85ba", typ: common.SensorTypeHx85ba, want: []Quantity{Humidity, Temperature, Pressure}},
		{name: "temperature", typ: common.SensorTypeTemperature, channels: 4, want: []Quantity{Temperature, Temperature, Temperature, Temperature}},
		{name: "temperature without channels", typ: common.SensorTypeTemperature, want: []Quantity{}},
		{name: "wind", typ: common.SensorTypeWind, channels: 7, want: []Quantity{WindSpeed, WindDirection}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Resolve(tt.typ, tt.channels)
			require.NoError(t, err)
			got := make([]Quantity, 0, d.NumChannels())
			for _, c := range d.Channels {
				got = append(got, c.Quantity)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.typ, d.Type)
		})
	}
}

func TestResolveUnknown(t *testing.T) {
	_, err := Resolve("Barometer", 0)
	assert.ErrorIs(t, err, ErrUnknownSensor)

	_, err = Resolve(common.SensorTypeTemperature, -1)
	assert.Error(t, err)
}

func isoLine(t *testing.T, s string) []byte {
	b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	require.NoError(t, err)
	return b
}

func TestExtractHx85(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name    string
		typ     common.SensorType
		line    string
		want    []float64
		wantErr bool
	}{
		{name: "hx85a full", typ: common.SensorTypeHx85a, line: "%RH=38.86,AT°C=24.32,DP°C=8.48\n\r", want: []float64{38.86, 24.32, 8.48}},
		{name: "hx85ba full", typ: common.SensorTypeHx85ba, line: "%RH=38.86,AT°C=24.32,Pmb=911.40\n\r", want: []float64{38.86, 24.32, 911.40}},
		{name: "partial line", typ: common.SensorTypeHx85ba, line: "AT°C=24.32,Pmb=911.40\n\r", want: []float64{nan, 24.32, 911.40}},
		{name: "item without value", typ: common.SensorTypeHx85a, line: "%RH,AT°C=24.32,DP°C=8.48\n\r", want: []float64{nan, 24.32, 8.48}},
		{name: "empty line", typ: common.SensorTypeHx85a, line: "\n\r", want: []float64{nan, nan, nan}},
		{name: "two equal signs", typ: common.SensorTypeHx85a, line: "%RH=1=2,AT°C=24.32,DP°C=8.48\n\r", wantErr: true},
		{name: "not a number", typ: common.SensorTypeHx85a, line: "%RH=abc,AT°C=24.32,DP°C=8.48\n\r", wantErr: true},
		{name: "too many values", typ: common.SensorTypeHx85a, line: "a=1,b=2,c=3,d=4\n\r", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Resolve(tt.typ, 0)
			require.NoError(t, err)
			got, err := d.Extract(isoLine(t, tt.line))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assertValues(t, tt.want, got)
		})
	}
}

func TestExtractTemperature(t *testing.T) {
	nan := math.NaN()
	d, err := Resolve(common.SensorTypeTemperature, 4)
	require.NoError(t, err)

	got, err := d.Extract([]byte("C00=0010.1100,C01=0009.9896,C02=9999.9990,C03=-005.5000\r\n"))
	require.NoError(t, err)
	assertValues(t, []float64{10.11, 9.9896, nan, -5.5}, got)

	got, err = d.Extract([]byte("C02=0001.0000,C03=0002.0000\r\n"))
	require.NoError(t, err)
	assertValues(t, []float64{nan, nan, 1, 2}, got)
}

func TestExtractWind(t *testing.T) {
	d, err := Resolve(common.SensorTypeWind, 0)
	require.NoError(t, err)

	body := "Q,229,002.74,M,00,"
	got, err := d.Extract([]byte("\x02" + body + "\x03" + checksum(body) + "\r\n"))
	require.NoError(t, err)
	assertValues(t, []float64{2.74, 229}, got)

	body = "Q,,000.02,M,00,"
	got, err = d.Extract([]byte("\x02" + body + "\x03" + checksum(body) + "\r\n"))
	require.NoError(t, err)
	assertValues(t, []float64{0.02, math.NaN()}, got)

	body = "Q,229,,M,00,"
	got, err = d.Extract([]byte("\x02" + body + "\x03" + checksum(body) + "\r\n"))
	require.NoError(t, err)
	assertValues(t, []float64{math.NaN(), 229}, got)

	_, err = d.Extract([]byte("\x02Q,229,002.74,M,00,\x0300\r\n"))
	assert.ErrorIs(t, err, ErrChecksum)

	body = "Q,229,002.74,M,04,"
	_, err = d.Extract([]byte("\x02" + body + "\x03" + checksum(body) + "\r\n"))
	assert.Error(t, err)

	_, err = d.Extract([]byte("229,002.74\r\n"))
	assert.Error(t, err)
}

func TestFormatRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		typ    common.SensorType
		chans  int
		values []float64
		missed int
		want   []float64
	}{
		{name: "hx85a", typ: common.SensorTypeHx85a, values: []float64{50.5, 21.25, 10}, want: []float64{50.5, 21.25, 10}},
		{name: "hx85ba missed", typ: common.SensorTypeHx85ba, values: []float64{50.5, 21.25, 900}, missed: 2, want: []float64{math.NaN(), math.NaN(), 900}},
		{name: "temperature disconnected", typ: common.SensorTypeTemperature, chans: 3, values: []float64{1.5, math.NaN(), -2}, want: []float64{1.5, math.NaN(), -2}},
		{name: "wind", typ: common.SensorTypeWind, values: []float64{12.34, 180}, want: []float64{12.34, 180}},
		{name: "wind no speed", typ: common.SensorTypeWind, values: []float64{math.NaN(), 180}, want: []float64{math.NaN(), 180}},
		{name: "wind no direction", typ: common.SensorTypeWind, values: []float64{0.5, math.NaN()}, want: []float64{0.5, math.NaN()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Resolve(tt.typ, tt.chans)
			require.NoError(t, err)
			line, err := d.Format(tt.values, tt.missed)
			require.NoError(t, err)
			got, err := d.Extract(line)
			require.NoError(t, err)
			assertValues(t, tt.want, got)
		})
	}
}

func TestMissing(t *testing.T) {
	d, err := Resolve(common.SensorTypeHx85a, 0)
	require.NoError(t, err)
	for _, v := range d.Missing() {
		assert.True(t, math.IsNaN(v))
	}
	assert.Len(t, d.Missing(), 3)
}

func assertValues(t *testing.T, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(got[i]), "channel %d: want NaN, got %v", i, got[i])
			continue
		}
		assert.InDelta(t, want[i], got[i], 1e-9, "channel %d", i)
	}
}
