package sensor

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	stx = '\x02'
	etx = '\x03'

	windsonicUnitId = "Q"
	windsonicUnits  = "M"
	windsonicOK     = "00"
)

var ErrChecksum = errors.New("checksum mismatch")

// windsonic handles the Gill Windsonic polar ASCII format:
//
//	<STX>Q,DDD,SSS.SS,M,00,<ETX>CS<CR><LF>
//
// CS is the XOR of every byte between STX and ETX, as two hex digits. The direction
// field is empty when the wind speed is too low to determine it. An empty field is NaN.
type windsonic struct{}

func (windsonic) extract(d Descriptor, line string) ([]float64, error) {
	stripped := strings.Trim(line, d.Terminator)
	start := strings.IndexByte(stripped, stx)
	end := strings.IndexByte(stripped, etx)
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("incomplete windsonic line %q", stripped)
	}
	body := stripped[start+1 : end]
	if cs := stripped[end+1:]; cs != checksum(body) {
		return nil, fmt.Errorf("%w: got %q, computed %q", ErrChecksum, cs, checksum(body))
	}
	fields := strings.Split(body, ",")
	if len(fields) < 5 || fields[0] != windsonicUnitId {
		return nil, fmt.Errorf("unexpected windsonic line %q", body)
	}
	if fields[4] != windsonicOK {
		return nil, fmt.Errorf("windsonic status %s", fields[4])
	}
	var err error
	speed := math.NaN()
	if fields[2] != "" {
		if speed, err = strconv.ParseFloat(fields[2], 64); err != nil {
			return nil, fmt.Errorf("wind speed %q: %w", fields[2], err)
		}
	}
	direction := math.NaN()
	if fields[1] != "" {
		if direction, err = strconv.ParseFloat(fields[1], 64); err != nil {
			return nil, fmt.Errorf("wind direction %q: %w", fields[1], err)
		}
	}
	return []float64{speed, direction}, nil
}

func (windsonic) format(_ Descriptor, values []float64, missed int) string {
	var dir, speed string
	if !math.IsNaN(values[1]) {
		dir = fmt.Sprintf("%03.0f", values[1])
	}
	if !math.IsNaN(values[0]) {
		speed = fmt.Sprintf("%06.2f", values[0])
	}
	body := strings.Join([]string{windsonicUnitId, dir, speed, windsonicUnits, windsonicOK, ""}, ",")
	line := string(stx) + body + string(etx) + checksum(body)
	if missed > 0 {
		// the reader only caught the tail end of the line
		return line[strings.IndexByte(line, ',')+1:]
	}
	return line
}

func checksum(body string) string {
	var cs byte
	for i := 0; i < len(body); i++ {
		cs ^= body[i]
	}
	return fmt.Sprintf("%02X", cs)
}
