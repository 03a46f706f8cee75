package sensor

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DisconnectedValue is sent by temperature probes for a channel with nothing attached.
const DisconnectedValue = "9999.9990"

const delimiter = ","

// keyValue handles the "PREFIX=value,PREFIX=value" lines of the Omega HX85 family
// and the RTD temperature boxes.
//
//	HX85A:       %RH=38.86,AT°C=24.32,DP°C=8.48<LF><CR>
//	HX85BA:      %RH=38.86,AT°C=24.32,Pmb=911.40<LF><CR>
//	Temperature: C00=0010.1100,C01=0009.9896<CR><LF>
type keyValue struct {
	prefixes     []string
	valueFmt     string
	disconnected string
}

func (p keyValue) extract(d Descriptor, line string) ([]float64, error) {
	stripped := strings.Trim(line, d.Terminator)
	output := make([]float64, 0, len(d.Channels))
	if stripped != "" {
		for _, item := range strings.Split(stripped, delimiter) {
			kv := strings.Split(item, "=")
			switch len(kv) {
			case 1:
				output = append(output, math.NaN())
			case 2:
				if p.disconnected != "" && kv[1] == p.disconnected {
					output = append(output, math.NaN())
					continue
				}
				f, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64)
				if err != nil {
					return nil, fmt.Errorf("telemetry item %q: %w", item, err)
				}
				output = append(output, f)
			default:
				return nil, fmt.Errorf("at most one '=' expected in telemetry item %q", item)
			}
		}
	}
	if len(output) > len(d.Channels) {
		return nil, fmt.Errorf("%d values for %d channels", len(output), len(d.Channels))
	}
	// A read that started mid-line only holds the trailing channels.
	missing := len(d.Channels) - len(output)
	if missing > 0 {
		output = append(make([]float64, missing), output...)
		for i := 0; i < missing; i++ {
			output[i] = math.NaN()
		}
	}
	return output, nil
}

func (p keyValue) format(_ Descriptor, values []float64, missed int) string {
	items := make([]string, 0, len(values))
	for i := missed; i < len(values) && i < len(p.prefixes); i++ {
		if math.IsNaN(values[i]) {
			if p.disconnected != "" {
				items = append(items, p.prefixes[i]+"="+p.disconnected)
			} else {
				items = append(items, p.prefixes[i])
			}
			continue
		}
		items = append(items, p.prefixes[i]+"="+fmt.Sprintf(p.valueFmt, values[i]))
	}
	return strings.Join(items, delimiter)
}
