package custype

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

type TimeMillisecond int64

func ToTimeMillisecond(t time.Time) TimeMillisecond {
	return TimeMillisecond(t.UnixMilli())
}

// SecondsToTimeMillisecond converts unix seconds with fraction, as carried by telemetry.
func SecondsToTimeMillisecond(sec float64) TimeMillisecond {
	return TimeMillisecond(math.Round(sec * 1000))
}
func (t TimeMillisecond) ToInt64() int64 {
	return int64(t)
}
func (t TimeMillisecond) ToTime() time.Time {
	return time.UnixMilli(int64(t))
}
func (t TimeMillisecond) Value() (driver.Value, error) {
	return int64(t), nil
}
func (t *TimeMillisecond) Scan(src any) error {
	switch s := src.(type) {
	case time.Time:
		*t = ToTimeMillisecond(s)
	case int64:
		*t = TimeMillisecond(s)
	case nil:
		*t = 0
	default:
		return fmt.Errorf("unsupported Scan, storing driver.Value type %T into type TimeMillisecond", src)
	}
	return nil
}
func (t TimeMillisecond) String() string {
	return strconv.FormatInt(int64(t), 10)
}

// Duration reads "1.5s" style strings or plain numbers of seconds from JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		*d = Duration(val * float64(time.Second))
	case string:
		dur, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		*d = Duration(dur)
	case nil:
		*d = 0
	default:
		return fmt.Errorf("invalid duration %s", b)
	}
	return nil
}
