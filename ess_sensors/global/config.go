package global

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"ess/common"
	"ess/ess_sensors/connWrap/uart"
	"ess/pkg/custype"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/rpi"
)

const (
	SerialHardwareAuto      = "auto"
	SerialHardwareAvailable = "available"
	SerialHardwareNone      = "none"
)

var Config struct {
	LogLevel string `json:"log_level"`
	Listen   string `json:"listen"`
	Monitor  struct {
		Listen string `json:"listen"`
	} `json:"monitor"`
	SimulationMode common.SimulationMode `json:"simulation_mode"`
	SerialHardware string                `json:"serial_hardware"`
	Db             struct {
		Dsn      string `json:"dsn"`
		HoldDays int    `json:"hold_days"`
	} `json:"db"`
	Mock struct {
		Interval custype.Duration `json:"interval"`
	} `json:"mock"`
	Uart struct {
		uart.Mode
		ReadTimeout custype.Duration `json:"read_timeout"`
	} `json:"uart"`
}

var Logger *zap.Logger
var CronJob *cron.Cron

// Init reads the config file. Values already set by flags are kept when the file
// leaves them empty.
func Init(name string) {
	b, err := os.ReadFile(name)
	if err != nil {
		log.Fatal(err)
	}
	logLevel := Config.LogLevel
	if err = json.Unmarshal(b, &Config); err != nil {
		log.Fatal(err)
	}
	if logLevel != "" {
		Config.LogLevel = logLevel
	}
	if Config.SerialHardware == "" {
		Config.SerialHardware = SerialHardwareAuto
	}
	if Logger, err = NewLogger(Config.LogLevel); err != nil {
		log.Fatal(err)
	}
	CronJob = cron.New(cron.WithParser(cron.NewParser(cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	CronJob.Start()
}

// NewLogger builds a production logger, or a development one at debug level.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	var cfg zap.Config
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// SerialHardware resolves the serial_hardware setting. "auto" reports serial hardware
// when running on a Raspberry Pi.
func SerialHardware(setting string) (common.SerialHardware, error) {
	switch strings.ToLower(setting) {
	case SerialHardwareAvailable:
		return common.SerialHardwareAvailable, nil
	case SerialHardwareNone:
		return common.SerialHardwareNone, nil
	case SerialHardwareAuto, "":
		if _, err := host.Init(); err != nil {
			return common.SerialHardwareNone, err
		}
		if rpi.Present() {
			return common.SerialHardwareAvailable, nil
		}
		return common.SerialHardwareNone, nil
	}
	return common.SerialHardwareNone, fmt.Errorf("serial_hardware %q not in (%s, %s, %s)",
		setting, SerialHardwareAuto, SerialHardwareAvailable, SerialHardwareNone)
}
