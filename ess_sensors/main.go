package main

import (
	"context"
	"flag"

	"ess/common"
	"ess/ess_sensors/controller"
	"ess/ess_sensors/global"
	"ess/pkg/project"

	"go.uber.org/zap"
)

func init() {
	flag.StringVar(&global.Config.LogLevel, "log", "", "log level, overrides log_level of the config file")
	cfgName := flag.String("config", "config.json", "Config file")
	simulation := flag.Int("simulation", -1, "simulation mode (0 off, 1 on), overrides simulation_mode of the config file")
	flag.Parse()

	global.Init(*cfgName)
	if *simulation >= 0 {
		global.Config.SimulationMode = common.SimulationMode(*simulation)
	}
}

func main() {
	logger := global.Logger
	defer func() { _ = logger.Sync() }()

	if err := controller.Init(context.Background()); err != nil {
		logger.Fatal("init", zap.Error(err))
	}
	logger.Info("stopping", zap.String("reason", project.Wait()))
	project.CallReleaseFunc()
	global.CronJob.Stop()
}
