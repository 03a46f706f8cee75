package controller

import (
	"context"
	"errors"
	"net/http"

	"ess/ess_sensors/db"
	"ess/ess_sensors/device"
	"ess/ess_sensors/global"
	"ess/pkg/project"

	"go.uber.org/zap"
)

// Init builds the command handler and its consumers from global.Config and starts
// serving in the background. Project release funcs stop it.
func Init(ctx context.Context) error {
	logger := global.Logger
	hw, err := global.SerialHardware(global.Config.SerialHardware)
	if err != nil {
		return err
	}
	logger.Info("starting",
		zap.Int("simulation_mode", int(global.Config.SimulationMode)),
		zap.Stringer("serial_hardware", hw))

	server := NewServer(logger)
	sink := NewSink(server.Reply, logger)
	monitor := NewMonitor(logger)
	sink.Add("monitor", monitor.Publish)

	opts := []Option{WithDeviceOptions(deviceOptions())}
	if global.Config.Db.Dsn != "" {
		if err = db.Init(global.Config.Db.Dsn); err != nil {
			return err
		}
		project.RegisterReleaseFunc(db.Close)
		recorder := NewRecorder(logger)
		sink.Add("recorder", recorder.Save)
		opts = append(opts, WithStartHook(recorder.NewRun))
		if global.Config.Db.HoldDays > 0 {
			if err = scheduleCleanTelemetry(global.CronJob, global.Config.Db.HoldDays, logger.Named("Recorder")); err != nil {
				return err
			}
		}
	}

	handler, err := NewCommandHandler(sink.Reply, global.Config.SimulationMode, hw, logger, opts...)
	if err != nil {
		return err
	}
	project.RegisterReleaseFunc(func() { handler.Shutdown(context.Background()) })

	ctx, cancel := context.WithCancel(ctx)
	project.RegisterReleaseFunc(cancel)
	go func() {
		if err := server.ListenAndServe(ctx, global.Config.Listen, handler); err != nil {
			logger.Fatal("command server", zap.Error(err))
		}
		logger.Info("command server exited")
		project.Exit()
	}()

	if global.Config.Monitor.Listen != "" {
		srv := &http.Server{
			Addr:    global.Config.Monitor.Listen,
			Handler: setupRouter(handler, monitor, global.Config.Db.Dsn != "", logger),
		}
		project.RegisterReleaseFunc(func() { _ = srv.Shutdown(context.Background()) })
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("http server", zap.Error(err))
			}
		}()
	}
	return nil
}

func deviceOptions() device.Options {
	return device.Options{
		ReadTimeout:  global.Config.Uart.ReadTimeout.Std(),
		Uart:         global.Config.Uart.Mode,
		FtdiBaudRate: global.Config.Uart.BaudRate,
		MockInterval: global.Config.Mock.Interval.Std(),
	}
}
