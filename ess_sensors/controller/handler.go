package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ess/common"
	"ess/ess_sensors/device"
	"ess/ess_sensors/schema"

	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type State uint8

const (
	StateIdle State = iota
	StateConfigured
	StateStarted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConfigured:
		return "CONFIGURED"
	case StateStarted:
		return "STARTED"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// NewDeviceFunc builds one device of a configuration. It must not open it.
type NewDeviceFunc func(conf common.DeviceConfig, simulation common.SimulationMode, hw common.SerialHardware,
	reply common.ReplyFunc, logger *zap.Logger) (device.Device, error)

type Option func(h *CommandHandler)

// WithDeviceOptions sets the transport and mock options of the devices built by start.
func WithDeviceOptions(opts device.Options) Option {
	return func(h *CommandHandler) {
		h.newDevice = func(conf common.DeviceConfig, simulation common.SimulationMode, hw common.SerialHardware,
			reply common.ReplyFunc, logger *zap.Logger) (device.Device, error) {
			return device.New(conf, simulation, hw, reply, logger, opts)
		}
	}
}

func WithDeviceFunc(f NewDeviceFunc) Option {
	return func(h *CommandHandler) { h.newDevice = f }
}

// WithStartHook registers f to run on every start, before the first device is opened.
func WithStartHook(f func()) Option {
	return func(h *CommandHandler) { h.startHooks = append(h.startHooks, f) }
}

// CommandHandler applies configure, start and stop commands and owns the open devices.
// Commands are handled one at a time.
type CommandHandler struct {
	reply      common.ReplyFunc
	simulation common.SimulationMode
	hw         common.SerialHardware
	logger     *zap.Logger
	newDevice  NewDeviceFunc
	startHooks []func()

	mu            sync.Mutex
	configuration *common.Configuration
	started       bool
	devices       []device.Device
}

// NewCommandHandler returns a handler in the IDLE state. reply receives every
// response and every telemetry reading and must be safe for concurrent use.
func NewCommandHandler(reply common.ReplyFunc, simulation common.SimulationMode, hw common.SerialHardware,
	logger *zap.Logger, opts ...Option) (*CommandHandler, error) {
	if err := simulation.Validate(); err != nil {
		return nil, err
	}
	h := &CommandHandler{
		reply:      reply,
		simulation: simulation,
		hw:         hw,
		logger:     logger.Named("CommandHandler"),
	}
	WithDeviceOptions(device.Options{})(h)
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// HandleCommand runs cmd and delivers exactly one response through the reply callback.
// A CommandError becomes a failure response and nil is returned. Any other error is
// returned as is and no response is delivered. The error of the reply callback is
// returned unchanged.
func (h *CommandHandler) HandleCommand(ctx context.Context, cmd common.Command, params map[string]any) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.logger.Info("handling command", zap.Stringer("command", cmd), zap.Any("parameters", params))
	var err error
	switch cmd {
	case common.CmdConfigure:
		err = h.configure(params)
	case common.CmdStart:
		err = h.start(ctx)
	case common.CmdStop:
		err = h.stop(ctx)
	default:
		panic(fmt.Sprintf("unhandled command %s", cmd))
	}

	response := common.Response{Response: common.OK}
	if err != nil {
		var ce *CommandError
		if !errors.As(err, &ce) {
			h.logger.Error("command aborted", zap.Stringer("command", cmd), zap.Error(err))
			return err
		}
		h.logger.Warn("command failed", zap.Stringer("command", cmd), zap.Error(ce))
		response.Response = ce.Code
	}
	return h.reply(ctx, response)
}

func (h *CommandHandler) configure(params map[string]any) error {
	if h.started {
		return newCommandError(common.AlreadyStarted,
			"ignoring the configuration because telemetry loop already running, send a stop first")
	}
	doc, ok := params[common.KeyConfiguration]
	if !ok || doc == nil {
		return newCommandError(common.InvalidConfiguration, "missing "+common.KeyConfiguration)
	}
	if err := schema.Validate(doc); err != nil {
		return newCommandError(common.InvalidConfiguration, err.Error())
	}
	var conf common.Configuration
	if err := mapstructure.Decode(doc, &conf); err != nil {
		return newCommandError(common.InvalidConfiguration, err.Error())
	}
	h.configuration = &conf
	h.logger.Debug("configuration stored", zap.Int("devices", len(conf.Devices)))
	return nil
}

func (h *CommandHandler) start(ctx context.Context) error {
	if h.started {
		return newCommandError(common.AlreadyStarted, "telemetry loop already running")
	}
	if h.configuration == nil {
		return newCommandError(common.NotConfigured, "no configuration has been received yet, ignoring start command")
	}
	for _, f := range h.startHooks {
		f()
	}
	devices := make([]device.Device, 0, len(h.configuration.Devices))
	for _, conf := range h.configuration.Devices {
		d, err := h.newDevice(conf, h.simulation, h.hw, h.reply, h.logger)
		if err == nil {
			h.logger.Debug("opening device", zap.String("device_type", conf.DeviceType), zap.String("name", conf.Name))
			if err = d.Open(ctx); err == nil {
				devices = append(devices, d)
				continue
			}
		}
		return multierr.Append(err, h.closeDevices(ctx, devices))
	}
	h.devices = devices
	h.started = true
	return nil
}

func (h *CommandHandler) stop(ctx context.Context) error {
	if !h.started {
		return newCommandError(common.NotStarted, "not started yet, ignoring stop command")
	}
	if err := h.closeDevices(ctx, h.devices); err != nil {
		h.logger.Error("closing devices failed", zap.Error(err))
	}
	h.devices = nil
	h.started = false
	return nil
}

// closeDevices closes devices most recently opened first. Every device is closed even
// when some fail.
func (h *CommandHandler) closeDevices(ctx context.Context, devices []device.Device) (err error) {
	for i := len(devices) - 1; i >= 0; i-- {
		h.logger.Debug("closing device", zap.String("name", devices[i].Name()))
		err = multierr.Append(err, devices[i].Close(ctx))
	}
	return err
}

// Shutdown closes the open devices without delivering a response.
func (h *CommandHandler) Shutdown(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return
	}
	h.logger.Info("shutting down")
	if err := h.stop(ctx); err != nil {
		h.logger.Error("shutdown", zap.Error(err))
	}
}

func (h *CommandHandler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state()
}

func (h *CommandHandler) state() State {
	switch {
	case h.started:
		return StateStarted
	case h.configuration != nil:
		return StateConfigured
	default:
		return StateIdle
	}
}

type Status struct {
	State         State                 `json:"state"`
	Simulation    common.SimulationMode `json:"simulation_mode"`
	Configuration *common.Configuration `json:"configuration"`
	Devices       []string              `json:"devices"`
}

// Status returns a snapshot of the handler.
func (h *CommandHandler) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := Status{
		State:         h.state(),
		Simulation:    h.simulation,
		Configuration: h.configuration,
		Devices:       make([]string, len(h.devices)),
	}
	for i, d := range h.devices {
		s.Devices[i] = d.Name()
	}
	return s
}
