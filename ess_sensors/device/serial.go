package device

import (
	"ess/ess_sensors/connWrap"
	"ess/ess_sensors/connWrap/uart"
	"ess/ess_sensors/sensor"

	"go.uber.org/zap"
)

func init() {
	RegisterTransport(KindSerial, newSerialConn)
}

func newSerialConn(id string, _ sensor.Descriptor, opts Options, logger *zap.Logger) connWrap.ConnCommon {
	return uart.NewUart(id, opts.ReadTimeout, opts.Uart, logger)
}
