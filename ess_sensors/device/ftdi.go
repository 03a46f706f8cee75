package device

import (
	"ess/ess_sensors/connWrap"
	"ess/ess_sensors/connWrap/ftdi"
	"ess/ess_sensors/sensor"

	"go.uber.org/zap"
)

func init() {
	RegisterTransport(KindFtdi, newFtdiConn)
}

func newFtdiConn(id string, _ sensor.Descriptor, opts Options, logger *zap.Logger) connWrap.ConnCommon {
	return ftdi.NewFtdi(id, opts.ReadTimeout, opts.FtdiBaudRate, logger)
}
