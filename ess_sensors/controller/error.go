package controller

import (
	"ess/common"
)

// CommandError is a command failure the caller is told about through a response code.
// It leaves the handler state as it was.
type CommandError struct {
	Code common.ResponseCode
	Msg  string
}

func (e *CommandError) Error() string {
	return e.Code.String() + ": " + e.Msg
}

func newCommandError(code common.ResponseCode, msg string) *CommandError {
	return &CommandError{Code: code, Msg: msg}
}
