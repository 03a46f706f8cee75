package connWrap

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// ConnCommon is the byte stream of one instrument. Close must unblock a pending Read.
type ConnCommon interface {
	io.ReadWriteCloser
	Open() error
	ResetInputBuffer() (err error)
}

type ConnUtil struct {
	ConnCommon
	mu     sync.Mutex
	reader *bufio.Reader
	Typ    string
}

func NewConnUtil(conn ConnCommon, typ string) *ConnUtil {
	return &ConnUtil{
		ConnCommon: conn,
		Typ:        typ,
	}
}

func (c *ConnUtil) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ConnCommon.Open(); err != nil {
		return &Error{Type: ErrIO, Err: err}
	}
	// drop whatever the instrument sent before we were listening
	_ = c.ConnCommon.ResetInputBuffer()
	c.reader = bufio.NewReader(c.ConnCommon)
	return nil
}

// ReadLine reads until the last byte of terminator. The first line after Open may be
// partial when the instrument was mid-transmission.
func (c *ConnUtil) ReadLine(terminator string) (line []byte, err error) {
	c.mu.Lock()
	reader := c.reader
	c.mu.Unlock()
	if reader == nil {
		return nil, &Error{Type: ErrIO, Err: errors.New("not open")}
	}
	if terminator == "" {
		terminator = "\n"
	}
	line, err = reader.ReadBytes(terminator[len(terminator)-1])
	if err != nil {
		return line, &Error{Type: ErrIO, Received: line, Err: err}
	}
	return line, nil
}
