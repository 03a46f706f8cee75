package device

import (
	"io"
	"math"
	"math/rand"
	"os"
	"sync"
	"time"

	"ess/ess_sensors/connWrap"
	"ess/ess_sensors/sensor"

	"go.uber.org/zap"
)

func init() {
	RegisterTransport(KindMock, newMockConn)
}

// MockOptions shape the lines of mock devices.
type MockOptions struct {
	// DisconnectedChannels report the disconnected marker instead of a value.
	DisconnectedChannels []int

	// MissedChannels leading channels are cut off the first line, as if the read
	// started while the instrument was sending.
	MissedChannels int

	InErrorState bool

	// Seed of the value generator. 0 seeds from the clock.
	Seed int64
}

// mockConn produces lines in the sensor's own format with values drawn uniformly
// from each channel's range, one line per interval.
type mockConn struct {
	sensor   sensor.Descriptor
	interval time.Duration
	opts     MockOptions

	mu      sync.Mutex
	rand    *rand.Rand
	closed  chan struct{}
	open    bool
	pending []byte
	lines   int
}

func newMockConn(_ string, d sensor.Descriptor, opts Options, _ *zap.Logger) connWrap.ConnCommon {
	seed := opts.Mock.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &mockConn{
		sensor:   d,
		interval: opts.MockInterval,
		opts:     opts.Mock,
		rand:     rand.New(rand.NewSource(seed)),
	}
}

func (m *mockConn) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = make(chan struct{})
	m.open = true
	m.pending = nil
	m.lines = 0
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open {
		m.open = false
		close(m.closed)
	}
	return nil
}

func (m *mockConn) Read(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return 0, os.ErrInvalid
	}
	if len(m.pending) == 0 {
		if m.lines > 0 {
			closed := m.closed
			m.mu.Unlock()
			select {
			case <-closed:
				m.mu.Lock()
				return 0, io.EOF
			case <-time.After(m.interval):
			}
			m.mu.Lock()
			if !m.open {
				return 0, io.EOF
			}
		}
		line, err := m.nextLine()
		if err != nil {
			return 0, err
		}
		m.pending = line
	}
	n := copy(b, m.pending)
	m.pending = m.pending[n:]
	return n, nil
}

func (m *mockConn) nextLine() ([]byte, error) {
	values := make([]float64, m.sensor.NumChannels())
	for i, c := range m.sensor.Channels {
		values[i] = c.Min + m.rand.Float64()*(c.Max-c.Min)
	}
	for _, i := range m.opts.DisconnectedChannels {
		if i >= 0 && i < len(values) {
			values[i] = math.NaN()
		}
	}
	var missed int
	if m.lines == 0 {
		missed = m.opts.MissedChannels
	}
	m.lines++
	return m.sensor.Format(values, missed)
}

func (m *mockConn) Write(b []byte) (int, error) {
	return len(b), nil
}

func (m *mockConn) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	return nil
}
