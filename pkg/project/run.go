package project

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var (
	exitCh   = make(chan struct{})
	exitOnce sync.Once
)

// Exit makes Wait return as if the process had been signaled.
func Exit() {
	exitOnce.Do(func() { close(exitCh) })
}

// Wait blocks until SIGTERM, SIGINT or Exit and returns what ended it.
func Wait() string {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(c)

	select {
	case sig := <-c:
		return sig.String()
	case <-exitCh:
		return "exit"
	}
}

var (
	releaseMu   sync.Mutex
	releaseJobs []func()
)

func RegisterReleaseFunc(f func()) {
	releaseMu.Lock()
	defer releaseMu.Unlock()
	releaseJobs = append(releaseJobs, f)
}

// CallReleaseFunc runs the release funcs, last registered first, and forgets them.
func CallReleaseFunc() {
	releaseMu.Lock()
	jobs := releaseJobs
	releaseJobs = nil
	releaseMu.Unlock()
	for i := len(jobs) - 1; i >= 0; i-- {
		jobs[i]()
	}
}
