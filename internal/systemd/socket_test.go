package systemd

import (
	"net"
	"os"
	"syscall"
	"testing"
	"time"
)

func TestGetListenersWithoutActivation(t *testing.T) {
	t.Setenv("LISTEN_PID", "")
	t.Setenv("LISTEN_FDS", "")
	t.Setenv("LISTEN_FDNAMES", "")

	listeners, err := GetListeners()
	if err != nil {
		t.Fatalf("GetListeners: %v", err)
	}
	if listeners.Activated || listeners.API != nil || listeners.Metrics != nil {
		t.Errorf("expected no activated listeners, got %+v", listeners)
	}
}

func TestNotifyWithoutSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")

	if err := NotifyReady(); err != nil {
		t.Errorf("NotifyReady: %v", err)
	}
	if err := NotifyStopping(); err != nil {
		t.Errorf("NotifyStopping: %v", err)
	}
	if err := NotifyWatchdog(); err != nil {
		t.Errorf("NotifyWatchdog: %v", err)
	}
}

func TestWatchdogIntervalDisabled(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")
	t.Setenv("WATCHDOG_PID", "")

	if got := WatchdogInterval(); got != 0 {
		t.Errorf("WatchdogInterval = %v, want 0", got)
	}
}

// inheritedFile returns a copy of ln's fd named the way activation.Files names
// descriptors from LISTEN_FDNAMES.
func inheritedFile(t *testing.T, ln net.Listener, name string) *os.File {
	t.Helper()

	f, err := ln.(*net.TCPListener).File()
	if err != nil {
		t.Fatalf("listener file: %v", err)
	}
	defer func() { _ = f.Close() }()

	fd, err := syscall.Dup(int(f.Fd()))
	if err != nil {
		t.Fatalf("dup: %v", err)
	}
	return os.NewFile(uintptr(fd), name)
}

func TestListenersFromFiles(t *testing.T) {
	apiLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = apiLn.Close() }()

	metricsLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = metricsLn.Close() }()

	otherLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = otherLn.Close() }()

	listeners, err := listenersFromFiles([]*os.File{
		inheritedFile(t, apiLn, ListenerAPI),
		inheritedFile(t, metricsLn, ListenerMetrics),
		inheritedFile(t, otherLn, "LISTEN_FD_5"),
	})
	if err != nil {
		t.Fatalf("listenersFromFiles: %v", err)
	}
	if !listeners.Activated {
		t.Error("expected Activated to be true")
	}
	if listeners.API == nil || listeners.Metrics == nil {
		t.Fatalf("expected api and metrics listeners, got %+v", listeners)
	}
	defer func() { _ = listeners.API.Close() }()
	defer func() { _ = listeners.Metrics.Close() }()

	if got, want := listeners.API.Addr().String(), apiLn.Addr().String(); got != want {
		t.Errorf("api listener addr = %s, want %s", got, want)
	}
	if got, want := listeners.Metrics.Addr().String(), metricsLn.Addr().String(); got != want {
		t.Errorf("metrics listener addr = %s, want %s", got, want)
	}

	// The listener must still accept after the inherited file was closed.
	accepted := make(chan error, 1)
	go func() {
		conn, err := listeners.API.Accept()
		if err == nil {
			_ = conn.Close()
		}
		accepted <- err
	}()

	conn, err := net.DialTimeout("tcp", apiLn.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = conn.Close()

	select {
	case err := <-accepted:
		if err != nil {
			t.Fatalf("accept: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accept")
	}
}
