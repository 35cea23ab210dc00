package systemd

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/coreos/go-systemd/v22/daemon"
)

// Socket names expected in timekeeper.socket via FileDescriptorName=.
const (
	ListenerAPI     = "api"
	ListenerMetrics = "metrics"
)

// Listeners holds all systemd-activated listeners
type Listeners struct {
	API       net.Listener
	Metrics   net.Listener
	Activated bool
}

// GetListeners retrieves systemd socket-activated file descriptors
// Returns nil listeners if not running under socket activation
func GetListeners() (*Listeners, error) {
	// Check if systemd socket activation is available
	fds := activation.Files(false) // false = don't unset env vars
	if len(fds) == 0 {
		return &Listeners{}, nil
	}

	return listenersFromFiles(fds)
}

// listenersFromFiles converts inherited files into listeners keyed by their
// FileDescriptorName. Each file is closed once its listener holds a copy of the fd.
func listenersFromFiles(files []*os.File) (*Listeners, error) {
	listeners := &Listeners{
		Activated: true,
	}

	for _, f := range files {
		ln, err := net.FileListener(f)
		_ = f.Close()
		if err != nil {
			// Not a stream socket, nothing we can serve on
			continue
		}

		switch f.Name() {
		case ListenerAPI:
			if listeners.API == nil {
				listeners.API = ln
				continue
			}
		case ListenerMetrics:
			if listeners.Metrics == nil {
				listeners.Metrics = ln
				continue
			}
		}
		_ = ln.Close()
	}

	return listeners, nil
}

// NotifyReady sends READY=1 notification to systemd
// This tells systemd that the service has finished starting up
func NotifyReady() error {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		return fmt.Errorf("failed to send sd_notify: %w", err)
	}
	return nil
}

// NotifyStopping sends STOPPING=1 notification to systemd
// This tells systemd that the service is shutting down
func NotifyStopping() error {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		return fmt.Errorf("failed to send sd_notify stopping: %w", err)
	}
	return nil
}

// NotifyWatchdog sends WATCHDOG=1 notification to systemd
// This should be called periodically to prevent watchdog timeout
func NotifyWatchdog() error {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
		return fmt.Errorf("failed to send sd_notify watchdog: %w", err)
	}
	return nil
}

// WatchdogInterval returns how often NotifyWatchdog should be called, or 0
// when the service manager has no watchdog configured.
func WatchdogInterval() time.Duration {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return 0
	}
	return interval / 2
}
