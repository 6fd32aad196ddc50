// Package browser opens server pages on the host running the game master.
package browser

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// Commander is an interface for executing commands (for testing)
type Commander interface {
	Start(name string, args ...string) error
}

// RealCommander executes actual commands
type RealCommander struct{}

// Start executes a command and starts it
func (RealCommander) Start(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

var defaultCommander Commander = RealCommander{}

// Open opens an http(s) URL in the default browser
func Open(rawURL string) error {
	return OpenWithCommander(rawURL, defaultCommander, runtime.GOOS)
}

// OpenWithCommander opens the URL using the specified commander and OS (for testing)
func OpenWithCommander(rawURL string, commander Commander, goos string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("refusing to open %q: not an http(s) URL", rawURL)
	}

	name, args, err := command(goos, u.String())
	if err != nil {
		return err
	}
	if err := commander.Start(name, args...); err != nil {
		return fmt.Errorf("open browser with %s: %w", name, err)
	}
	return nil
}

func command(goos, target string) (string, []string, error) {
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{target}, nil
	case "darwin":
		return "open", []string{target}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}, nil
	}
	return "", nil, fmt.Errorf("unsupported platform: %s", goos)
}
