package main

import (
	"context"
	"fmt"
	"os"
	"unicode"

	"golang.org/x/term"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/browser"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/logger"
)

// listenForKeyboard reads single keys from a terminal stdin until ctx is done
// or the operator quits. Output uses \r\n because the terminal is in raw mode.
func listenForKeyboard(ctx context.Context, quit context.CancelFunc, statusURL string, appLog *logger.SlogLogger) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		appLog.Debug("Stdin is not a terminal, keyboard shortcuts off")
		return
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		appLog.Warn("Failed to enter raw terminal mode", "error", err)
		return
	}

	keys := make(chan byte)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				close(keys)
				return
			}
			if n == 1 {
				select {
				case keys <- buf[0]:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	defer term.Restore(fd, oldState)

	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-keys:
			if !ok {
				return
			}
			switch unicode.ToLower(rune(b)) {
			case 's':
				fmt.Printf("%sOpening status page in browser...%s\r\n", cyan, reset)
				if err := browser.Open(statusURL); err != nil {
					fmt.Printf("%sError opening browser: %v%s\r\n", red, err, reset)
				}
			case 'h':
				if appLog.IsHTTPLoggingEnabled() {
					appLog.DisableHTTPLogging()
					fmt.Printf("%sHTTP logging disabled%s\r\n", yellow, reset)
				} else {
					appLog.EnableHTTPLogging()
					fmt.Printf("%sHTTP logging enabled%s\r\n", green, reset)
				}
			case 'l':
				cycleLogLevel(appLog)
			case '?':
				printKeyboardHelp()
			case 'q', '\x03':
				fmt.Printf("%sShutting down server...%s\r\n", yellow, reset)
				quit()
				return
			}
		}
	}
}
