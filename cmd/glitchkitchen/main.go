package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/app"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/auth"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/config"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/logger"
)

// ANSI escape codes
const (
	reset  = "\033[0m"
	yellow = "\033[33m"
	red    = "\033[31m"
	green  = "\033[32m"
	cyan   = "\033[36m"
	bold   = "\033[1m"
)

var (
	version = "dev"
)

// showLogo prints the Glitch Kitchen banner
func showLogo() {
	width := 62
	border := strings.Repeat("═", width)

	logo := []string{
		"    ___ _ _ _      _      _  ___ _      _                  ",
		"   / __| (_) |_ __| |_   | |/ (_) |_ __| |_  ___ _ _       ",
		"  | (_ | | |  _/ _| ' \\  | ' <| |  _/ _| ' \\/ -_) ' \\      ",
		"   \\___|_|_|\\__\\__|_||_| |_|\\_\\_|\\__\\__|_||_\\___|_||_|     ",
	}

	fmt.Printf("\n  %s╔%s╗%s\n", cyan, border, reset)
	for _, line := range logo {
		if n := len([]rune(line)); n < width {
			line += strings.Repeat(" ", width-n)
		}
		fmt.Printf("  %s║%s%s%s║%s\n", cyan, yellow, line, cyan, reset)
	}
	fmt.Printf("  %s╚%s╝%s\n\n", cyan, border, reset)
}

// cycleLogLevel cycles through debug -> info -> warn -> error
func cycleLogLevel(appLog *logger.SlogLogger) {
	var next string
	switch appLog.GetLevel().String() {
	case "DEBUG":
		next = "info"
	case "INFO":
		next = "warn"
	case "WARN":
		next = "error"
	case "ERROR":
		next = "debug"
	default:
		next = "info"
	}

	appLog.SetLevel(logger.ParseLevel(next))
	fmt.Printf("%sLog level: %s%s%s\r\n", green, yellow, next, reset)
}

// printKeyboardHelp displays all available keyboard shortcuts
func printKeyboardHelp() {
	fmt.Printf("\r\n%s%s  Keyboard Shortcuts:%s\r\n", bold, green, reset)
	fmt.Printf("    %ss%s      - Open status page in browser\r\n", cyan, reset)
	fmt.Printf("    %sh%s      - Toggle HTTP request logging\r\n", cyan, reset)
	fmt.Printf("    %sl%s      - Cycle log level (debug → info → warn → error)\r\n", cyan, reset)
	fmt.Printf("    %sq%s      - Quit server\r\n", cyan, reset)
	fmt.Printf("    %s?%s      - Show this help\r\n\r\n", cyan, reset)
}

func run(ctx context.Context, cfg *config.Config) error {
	showLogo()

	appLog := logger.NewWithOptions(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
	})

	password := cfg.StaffPassword
	if password == "" {
		password = auth.GeneratePassword()
	}

	a, err := app.New(appLog, cfg, auth.New(password), clockwork.NewRealClock())
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer a.Close()

	appLog.Info("Staff password", "password", password)
	appLog.Info("Server ready", "url", a.BaseURL(), "version", version)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.NoKeyboard {
		printKeyboardHelp()
		go listenForKeyboard(ctx, stop, a.BaseURL()+"/healthz", appLog)
	} else {
		fmt.Printf("%sKeyboard shortcuts disabled%s\n\n", yellow, reset)
	}

	return a.Run(ctx)
}

func main() {
	cfg := &config.Config{}
	cmd := config.NewCommand(cfg, version, run)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%sError: %v%s\n", red, err, reset)
		os.Exit(1)
	}
}
