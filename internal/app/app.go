package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/auth"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/config"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/handlers"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/logger"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/realtime"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/repository"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/services"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/timer"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/websocket"
	"github.com/JEECE-SI/the-glitch-kitchen/pkg/classifier"
)

const shutdownTimeout = 10 * time.Second

// App holds all application dependencies
type App struct {
	log      logger.Logger
	addr     string
	baseURL  string
	handlers *handlers.Handlers
	repo     *repository.Repository
	hub      *websocket.Hub
	driver   *timer.Driver
	bridge   *realtime.Bridge
}

// New creates and initializes a new application instance. Running games are
// handed to the countdown driver before New returns.
func New(log logger.Logger, cfg *config.Config, staffAuth *auth.Auth, clock clockwork.Clock) (*App, error) {
	repo, err := repository.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	a := &App{log: log, addr: cfg.Addr(), repo: repo}
	if err := a.init(cfg, staffAuth, clock); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(cfg *config.Config, staffAuth *auth.Auth, clock clockwork.Clock) error {
	ctx := context.Background()
	log := a.log

	// Reference recipe
	refService := services.NewReferenceService(log, a.repo)
	steps, err := services.LoadReference(cfg.Reference)
	if err != nil {
		return fmt.Errorf("failed to load reference recipe: %w", err)
	}
	if _, err := refService.Seed(ctx, steps); err != nil {
		return fmt.Errorf("failed to seed reference recipe: %w", err)
	}

	// Services
	gameService := services.NewGameService(log, a.repo, clock)
	timerService := services.NewTimerService(log, a.repo, clock)
	evalService := services.NewEvaluationService(log, a.repo, newClassifier(cfg, log), clock, evaluationOptions(cfg))

	// Realtime
	a.hub = websocket.New(log.With("component", "websocket"), timerService)

	var peers realtime.Peers
	if cfg.NATSURL != "" {
		a.bridge, err = realtime.Connect(realtime.DefaultBridgeConfig(cfg.NATSURL), log, clock)
		if err != nil {
			return err
		}
		peers = a.bridge
	}
	notifier := realtime.NewNotifier(log, clock, a.hub, peers)

	a.driver = timer.NewDriver(clock, log.With("component", "timer"), timerService, a.hub, timer.DriverOptions{
		SuppressWindow: cfg.SuppressWindow,
	})
	timerService.SetTracker(a.driver)
	timerService.SetBroadcaster(notifier)
	evalService.SetBroadcaster(notifier)

	if a.bridge != nil {
		if err := a.bridge.Subscribe(a.driver, a.hub); err != nil {
			return err
		}
	}

	resumed, err := timerService.ResumeAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to resume running games: %w", err)
	}
	if resumed > 0 {
		log.Info("Resumed running games", "count", resumed)
	}

	// Join links point at the configured URL, or the LAN address of this host
	a.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	if a.baseURL == "" {
		a.baseURL = fmt.Sprintf("http://%s%s", getPreferredIP(realNetworkProvider{}), cfg.Addr())
	}
	gameService.SetBaseURL(a.baseURL)

	a.handlers = handlers.New(gameService, timerService, refService, evalService, staffAuth, log, handlers.Options{
		Hub:         a.hub,
		Health:      a.repo,
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
	})
	return nil
}

// newClassifier returns the HTTP classifier, or the mock when no URL is configured
func newClassifier(cfg *config.Config, log logger.Logger) classifier.Client {
	if cfg.ClassifierURL == "" {
		log.Warn("No classifier URL configured, every field will be scored EXACT by the mock classifier")
		return classifier.NewMockClient()
	}
	return classifier.NewHTTPClient(classifier.Config{
		BaseURL: cfg.ClassifierURL,
		APIKey:  cfg.ClassifierKey,
		Model:   cfg.ClassifierModel,
	}, log.With("component", "classifier"))
}

func evaluationOptions(cfg *config.Config) services.EvaluationOptions {
	opts := services.DefaultEvaluationOptions()
	opts.RateLimit = cfg.RateLimit
	opts.RateWindow = cfg.RateWindow
	opts.DedupGrace = cfg.DedupGrace
	opts.ClassifierTimeout = cfg.ClassifierTimeout
	opts.RequestTimeout = cfg.RequestTimeout
	return opts
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// BaseURL returns the URL encoded in join QR codes
func (a *App) BaseURL() string {
	return a.baseURL
}

// Close performs graceful shutdown of app resources
func (a *App) Close() {
	if a.driver != nil {
		a.driver.Close()
	}
	if a.bridge != nil {
		if err := a.bridge.Close(); err != nil {
			a.log.Warn("Failed to drain NATS connection", "error", err)
		}
	}
	if a.repo != nil {
		a.repo.Close()
	}
}

// Run serves HTTP and runs the websocket hub and countdown driver until ctx
// is done or one of them fails.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.addr)
	if err != nil {
		return err
	}
	return a.serve(ctx, ln)
}

func (a *App) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.hub.Run(ctx) })
	g.Go(func() error { return a.driver.Run(ctx) })
	g.Go(func() error {
		a.log.Info("Server starting", "url", a.baseURL, "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.log.Info("Server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// networkInterface wraps net.Interface for testing
type networkInterface interface {
	Flags() net.Flags
	Addrs() ([]net.Addr, error)
}

// realInterface wraps a real net.Interface
type realInterface struct {
	iface net.Interface
}

func (r realInterface) Flags() net.Flags {
	return r.iface.Flags
}

func (r realInterface) Addrs() ([]net.Addr, error) {
	return r.iface.Addrs()
}

// networkProvider is an interface for getting network interfaces (for testing)
type networkProvider interface {
	Interfaces() ([]networkInterface, error)
}

// realNetworkProvider implements networkProvider using actual net package
type realNetworkProvider struct{}

func (realNetworkProvider) Interfaces() ([]networkInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	result := make([]networkInterface, len(ifaces))
	for i, iface := range ifaces {
		result[i] = realInterface{iface: iface}
	}
	return result, nil
}

// getPreferredIP returns the best IP address for LAN access.
// Prefers private network addresses (192.168.x.x, 10.x.x.x, 172.16-31.x.x).
// Falls back to localhost if no suitable address is found.
func getPreferredIP(provider networkProvider) string {
	ifaces, err := provider.Interfaces()
	if err != nil {
		return "localhost"
	}

	var candidates []net.IP

	for _, iface := range ifaces {
		// Skip down, loopback, and point-to-point interfaces
		flags := iface.Flags()
		if flags&net.FlagUp == 0 || flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}

			// Only consider IPv4 addresses
			if ip == nil || ip.To4() == nil {
				continue
			}

			// Skip loopback
			if ip.IsLoopback() {
				continue
			}

			candidates = append(candidates, ip)
		}
	}

	// Prefer private network addresses
	for _, ip := range candidates {
		ipStr := ip.String()
		if strings.HasPrefix(ipStr, "192.168.") ||
			strings.HasPrefix(ipStr, "10.") ||
			isPrivate172(ip) {
			return ipStr
		}
	}

	// Fall back to any non-loopback if no private address found
	if len(candidates) > 0 {
		return candidates[0].String()
	}

	return "localhost"
}

// isPrivate172 checks if IP is in 172.16.0.0/12 range
func isPrivate172(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		return ip4[0] == 172 && ip4[1] >= 16 && ip4[1] <= 31
	}
	return false
}
