package inspectwatch

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// watcherConfig holds mutable state during Watcher construction.
type watcherConfig struct {
	title           string
	targets         []Target
	projects        []projectSource
	baseURL         string
	token           string
	email           string
	password        string
	pollingInterval time.Duration
	maxAttempts     int
	requestTimeout  time.Duration
	port            int
	maxConcurrency  int
	httpClient      *http.Client
	logger          *slog.Logger
	statusCallbacks []func(JobStatus)
}

// Option is a function that configures a [Watcher] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] and [Watch]. Options return an error
// if validation fails.
type Option func(*watcherConfig) error

// WithTarget adds a single [Target] to the watch list.
//
// Can be called multiple times to add multiple targets.
func WithTarget(t Target) Option {
	return func(cfg *watcherConfig) error {
		cfg.targets = append(cfg.targets, t)
		return nil
	}
}

// WithTargets adds multiple [Target] values to the watch list.
//
// Equivalent to calling [WithTarget] multiple times.
func WithTargets(targets ...Target) Option {
	return func(cfg *watcherConfig) error {
		cfg.targets = append(cfg.targets, targets...)
		return nil
	}
}

// WithBaseURL sets the base URL of the inspection portal API, including its
// path prefix. Defaults to http://localhost:3001/api.
//
// Returns an error if the URL has no http or https scheme.
func WithBaseURL(rawURL string) Option {
	return func(cfg *watcherConfig) error {
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("invalid base URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New("base URL must have a scheme (http:// or https://)")
		}
		if u.Host == "" {
			return errors.New("base URL must have a host")
		}
		cfg.baseURL = rawURL
		return nil
	}
}

// WithToken sets the bearer token sent on every API request.
func WithToken(token string) Option {
	return func(cfg *watcherConfig) error {
		cfg.token = token
		return nil
	}
}

// WithCredentials sets the email and password exchanged for a bearer token
// when the watcher starts. Ignored when a token is set via [WithToken].
//
// Returns an error if either value is empty.
func WithCredentials(email, password string) Option {
	return func(cfg *watcherConfig) error {
		if email == "" || password == "" {
			return errors.New("email and password are both required")
		}
		cfg.email = email
		cfg.password = password
		return nil
	}
}

// WithPollingInterval sets the time between status checks of a running
// analysis. Defaults to 5 seconds.
//
// Returns an error if the duration is below 100ms.
func WithPollingInterval(d time.Duration) Option {
	return func(cfg *watcherConfig) error {
		if d < 100*time.Millisecond {
			return errors.New("polling interval must be at least 100ms")
		}
		cfg.pollingInterval = d
		return nil
	}
}

// WithMaxAttempts sets how many status checks one polling session may make
// before the analysis is reported as timed out. Defaults to 60.
//
// Returns an error if n is outside 1..10000.
func WithMaxAttempts(n int) Option {
	return func(cfg *watcherConfig) error {
		if n < 1 || n > 10000 {
			return errors.New("max attempts must be between 1 and 10000")
		}
		cfg.maxAttempts = n
		return nil
	}
}

// WithRequestTimeout bounds every API request. Defaults to 30 seconds.
//
// Returns an error if the duration is zero or negative.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *watcherConfig) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithHTTPClient sets the HTTP client used for API requests, for custom
// transports or proxies. The request timeout still applies.
//
// Returns an error if the client is nil.
func WithHTTPClient(hc *http.Client) Option {
	return func(cfg *watcherConfig) error {
		if hc == nil {
			return errors.New("http client cannot be nil")
		}
		cfg.httpClient = hc
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server.
//
// The dashboard UI and API will be available at http://localhost:<port>.
// Defaults to 8080 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *watcherConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithMaxConcurrency sets how many targets are loaded or triggered at the
// same time when the watcher starts. Defaults to 10.
//
// Returns an error if the value is zero or negative.
func WithMaxConcurrency(n int) Option {
	return func(cfg *watcherConfig) error {
		if n <= 0 {
			return errors.New("max concurrency must be positive")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Watcher instance.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *watcherConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithStatusCallback registers a function called after every change of a
// tracked analysis.
//
// Multiple callbacks may be registered; they execute in registration order.
// Callbacks must be non-blocking: they run on the goroutine that made the
// change, which may be a polling session. Panics within callbacks are
// recovered and logged.
//
// Example:
//
//	w, err := inspectwatch.New(
//	    inspectwatch.WithTarget(tg),
//	    inspectwatch.WithStatusCallback(func(js inspectwatch.JobStatus) {
//	        if js.Status == inspectwatch.StatusCompleted {
//	            log.Printf("%s: %d issues", js.Name, len(js.Issues))
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithStatusCallback(cb func(JobStatus)) Option {
	return func(cfg *watcherConfig) error {
		if cb == nil {
			return nil
		}
		cfg.statusCallbacks = append(cfg.statusCallbacks, cb)
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and header.
//
// If not specified, defaults to "InspectWatch".
func WithTitle(title string) Option {
	return func(cfg *watcherConfig) error {
		cfg.title = title
		return nil
	}
}
