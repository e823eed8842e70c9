package internal

// Mode selects which long-running surface Run exposes.
type Mode string

// Run modes.
const (
	ModeServe Mode = "serve"
	ModeMCP   Mode = "mcp"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	mode   Mode
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithMode selects the run mode. The default is ModeServe.
func WithMode(mode Mode) Option {
	return func(a *application) {
		a.mode = mode
	}
}
