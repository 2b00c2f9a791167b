package devserver

import (
	"time"

	"github.com/dmitrymomot/notifykit/pkg/config"
	"github.com/dmitrymomot/notifykit/pkg/httpserver"
	"github.com/dmitrymomot/notifykit/pkg/pg"
)

// Config drives the development notification server.
type Config struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"notify-devserver"`

	// EventInterval is the pause between generated events. Zero disables
	// the generator; events can still be posted to /api/events.
	EventInterval time.Duration `env:"DEVSERVER_EVENT_INTERVAL" envDefault:"5s"`
	// Seed makes the generated event stream reproducible. Zero picks a random seed.
	Seed           uint64   `env:"DEVSERVER_SEED" envDefault:"0"`
	AllowedOrigins []string `env:"DEVSERVER_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	SessionBuffer  int      `env:"DEVSERVER_SESSION_BUFFER" envDefault:"64"`
	Welcome        bool     `env:"DEVSERVER_WELCOME" envDefault:"true"`
	// PushSecret, when set, requires push registrations to carry a valid
	// signature made with the same secret.
	PushSecret string `env:"DEVSERVER_PUSH_SECRET"`

	HTTP httpserver.Config
	PG   pg.Config
}

// LoadConfig reads Config from the environment after loading envFiles.
func LoadConfig(envFiles ...string) (Config, error) {
	return config.Load[Config](config.WithEnvFiles(envFiles...))
}
