package pipeline

import (
	"time"

	"github.com/dmitrymomot/notifykit/pkg/config"
	"github.com/dmitrymomot/notifykit/pkg/redis"
)

// Storage backends selectable through NOTIFY_STORAGE.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
)

// Config is the pipeline configuration, read from the environment.
type Config struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"notifykit"`

	WSURL       string        `env:"NOTIFY_WS_URL,required"`
	Channels    []string      `env:"NOTIFY_CHANNELS" envSeparator:","`
	DialTimeout time.Duration `env:"NOTIFY_DIAL_TIMEOUT" envDefault:"10s"`

	ReconnectBase    time.Duration `env:"NOTIFY_RECONNECT_BASE" envDefault:"1s"`
	ReconnectMax     time.Duration `env:"NOTIFY_RECONNECT_MAX" envDefault:"30s"`
	ReconnectRetries int           `env:"NOTIFY_RECONNECT_RETRIES" envDefault:"5"`

	PushPublicKey string `env:"NOTIFY_PUSH_PUBLIC_KEY"`
	PushEndpoint  string `env:"NOTIFY_PUSH_ENDPOINT"`
	PushSecret    string `env:"NOTIFY_PUSH_SIGNING_SECRET"`

	Storage    string `env:"NOTIFY_STORAGE" envDefault:"memory"`
	StorageDir string `env:"NOTIFY_STORAGE_DIR" envDefault:".notifykit"`
	SQLitePath string `env:"NOTIFY_SQLITE_PATH" envDefault:"notifykit.db"`

	HistoryLimit int `env:"NOTIFY_HISTORY_LIMIT" envDefault:"100"`
	PersistLimit int `env:"NOTIFY_PERSIST_LIMIT" envDefault:"50"`

	SoundResource string        `env:"NOTIFY_SOUND" envDefault:"/sounds/notification.mp3"`
	ToastDuration time.Duration `env:"NOTIFY_TOAST_DURATION" envDefault:"5s"`
	UrgentToast   time.Duration `env:"NOTIFY_TOAST_URGENT_DURATION" envDefault:"8s"`

	Redis redis.Config
}

// LoadConfig reads Config from the process environment after loading the
// given dotenv files.
func LoadConfig(envFiles ...string) (Config, error) {
	return config.Load[Config](config.WithEnvFiles(envFiles...))
}
