package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
)

type Config struct {
	AppName      string `env:"LL_APP_NAME" envDefault:"lifeleveling"`
	AppEnv       string `env:"LL_APP_ENV" envDefault:"local"`
	HTTPHost     string `env:"LL_HTTP_HOST" envDefault:"127.0.0.1"`
	HTTPPort     string `env:"LL_HTTP_PORT" envDefault:"8765"`
	HTTPBasePath string `env:"LL_HTTP_BASE_PATH" envDefault:"/api/v1"`
	// bcrypt hash of the key the UI sends in X-API-Key; empty disables the check.
	APIKeyHash string `env:"LL_API_KEY_HASH"`

	FirebaseAPIKey       string        `env:"LL_FIREBASE_API_KEY"`
	IdentityBaseURL      string        `env:"LL_IDENTITY_BASE_URL" envDefault:"https://identitytoolkit.googleapis.com/v1"`
	SecureTokenBaseURL   string        `env:"LL_SECURETOKEN_BASE_URL" envDefault:"https://securetoken.googleapis.com/v1"`
	IdentityTimeout      time.Duration `env:"LL_IDENTITY_TIMEOUT" envDefault:"15s"`
	SessionCheckInterval time.Duration `env:"LL_SESSION_CHECK_INTERVAL" envDefault:"5m"`

	GoogleClientID     string `env:"LL_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"LL_GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"LL_GOOGLE_REDIRECT_URL" envDefault:"http://127.0.0.1:8765/api/v1/auth/oauth/google/callback"`

	StoreDriver           string `env:"LL_STORE_DRIVER" envDefault:"firestore"`
	FirestoreProjectID    string `env:"LL_FIRESTORE_PROJECT_ID"`
	FirestoreCredentials  string `env:"LL_FIRESTORE_CREDENTIALS_FILE"`
	FirestoreEmulatorHost string `env:"FIRESTORE_EMULATOR_HOST"`

	DBHost     string `env:"LL_DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"LL_DB_PORT" envDefault:"5432"`
	DBUser     string `env:"LL_DB_USER" envDefault:"app"`
	DBPassword string `env:"LL_DB_PASSWORD" envDefault:"app_password"`
	DBName     string `env:"LL_DB_NAME" envDefault:"lifeleveling"`
	DBSSLMode  string `env:"LL_DB_SSLMODE" envDefault:"disable"`

	NATSURL             string        `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	NATSConnectWait     time.Duration `env:"NATS_CONNECT_WAIT" envDefault:"10s"`
	DeviceID            string        `env:"LL_DEVICE_ID" envDefault:"local-device"`
	PushMessageSubject  string        `env:"LL_PUSH_SUBJECT_MESSAGE" envDefault:"push.%s.message"`
	PushTokenSubject    string        `env:"LL_PUSH_SUBJECT_TOKEN" envDefault:"push.%s.token"`
	PushRegisterSubject string        `env:"LL_PUSH_SUBJECT_REGISTER" envDefault:"push.register"`
	LongRunningTasks    []string      `env:"LL_PUSH_LONG_RUNNING_TASKS" envSeparator:","`
	PushJobWorkers      int           `env:"LL_PUSH_JOB_WORKERS" envDefault:"2"`
	PushJobTimeout      time.Duration `env:"LL_PUSH_JOB_TIMEOUT" envDefault:"10m"`

	ReceiverDeadline   time.Duration `env:"LL_RECEIVER_DEADLINE" envDefault:"10s"`
	AlarmSweepInterval time.Duration `env:"LL_ALARM_SWEEP_INTERVAL" envDefault:"30s"`

	BookkeepingWorkers int           `env:"LL_BOOKKEEPING_WORKERS" envDefault:"1"`
	BookkeepingTimeout time.Duration `env:"LL_BOOKKEEPING_TIMEOUT" envDefault:"20s"`

	SlackWebhookURL string `env:"LL_SLACK_WEBHOOK_URL"`
	SentryDSN       string `env:"LL_SENTRY_DSN"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}
