// Package config contains the process-wide settings structure and its loader.
// The configuration is read once at startup and passed by reference to every
// component that needs it.
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds every process-wide setting of the portal.
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"development"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	SecretSealKey           string `yaml:"secret_seal_key" env:"SECRET_SEAL_KEY"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	UISP                    `yaml:"uisp"`
	GenieACS                `yaml:"genieacs"`
	Starlink                `yaml:"starlink"`
	RouterOS                `yaml:"routeros"`
	Probe                   `yaml:"probe"`
	AMQP                    `yaml:"amqp"`
}

// HTTPServer groups the HTTP listener settings.
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection groups the redis client settings.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env-default:"localhost:6379"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
	CacheTTL     time.Duration `yaml:"cache_ttl" env-default:"5m"`
}

// JWTToken groups the session token settings.
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// UISP groups the billing platform client settings. SampleMode serves the
// canned billing payloads instead of calling the live platform.
type UISP struct {
	BaseURL    string        `yaml:"base_url" env:"UISP_URL"`
	APIKey     string        `yaml:"api_key" env:"UISP_API_KEY"`
	Timeout    time.Duration `yaml:"timeout" env-default:"30s"`
	SampleMode bool          `yaml:"sample_mode" env-default:"true"`
}

// GenieACS groups the auto-configuration server client settings.
type GenieACS struct {
	ACSBaseURL string        `yaml:"base_url" env:"GENIEACS_URL" env-default:"http://localhost:7557"`
	ACSTimeout time.Duration `yaml:"timeout" env-default:"30s"`
}

// Starlink groups the dish management channel settings.
type Starlink struct {
	DishAddress string        `yaml:"dish_address" env-default:"192.168.100.1:9200"`
	DishTimeout time.Duration `yaml:"dish_timeout" env-default:"5s"`
}

// RouterOS groups settings for the router management API adapter.
type RouterOS struct {
	APIPort     int           `yaml:"api_port" env-default:"8728"`
	PoolSize    int           `yaml:"pool_size" env-default:"10"`
	DialTimeout time.Duration `yaml:"dial_timeout" env-default:"5s"`
}

// Probe groups the device detection timeouts.
type Probe struct {
	PortTimeout     time.Duration `yaml:"port_timeout" env-default:"2s"`
	HTTPTimeout     time.Duration `yaml:"http_timeout" env-default:"3s"`
	RegistryTimeout time.Duration `yaml:"registry_timeout" env-default:"5s"`
}

// AMQP groups the event publisher settings. An empty address disables
// publishing.
type AMQP struct {
	AddressAMQP string        `yaml:"addressamqp" env:"AMQP_URL"`
	Retries     int           `yaml:"retries" env-default:"3"`
	RetryDelay  time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// MustLoad reads the config from the file named by CONFIG_PATH and exits the
// process when it cannot.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
