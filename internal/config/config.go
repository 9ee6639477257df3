package config

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// RelayConfig holds the command relay configuration loaded from the environment.
type RelayConfig struct {
	AppName            string
	LogLevel           string
	HTTPPort           string
	DatabaseURL        string
	RedisURL           string
	CommandsTable      string
	TokensTable        string
	ServiceAccountFile string
	ServiceAccountJSON string
	FCMProjectID       string
	FCMEndpoint        string
	FCMTokenEndpoint   string
	FCMTokenCache      bool
	ProviderTimeout    time.Duration
	SuppressTokenTTL   time.Duration
	TrackCommandStatus bool
	APIKey             string
	RateLimitPerSec    float64
	RateLimitBurst     int
	RabbitURL          string
	CommandQueue       string
	DeadLetterQueue    string
	PrefetchCount      int
	WorkerCount        int
}

// AgentConfig holds the delivery agent configuration.
type AgentConfig struct {
	AppName                string
	LogLevel               string
	HTTPPort               string
	DatabaseURL            string
	CommandsTable          string
	TokensTable            string
	DeviceID               string
	DevicePushToken        string
	ModemPorts             map[int]string
	DefaultSMSSubscription int
	DefaultModem           string
	ModemBaud              int
	ModemTimeout           time.Duration
	SubmitTimeout          time.Duration
	ModemInitAttempts      int
	SMSC                   string
	MailboxSize            int
	GatePhoneNumber        string
	GateOpenMessage        string
}

// NoSubscription marks an unset DEFAULT_SMS_SUBSCRIPTION.
const NoSubscription = -1

// LoadRelay loads relay configuration and performs basic validation.
func LoadRelay() (*RelayConfig, error) {
	_ = godotenv.Load()

	cfg := &RelayConfig{
		AppName:            getEnv("APP_NAME", "gate_relay"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		CommandsTable:      getEnv("COMMANDS_TABLE", "gate_commands"),
		TokensTable:        getEnv("TOKENS_TABLE", "device_tokens"),
		ServiceAccountFile: getEnv("FCM_SERVICE_ACCOUNT_FILE", ""),
		ServiceAccountJSON: getEnv("FCM_SERVICE_ACCOUNT_JSON", ""),
		FCMProjectID:       getEnv("FCM_PROJECT_ID", ""),
		FCMEndpoint:        getEnv("FCM_ENDPOINT", ""),
		FCMTokenEndpoint:   getEnv("FCM_TOKEN_ENDPOINT", ""),
		FCMTokenCache:      getEnvAsBool("FCM_TOKEN_CACHE", true),
		ProviderTimeout:    getEnvAsDuration("PROVIDER_TIMEOUT", 10*time.Second),
		SuppressTokenTTL:   getEnvAsDuration("SUPPRESS_TOKEN_TTL", 24*time.Hour),
		TrackCommandStatus: getEnvAsBool("TRACK_COMMAND_STATUS", false),
		APIKey:             getEnv("RELAY_API_KEY", ""),
		RateLimitPerSec:    getEnvAsFloat("RATE_LIMIT_PER_SEC", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 5),
		RabbitURL:          getEnv("RABBITMQ_URL", ""),
		CommandQueue:       getEnv("COMMAND_QUEUE", "gate.commands"),
		DeadLetterQueue:    getEnv("COMMAND_DLQ", "gate.commands.failed"),
		PrefetchCount:      getEnvAsInt("PREFETCH", 10),
		WorkerCount:        getEnvAsInt("WORKER_COUNT", 2),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *RelayConfig) validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.ServiceAccountFile == "" && c.ServiceAccountJSON == "" {
		missing = append(missing, "FCM_SERVICE_ACCOUNT_FILE|FCM_SERVICE_ACCOUNT_JSON")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	return nil
}

// LoadAgent loads delivery agent configuration and performs basic validation.
func LoadAgent() (*AgentConfig, error) {
	_ = godotenv.Load()

	ports, err := ParseModemPorts(getEnv("MODEM_PORTS", ""))
	if err != nil {
		return nil, err
	}

	cfg := &AgentConfig{
		AppName:                getEnv("APP_NAME", "gate_agent"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		HTTPPort:               getEnv("HTTP_PORT", "8081"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		CommandsTable:          getEnv("COMMANDS_TABLE", "gate_commands"),
		TokensTable:            getEnv("TOKENS_TABLE", "device_tokens"),
		DeviceID:               getEnv("DEVICE_ID", "default"),
		DevicePushToken:        getEnv("DEVICE_PUSH_TOKEN", ""),
		ModemPorts:             ports,
		DefaultSMSSubscription: getEnvAsInt("DEFAULT_SMS_SUBSCRIPTION", NoSubscription),
		DefaultModem:           getEnv("DEFAULT_MODEM", ""),
		ModemBaud:              getEnvAsInt("MODEM_BAUD", 115200),
		ModemTimeout:           getEnvAsDuration("MODEM_TIMEOUT", 5*time.Second),
		SubmitTimeout:          getEnvAsDuration("MODEM_SUBMIT_TIMEOUT", 60*time.Second),
		ModemInitAttempts:      getEnvAsInt("MODEM_INIT_ATTEMPTS", 3),
		SMSC:                   getEnv("SMSC", ""),
		MailboxSize:            getEnvAsInt("MAILBOX_SIZE", 16),
		GatePhoneNumber:        getEnv("GATE_PHONE_NUMBER", ""),
		GateOpenMessage:        getEnv("GATE_OPEN_MESSAGE", "OPEN"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AgentConfig) validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(c.ModemPorts) == 0 && c.DefaultModem == "" {
		missing = append(missing, "MODEM_PORTS|DEFAULT_MODEM")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	return nil
}

// SubscriptionIDs returns the configured subscription ids in ascending order.
func (c *AgentConfig) SubscriptionIDs() []int {
	ids := make([]int, 0, len(c.ModemPorts))
	for id := range c.ModemPorts {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ParseModemPorts parses "1=/dev/ttyUSB0,2=/dev/ttyUSB2". Entries without an
// explicit id are numbered by position starting at 1.
func ParseModemPorts(raw string) (map[int]string, error) {
	ports := make(map[int]string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ports, nil
	}
	for i, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id := i + 1
		path := entry
		if key, value, ok := strings.Cut(entry, "="); ok {
			parsed, err := strconv.Atoi(strings.TrimSpace(key))
			if err != nil || parsed < 0 {
				return nil, fmt.Errorf("invalid subscription id in MODEM_PORTS entry %q", entry)
			}
			id = parsed
			path = strings.TrimSpace(value)
		}
		if path == "" {
			return nil, fmt.Errorf("empty device path in MODEM_PORTS entry %q", entry)
		}
		if _, dup := ports[id]; dup {
			return nil, fmt.Errorf("duplicate subscription id %d in MODEM_PORTS", id)
		}
		ports[id] = path
	}
	return ports, nil
}

func getEnv(key, def string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	return value
}

func getEnvAsInt(key string, def int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("invalid int for %s, using default %d: %v", key, def, err)
			return def
		}
		return i
	}
	return def
}

func getEnvAsFloat(key string, def float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			log.Printf("invalid float for %s, using default %g: %v", key, def, err)
			return def
		}
		return f
	}
	return def
}

func getEnvAsBool(key string, def bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(value)
		if err != nil {
			log.Printf("invalid bool for %s, using default %t: %v", key, def, err)
			return def
		}
		return b
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			log.Printf("invalid duration for %s, using default %s: %v", key, def, err)
			return def
		}
		return d
	}
	return def
}
