package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	CORS     CORSConfig     `yaml:"cors"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Booking  BookingConfig  `yaml:"booking"`
	Guard    GuardConfig    `yaml:"guard"`
	Email    EmailConfig    `yaml:"email"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Address             string   `yaml:"address"`
	SwaggerDir          string   `yaml:"swagger_dir"`
	HSTS                bool     `yaml:"hsts"`
	ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
	MaxBodyBytes        int64    `yaml:"max_body_bytes"`
	TrustedProxies      []string `yaml:"trusted_proxies"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver     string `yaml:"driver"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Name       string `yaml:"name"`
	SSLMode    string `yaml:"ssl_mode"`
	SQLitePath string `yaml:"sqlite_path"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// SQLiteDSN enables WAL and a busy timeout so concurrent writers wait instead
// of failing.
func (d DatabaseConfig) SQLiteDSN() string {
	return d.SQLitePath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingTopic       string   `yaml:"booking_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type BookingConfig struct {
	MinAge              int `yaml:"min_age"`
	MaxAge              int `yaml:"max_age"`
	ListCacheTTLSeconds int `yaml:"list_cache_ttl_seconds"`
}

type LimitConfig struct {
	Requests      int `yaml:"requests"`
	PeriodSeconds int `yaml:"period_seconds"`
}

func (l LimitConfig) Period() time.Duration {
	return time.Duration(l.PeriodSeconds) * time.Second
}

type GuardConfig struct {
	Disabled           bool        `yaml:"disabled"`
	Safelist           []string    `yaml:"safelist"`
	Blocklist          []string    `yaml:"blocklist"`
	BadUserAgents      string      `yaml:"bad_user_agents"`
	AllowAllAgents     bool        `yaml:"allow_all_user_agents"`
	General            LimitConfig `yaml:"general"`
	BookingsByIP       LimitConfig `yaml:"bookings_by_ip"`
	BookingsByEmail    LimitConfig `yaml:"bookings_by_email"`
	BanMaxRetry        int         `yaml:"ban_max_retry"`
	BanFindTimeSeconds int         `yaml:"ban_find_time_seconds"`
	BanTimeSeconds     int         `yaml:"ban_time_seconds"`
	RecordStats        bool        `yaml:"record_stats"`
}

type EmailConfig struct {
	ResendAPIKey string `yaml:"resend_api_key"`
	From         string `yaml:"from"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults fills every omitted value.
func (c *Config) ApplyDefaults() {
	setString(&c.HTTP.Address, ":8080")
	setInt(&c.HTTP.ReadTimeoutSeconds, 10)
	setInt(&c.HTTP.WriteTimeoutSeconds, 10)
	if c.HTTP.MaxBodyBytes == 0 {
		c.HTTP.MaxBodyBytes = 64 << 10
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	}

	setString(&c.Database.Driver, "postgres")
	setInt(&c.Database.Port, 5432)
	setString(&c.Database.SSLMode, "disable")
	setString(&c.Database.SQLitePath, "staybooking.db")

	setString(&c.Kafka.BookingTopic, "bookings")
	setString(&c.Kafka.NotificationsTopic, "booking-notifications")
	setString(&c.Kafka.GroupID, "staybooking-worker")

	setInt(&c.Booking.MinAge, 18)
	setInt(&c.Booking.MaxAge, 98)
	setInt(&c.Booking.ListCacheTTLSeconds, 30)

	if c.Guard.Safelist == nil {
		c.Guard.Safelist = []string{"127.0.0.1", "::1"}
	}
	if c.Guard.BadUserAgents == "" && !c.Guard.AllowAllAgents {
		c.Guard.BadUserAgents = `(?i)curl|wget|python-requests|scrapy`
	}
	setInt(&c.Guard.General.Requests, 300)
	setInt(&c.Guard.General.PeriodSeconds, 300)
	setInt(&c.Guard.BookingsByIP.Requests, 5)
	setInt(&c.Guard.BookingsByIP.PeriodSeconds, 3600)
	setInt(&c.Guard.BookingsByEmail.Requests, 3)
	setInt(&c.Guard.BookingsByEmail.PeriodSeconds, 3600)
	setInt(&c.Guard.BanMaxRetry, 5)
	setInt(&c.Guard.BanFindTimeSeconds, 60)
	setInt(&c.Guard.BanTimeSeconds, 3600)

	setString(&c.Email.From, "bookings@localhost")
	setString(&c.Log.Level, "info")
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver))
	}
	if c.Booking.MinAge <= 0 || c.Booking.MaxAge <= c.Booking.MinAge {
		errs = append(errs, fmt.Errorf("booking age bounds [%d, %d] are not a valid range", c.Booking.MinAge, c.Booking.MaxAge))
	}
	for name, l := range map[string]LimitConfig{
		"guard.general":           c.Guard.General,
		"guard.bookings_by_ip":    c.Guard.BookingsByIP,
		"guard.bookings_by_email": c.Guard.BookingsByEmail,
	} {
		if l.Requests < 0 || l.PeriodSeconds < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if c.Guard.BanMaxRetry < 0 || c.Guard.BanFindTimeSeconds < 0 || c.Guard.BanTimeSeconds < 0 {
		errs = append(errs, errors.New("guard ban settings must not be negative"))
	}
	return errors.Join(errs...)
}

func setString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func setInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}
