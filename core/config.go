package core

import (
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type (
	Config struct {
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		AppName          string
		SecretKey        string
		BaseURL          string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string
		Storage          string

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		Auth     AuthConfig
	}

	ServerConfig struct {
		Address            string
		Host               string
		ShutdownTimeout    time.Duration
		SessionTTL         time.Duration
		SessionIdleTimeout time.Duration
		// AuthWait bounds how long a request waits for the identity provider push.
		AuthWait      time.Duration
		DisableCSRF   bool
		SecureCookies bool
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Addr     string
		Password string
		DB       int
	}

	AuthConfig struct {
		AdminEmails  []string
		AdminKeyword string
		// LegacyGrantAll reproduces the old resolver fallback that made every
		// signed-in identity an admin. Never enable it in production.
		LegacyGrantAll bool
		// PasswordResetTimeout is how long a password reset link stays valid.
		PasswordResetTimeout time.Duration
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Willow Creek HOA")
	v.SetDefault("secretKey", "v8#l2q!m0zr$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("baseURL", "http://localhost:8000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("storage", StorageMemory)

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.sessionTTL", 7*24*time.Hour)
	v.SetDefault("server.sessionIdleTimeout", 30*time.Minute)
	v.SetDefault("server.authWait", 2*time.Second)
	v.SetDefault("server.disableCSRF", false)
	v.SetDefault("server.secureCookies", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "hoaportal")
	v.SetDefault("database.user", "hoaportal")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.adminEmails", []string{})
	v.SetDefault("auth.adminKeyword", "admin")
	v.SetDefault("auth.legacyGrantAll", false)
	v.SetDefault("auth.passwordResetTimeout", 3*24*time.Hour)
}

// NewConfig loads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with the env name, e.g. `PROD_DATABASE_HOST`.
func NewConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dir := os.Getenv("CONFIG_DIR")
	if dir == "" {
		dir = "config"
	}
	dotEnvPath := filepath.Join(dir, ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", dotEnvPath)
	}
	v.AutomaticEnv()

	return fromViper(v, env)
}

func fromViper(v *viper.Viper, env string) (*Config, error) {
	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing defaultFromEmail")
	}

	conf := &Config{
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		BaseURL:          strings.TrimSuffix(v.GetString("baseURL"), "/"),
		DefaultFromEmail: *from,
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		Storage:          v.GetString("storage"),
		Server: ServerConfig{
			Address:            v.GetString("server.address"),
			Host:               v.GetString("server.host"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			SessionTTL:         v.GetDuration("server.sessionTTL"),
			SessionIdleTimeout: v.GetDuration("server.sessionIdleTimeout"),
			AuthWait:           v.GetDuration("server.authWait"),
			DisableCSRF:        v.GetBool("server.disableCSRF"),
			SecureCookies:      v.GetBool("server.secureCookies"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Auth: AuthConfig{
			AdminEmails:          splitList(v.GetStringSlice("auth.adminEmails")),
			AdminKeyword:         v.GetString("auth.adminKeyword"),
			LegacyGrantAll:       v.GetBool("auth.legacyGrantAll"),
			PasswordResetTimeout: v.GetDuration("auth.passwordResetTimeout"),
		},
	}

	switch conf.Storage {
	case StorageMemory, StoragePostgres:
	default:
		return nil, errors.Errorf("unknown storage backend %q", conf.Storage)
	}
	if conf.SecretKey == "" {
		return nil, errors.New("secretKey is required")
	}
	return conf, nil
}

// splitList flattens comma separated values coming from env vars ("a@x.com,b@x.com").
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, val := range values {
		for _, s := range strings.Split(val, ",") {
			if s = CleanString(s, true /* lower */); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
