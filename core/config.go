package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "DARASA"

type (
	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		RateLimit                 int // requests per minute and per IP on unauthenticated endpoints
		CORSOrigins               []string
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

	EmailConfig struct {
		Backend        string // console | sendgrid | mailgun
		SendgridAPIKey string
		MailgunDomain  string
		MailgunAPIKey  string
	}

	Config struct {
		AppName                   string
		Build                     string
		Env                       string // DEV (local; default), TEST, QA, PROD
		Debug                     bool
		TestMode                  bool
		SecretKey                 string
		FrontendBaseURL           string
		PasswordResetTimeoutDelta time.Duration
		RollbarToken              string
		RedisAddress              string
		AMQPURL                   string

		defaultFromEmail string

		Server   ServerConfig
		Database DatabaseConfig
		Email    EmailConfig
	}
)

func (d DatabaseConfig) Address() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// DefaultFromEmail parses the configured sender address.
// An invalid address falls back to a bare "noreply@localhost".
func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

// SetDefaultFromEmail is used by tests and the admin CLI to override the sender.
func (c *Config) SetDefaultFromEmail(addr string) { c.defaultFromEmail = addr }

// NewConfig loads the configuration from the environment.
// A `config/.env.<env>` file is loaded first when it exists.
func NewConfig() *Config {
	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	loadDotEnv(env)

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, env)

	return &Config{
		AppName:                   v.GetString("app.name"),
		Build:                     v.GetString("app.build"),
		Env:                       env,
		Debug:                     v.GetBool("app.debug"),
		TestMode:                  env == "TEST",
		SecretKey:                 v.GetString("app.secretkey"),
		FrontendBaseURL:           strings.TrimRight(v.GetString("app.frontendbaseurl"), "/"),
		PasswordResetTimeoutDelta: v.GetDuration("app.passwordresettimeout"),
		RollbarToken:              v.GetString("rollbar.token"),
		RedisAddress:              v.GetString("redis.address"),
		AMQPURL:                   v.GetString("amqp.url"),
		defaultFromEmail:          v.GetString("app.defaultfromemail"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugHost:                 v.GetString("server.debughost"),
			ShutdownTimeout:           v.GetDuration("server.shutdowntimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtexpiration"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtrefreshexpiration"),
			RateLimit:                 v.GetInt("server.ratelimit"),
			CORSOrigins:               v.GetStringSlice("server.corsorigins"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminuser"),
			AdminPassword: v.GetString("database.adminpassword"),
			DisableTLS:    v.GetBool("database.disabletls"),
		},
		Email: EmailConfig{
			Backend:        strings.ToLower(v.GetString("email.backend")),
			SendgridAPIKey: v.GetString("email.sendgridapikey"),
			MailgunDomain:  v.GetString("email.mailgundomain"),
			MailgunAPIKey:  v.GetString("email.mailgunapikey"),
		},
	}
}

func setDefaults(v *viper.Viper, env string) {
	local := env == "DEV" || env == "TEST"

	v.SetDefault("app.name", "Darasa")
	v.SetDefault("app.build", "develop")
	v.SetDefault("app.debug", local)
	v.SetDefault("app.secretkey", "m2l!7qz@x0v$3^dara$a-dev-secret-key-c9w)p#4")
	v.SetDefault("app.frontendbaseurl", "http://localhost:3000")
	v.SetDefault("app.defaultfromemail", "Darasa <noreply@localhost>")
	v.SetDefault("app.passwordresettimeout", 3*24*time.Hour)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debughost", ":4000")
	v.SetDefault("server.shutdowntimeout", 5*time.Second)
	v.SetDefault("server.jwtexpiration", 15*time.Minute)
	v.SetDefault("server.jwtrefreshexpiration", 7*24*time.Hour)
	v.SetDefault("server.ratelimit", 30)
	v.SetDefault("server.corsorigins", []string{"http://localhost:3000"})

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "darasa")
	v.SetDefault("database.user", "darasa")
	v.SetDefault("database.password", "darasa")
	v.SetDefault("database.adminuser", "postgres")
	v.SetDefault("database.adminpassword", "postgres")
	v.SetDefault("database.disabletls", local)

	if local {
		v.SetDefault("email.backend", "console")
	} else {
		v.SetDefault("email.backend", "sendgrid")
	}
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("amqp.url", "")
}

// loadDotEnv loads `config/.env.<env>` if it exists (ignored if it does not).
func loadDotEnv(env string) {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.Getwd: %v", err)
	}
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
}
