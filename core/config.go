package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Database engines
const (
	EngineMemory   = "memory"
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
	EngineMongoDB  = "mongodb"
)

type (
	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		DisableReqLogs            bool
	}

	DatabaseConfig struct {
		Engine        string // memory, sqlite, postgres, mongodb
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
		Path          string // sqlite
		URI           string // mongodb
	}

	PaymentConfig struct {
		MerchantID  string
		MerchantKey string
		Sandbox     bool
	}

	CertificateConfig struct {
		BackgroundTimeout time.Duration
	}

	Config struct {
		AppName  string
		Env      string // DEV (local; default), TEST, QA, PROD
		Build    string
		Debug    bool
		TestMode bool
		WorkDir  string

		SecretKey                 string
		FrontendBaseURL           string
		DefaultFromEmail          mail.Address
		PasswordResetTimeoutDelta time.Duration
		SendgridAPIKey            string
		RollbarToken              string

		Server      ServerConfig
		Database    DatabaseConfig
		Payment     PaymentConfig
		Certificate CertificateConfig
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

// NewConfig loads the configuration of the current environment.
// Values come from defaults, then `config/.env.<env>` if present, then prefixed environment variables
// (e.g. PROD_DATABASE_ENGINE).
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("appName", "Czane Beauty Academy")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("secretKey", "s3cr3t-k3y-f0r-l0cal-d3v-0nly-cz4n3-b34uty")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromName", "Czane Beauty Academy")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("sendgridAPIKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 4*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", EngineSQLite)
	v.SetDefault("database.name", "academy")
	v.SetDefault("database.user", "academy")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.path", "academy.db")
	v.SetDefault("database.uri", "mongodb://localhost:27017")

	v.SetDefault("payment.merchantID", "10000100")
	v.SetDefault("payment.merchantKey", "46f0cd694581a")
	v.SetDefault("payment.sandbox", true)

	v.SetDefault("certificate.backgroundTimeout", 10*time.Second)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:  v.GetString("appName"),
		Env:      env,
		Build:    v.GetString("build"),
		Debug:    v.GetBool("debug"),
		TestMode: v.GetBool("testMode"),
		WorkDir:  wd,

		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("defaultFromName"),
			Address: v.GetString("defaultFromEmail"),
		},
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		SendgridAPIKey:            v.GetString("sendgridAPIKey"),
		RollbarToken:              v.GetString("rollbarToken"),
	}

	conf.Server = ServerConfig{
		Host:                      v.GetString("server.host"),
		Address:                   v.GetString("server.address"),
		DebugHost:                 v.GetString("server.debugHost"),
		ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
		JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
		JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
		DisableReqLogs:            v.GetBool("server.disableReqLogs"),
	}
	conf.Database = DatabaseConfig{
		Engine:        strings.ToLower(v.GetString("database.engine")),
		Name:          v.GetString("database.name"),
		User:          v.GetString("database.user"),
		Password:      v.GetString("database.password"),
		AdminUser:     v.GetString("database.adminUser"),
		AdminPassword: v.GetString("database.adminPassword"),
		Host:          v.GetString("database.host"),
		Port:          v.GetString("database.port"),
		DisableTLS:    v.GetBool("database.disableTLS"),
		Path:          v.GetString("database.path"),
		URI:           v.GetString("database.uri"),
	}
	conf.Payment = PaymentConfig{
		MerchantID:  v.GetString("payment.merchantID"),
		MerchantKey: v.GetString("payment.merchantKey"),
		Sandbox:     v.GetBool("payment.sandbox"),
	}
	conf.Certificate = CertificateConfig{
		BackgroundTimeout: v.GetDuration("certificate.backgroundTimeout"),
	}
	return conf
}

// NewTestConfig returns a Config suited to unit tests: in-memory store, no outside services.
func NewTestConfig() *Config {
	conf := &Config{
		AppName:                   "Czane Beauty Academy",
		Env:                       "TEST",
		Build:                     "test",
		TestMode:                  true,
		WorkDir:                   Getwd(),
		SecretKey:                 "test-secret",
		FrontendBaseURL:           "http://localhost:3000",
		DefaultFromEmail:          mail.Address{Name: "Czane Beauty Academy", Address: "noreply@localhost"},
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
	}
	conf.Server = ServerConfig{
		Host:                      "localhost",
		ShutdownTimeout:           time.Second,
		JWTExpirationDelta:        time.Hour,
		JWTRefreshExpirationDelta: 24 * time.Hour,
		DisableReqLogs:            true,
	}
	conf.Database = DatabaseConfig{Engine: EngineMemory}
	conf.Payment = PaymentConfig{MerchantID: "10000100", MerchantKey: "46f0cd694581a", Sandbox: true}
	conf.Certificate = CertificateConfig{BackgroundTimeout: time.Second}
	return conf
}
