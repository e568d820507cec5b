package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type DB struct {
	URL             string        `env:"DATABASE_URL,required"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"16"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"8"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	ConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"15m"`
	MigrationsURL   string        `env:"MIGRATIONS_URL" envDefault:"file://db/migrations"`
}

type HTTP struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`
	Issuer    string `env:"JWT_ISSUER"`
}

type Authz struct {
	AllowGlobalRoles bool   `env:"AUTHZ_ALLOW_GLOBAL_ROLES" envDefault:"false"`
	OwnerRole        string `env:"AUTHZ_OWNER_ROLE" envDefault:"Owner"`
}

// Kafka publishing is disabled when Brokers is empty.
type Kafka struct {
	Brokers    string `env:"KAFKA_BROKERS"`
	AuditTopic string `env:"AUDIT_TOPIC" envDefault:"audit-events"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

type Config struct {
	DB    DB
	HTTP  HTTP
	Auth  Auth
	Authz Authz
	Kafka Kafka
	Log   Log
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
