package config

import (
	"sync/atomic"
	"time"

	"github.com/spf13/viper"
)

// Argon2Params holds the PIN hashing work factors.
type Argon2Params struct {
	Time       uint32
	Memory     uint32
	Threads    uint8
	KeyLength  uint32
	SaltLength uint32
}

// Config is the recognised-options mapping consumed at startup. All amounts
// are minor units.
type Config struct {
	ServerPort string

	DatabaseHost     string
	DatabasePort     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseName     string
	DatabaseSSLMode  string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	PoolMaxConnections    int
	PoolValidateOnAcquire bool
	PoolConnMaxLifetime   time.Duration

	ATMWithdrawalLimit    int64
	DailyTransactionLimit int64

	PostingRetryAttempts int
	PostingRetryBackoff  time.Duration

	Argon2 Argon2Params

	JWTSecretKey   string
	JWTExpiryHours int

	ISOMACKey string

	LogDirectory    string
	LogMinLevel     string
	LogMaxFileBytes int64

	maintenance atomic.Bool
}

// Load reads .env plus environment overrides and materialises the config.
func Load() *Config {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.ReadInConfig()

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("iso.mac_key", "ISO_MAC_KEY")

	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", "5432")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.name", "corebank")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("pool.max_connections", 25)
	viper.SetDefault("pool.validate_on_acquire", true)
	viper.SetDefault("pool.conn_max_lifetime", 5*time.Minute)

	viper.SetDefault("maintenance_mode", false)
	viper.SetDefault("atm_withdrawal_limit", int64(2_500_000))
	viper.SetDefault("daily_transaction_limit", int64(10_000_000))

	viper.SetDefault("posting.retry_attempts", 3)
	viper.SetDefault("posting.retry_backoff", 50*time.Millisecond)

	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	viper.SetDefault("jwt.expiry_hours", 24)

	viper.SetDefault("log.directory", "./logs")
	viper.SetDefault("log.min_level", "info")
	viper.SetDefault("log.max_file_bytes", int64(16*1024*1024))

	cfg := &Config{
		ServerPort: viper.GetString("server.port"),

		DatabaseHost:     viper.GetString("database.host"),
		DatabasePort:     viper.GetString("database.port"),
		DatabaseUser:     viper.GetString("database.user"),
		DatabasePassword: viper.GetString("database.password"),
		DatabaseName:     viper.GetString("database.name"),
		DatabaseSSLMode:  viper.GetString("database.ssl_mode"),

		RedisHost:     viper.GetString("redis.host"),
		RedisPort:     viper.GetString("redis.port"),
		RedisPassword: viper.GetString("redis.password"),
		RedisDB:       viper.GetInt("redis.db"),

		PoolMaxConnections:    viper.GetInt("pool.max_connections"),
		PoolValidateOnAcquire: viper.GetBool("pool.validate_on_acquire"),
		PoolConnMaxLifetime:   viper.GetDuration("pool.conn_max_lifetime"),

		ATMWithdrawalLimit:    viper.GetInt64("atm_withdrawal_limit"),
		DailyTransactionLimit: viper.GetInt64("daily_transaction_limit"),

		PostingRetryAttempts: viper.GetInt("posting.retry_attempts"),
		PostingRetryBackoff:  viper.GetDuration("posting.retry_backoff"),

		Argon2: Argon2Params{
			Time:       viper.GetUint32("argon2.time"),
			Memory:     viper.GetUint32("argon2.memory"),
			Threads:    uint8(viper.GetUint32("argon2.threads")),
			KeyLength:  viper.GetUint32("argon2.key_length"),
			SaltLength: viper.GetUint32("argon2.salt_length"),
		},

		JWTSecretKey:   viper.GetString("jwt.secret_key"),
		JWTExpiryHours: viper.GetInt("jwt.expiry_hours"),

		ISOMACKey: viper.GetString("iso.mac_key"),

		LogDirectory:    viper.GetString("log.directory"),
		LogMinLevel:     viper.GetString("log.min_level"),
		LogMaxFileBytes: viper.GetInt64("log.max_file_bytes"),
	}
	cfg.maintenance.Store(viper.GetBool("maintenance_mode"))
	return cfg
}

// MaintenanceMode reports the process-wide service flag. Read-mostly; writes
// come through SetMaintenanceMode on administrative channels only.
func (c *Config) MaintenanceMode() bool { return c.maintenance.Load() }

// SetMaintenanceMode flips the service flag.
func (c *Config) SetMaintenanceMode(on bool) { c.maintenance.Store(on) }

// PerTransactionCap returns the per-transaction cap for a channel.
func (c *Config) PerTransactionCap(channel string) int64 {
	if channel == "ATM" {
		return c.ATMWithdrawalLimit
	}
	return c.DailyTransactionLimit
}
