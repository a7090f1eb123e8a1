package configs

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port             string
		Env              string
		LogLevel         string
		AllowCrossOrigin bool
		RateLimit        float64
		RateBurst        int
	}
	Database struct {
		Driver       string
		Host         string
		Port         string
		User         string
		Password     string
		Name         string
		SSLMode      string
		MaxOpenConns int
		MaxIdleConns int
	}
	Backup struct {
		Dir      string
		LogLimit int
	}
	Scheduler struct {
		Enabled     bool
		Timezone    string
		CleanupSpec string
		ReportSpec  string
		BackupSpec  string
	}
	WebSocket struct {
		PingInterval   string
		MaxMessageSize int
	}
	Features struct {
		EnableDashboard bool
		EnableLogging   bool
	}
}

// LoadConfig reads ./configs/config.yaml and the environment.
func LoadConfig() (*Config, error) {
	// Load .env file
	if err := godotenv.Load("./configs/.env"); err != nil {
		log.Info("No .env file found")
	}
	return LoadConfigFrom("./configs")
}

// LoadConfigFrom reads config.yaml from dir. A missing file is not an error;
// defaults and environment variables still apply.
func LoadConfigFrom(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config") // Name of the config file (without extension)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.AutomaticEnv()

	// Allow dots in environment variables to map to nested keys
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		log.Info("No config file found, using defaults", "dir", dir)
	}

	substituteEnvVarsInConfig(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.env", "dev")
	v.SetDefault("server.logLevel", "info")
	v.SetDefault("server.allowCrossOrigin", true)
	v.SetDefault("server.rateLimit", 5)
	v.SetDefault("server.rateBurst", 10)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "auctionhub")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxOpenConns", 10)
	v.SetDefault("database.maxIdleConns", 5)

	v.SetDefault("backup.dir", "./backups")
	v.SetDefault("backup.logLimit", 100)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.timezone", "Local")
	v.SetDefault("scheduler.cleanupSpec", "*/30 * * * *")
	v.SetDefault("scheduler.reportSpec", "0 * * * *")
	v.SetDefault("scheduler.backupSpec", "0 2 * * *")

	v.SetDefault("websocket.pingInterval", "54s")
	v.SetDefault("websocket.maxMessageSize", 512)

	v.SetDefault("features.enableDashboard", false)
	v.SetDefault("features.enableLogging", true)
}

// Helper function to manually replace environment variables in config file values
func substituteEnvVarsInConfig(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		value, ok := v.Get(key).(string)
		if !ok {
			continue
		}

		// Check if the value contains environment variable syntax (e.g., ${PORT})
		if strings.Contains(value, "${") {
			v.Set(key, os.Expand(value, lookupEnv))
		}
	}
}

// lookupEnv resolves NAME or NAME:-fallback.
func lookupEnv(name string) string {
	fallback := ""
	if i := strings.Index(name, ":-"); i >= 0 {
		name, fallback = name[:i], name[i+2:]
	}
	if value, ok := os.LookupEnv(name); ok && value != "" {
		return value
	}
	return fallback
}
