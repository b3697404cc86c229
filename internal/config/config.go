package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Softhook/elite-sub000/internal/content"
	"github.com/Softhook/elite-sub000/pkg/core"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "debrisfield.cfg.json"

// FieldConfig describes the debris field to generate.
type FieldConfig struct {
	CenterX            float64 `json:"centerX" mapstructure:"centerX"`
	CenterY            float64 `json:"centerY" mapstructure:"centerY"`
	Radius             float64 `json:"radius" mapstructure:"radius"`
	Density            float64 `json:"density" mapstructure:"density"`
	Category           string  `json:"category" mapstructure:"category"`
	ActivationDistance float64 `json:"activationDistance" mapstructure:"activationDistance"`
	MaxActive          int     `json:"maxActive" mapstructure:"maxActive"`
	// Seed 0 means seed from the clock
	Seed uint64 `json:"seed" mapstructure:"seed"`
}

// StreamConfig holds streaming manager settings
type StreamConfig struct {
	Index            string  `json:"index" mapstructure:"index"`
	GridCellSize     float64 `json:"gridCellSize" mapstructure:"gridCellSize"`
	PersistDrift     bool    `json:"persistDrift" mapstructure:"persistDrift"`
	RespawnDestroyed bool    `json:"respawnDestroyed" mapstructure:"respawnDestroyed"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	OutputDir    string        `json:"outputDir" mapstructure:"outputDir"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// DBConfig holds Postgres connection settings
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// InfluxConfig holds InfluxDB connection settings
type InfluxConfig struct {
	Host      string `json:"host" mapstructure:"host"`
	Port      string `json:"port" mapstructure:"port"`
	Protocol  string `json:"protocol" mapstructure:"protocol"`
	Token     string `json:"token" mapstructure:"token"`
	Org       string `json:"org" mapstructure:"org"`
	Bucket    string `json:"bucket" mapstructure:"bucket"`
	BackupDir string `json:"backupDir" mapstructure:"backupDir"`
}

// StorageConfig selects and configures the recording backend
type StorageConfig struct {
	Type     string       `json:"type" mapstructure:"type"`
	Memory   MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite   SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
	Postgres DBConfig     `json:"db" mapstructure:"db"`
	Influx   InfluxConfig `json:"influx" mapstructure:"influx"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout   time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	Level          string `json:"logLevel"`
	Dir            string `json:"logsDir"`
	GraylogEnabled bool   `json:"graylogEnabled"`
	GraylogAddress string `json:"graylogAddress"`
}

// EnvPrefix namespaces environment overrides: DEBRISFIELD_FIELD_RADIUS
// sets field.radius.
const EnvPrefix = "DEBRISFIELD"

// Load applies defaults, environment overrides and then the config file
// in configDir. Environment variables win over the file. A missing file
// is reported but leaves defaults and environment in place.
func Load(configDir string) error {
	setDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.SetConfigType("json")
	viper.AddConfigPath(configDir)

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("field.centerX", 0.0)
	viper.SetDefault("field.centerY", 0.0)
	viper.SetDefault("field.radius", 1000.0)
	viper.SetDefault("field.density", 1.0)
	viper.SetDefault("field.category", string(content.DefaultCategory))
	viper.SetDefault("field.activationDistance", 600.0)
	viper.SetDefault("field.maxActive", 12)
	viper.SetDefault("field.seed", 0)

	viper.SetDefault("stream.index", "linear")
	viper.SetDefault("stream.gridCellSize", 200.0)
	viper.SetDefault("stream.persistDrift", false)
	viper.SetDefault("stream.respawnDestroyed", false)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.outputDir", "./recordings")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "debrisfield")

	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "debrisfield")
	viper.SetDefault("influx.bucket", "stream")
	viper.SetDefault("influx.backupDir", "./recordings")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "debrisfield")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
	viper.SetDefault("otel.metricInterval", "10s")
}

// GetFieldConfig returns the field generation settings.
func GetFieldConfig() FieldConfig {
	return FieldConfig{
		CenterX:            viper.GetFloat64("field.centerX"),
		CenterY:            viper.GetFloat64("field.centerY"),
		Radius:             viper.GetFloat64("field.radius"),
		Density:            viper.GetFloat64("field.density"),
		Category:           viper.GetString("field.category"),
		ActivationDistance: viper.GetFloat64("field.activationDistance"),
		MaxActive:          viper.GetInt("field.maxActive"),
		Seed:               viper.GetUint64("field.seed"),
	}
}

// GetStreamConfig returns the streaming manager settings.
func GetStreamConfig() StreamConfig {
	return StreamConfig{
		Index:            viper.GetString("stream.index"),
		GridCellSize:     viper.GetFloat64("stream.gridCellSize"),
		PersistDrift:     viper.GetBool("stream.persistDrift"),
		RespawnDestroyed: viper.GetBool("stream.respawnDestroyed"),
	}
}

// GetStorageConfig returns the recording backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			OutputDir:    viper.GetString("storage.sqlite.outputDir"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: DBConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
		Influx: InfluxConfig{
			Host:      viper.GetString("influx.host"),
			Port:      viper.GetString("influx.port"),
			Protocol:  viper.GetString("influx.protocol"),
			Token:     viper.GetString("influx.token"),
			Org:       viper.GetString("influx.org"),
			Bucket:    viper.GetString("influx.bucket"),
			BackupDir: viper.GetString("influx.backupDir"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
	}
}

// GetLoggingConfig returns the log output settings.
func GetLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:          viper.GetString("logLevel"),
		Dir:            viper.GetString("logsDir"),
		GraylogEnabled: viper.GetBool("graylog.enabled"),
		GraylogAddress: viper.GetString("graylog.address"),
	}
}

// GetCategoryTable returns the built-in category table with any entries
// from the "categories" section added or overridden.
func GetCategoryTable() (content.Table, error) {
	var overrides map[core.Category]content.Config
	if err := viper.UnmarshalKey("categories", &overrides); err != nil {
		return content.Table{}, fmt.Errorf("decoding categories: %w", err)
	}
	table, err := content.DefaultTable().Merge(overrides)
	if err != nil {
		return content.Table{}, fmt.Errorf("invalid categories: %w", err)
	}
	return table, nil
}
