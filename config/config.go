// Package config loads the run configuration from an optional YAML file, .env files and ENVLOG_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix         = "ENVLOG"
	DefaultConfigName = "envlog2netcdf"

	ModeInternal = "internal"
	ModeCommand  = "command"
	ModeNcrcat   = "ncrcat"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Converter ConverterConfig `mapstructure:"converter"`
	Appender  AppenderConfig  `mapstructure:"appender"`
	Geostream GeostreamConfig `mapstructure:"geostream"`
	IoTDB     IoTDBConfig     `mapstructure:"iotdb"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ConverterConfig selects the logger file converter. Command is the argv of an external converter, with
// {input} and {output} placeholders.
type ConverterConfig struct {
	Mode    string   `mapstructure:"mode"`
	Command []string `mapstructure:"command"`
	Title   string   `mapstructure:"title"`
}

type AppenderConfig struct {
	Mode   string `mapstructure:"mode"`
	Ncrcat string `mapstructure:"ncrcat"`
}

type GeostreamConfig struct {
	Site      string   `mapstructure:"site"`
	Latitude  float64  `mapstructure:"latitude"`
	Longitude float64  `mapstructure:"longitude"`
	Exclude   []string `mapstructure:"exclude"`
}

type IoTDBConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DevicePrefix string `mapstructure:"device_prefix"`
}

type MetricsConfig struct {
	Pushgateway string `mapstructure:"pushgateway"`
	Job         string `mapstructure:"job"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("converter.mode", ModeInternal)
	v.SetDefault("converter.command", []string{})
	v.SetDefault("converter.title", "")
	v.SetDefault("appender.mode", ModeInternal)
	v.SetDefault("appender.ncrcat", "ncrcat")
	v.SetDefault("geostream.site", "Full Field - Environmental Logger")
	v.SetDefault("geostream.latitude", 33.075576)
	v.SetDefault("geostream.longitude", -111.974304)
	v.SetDefault("geostream.exclude", []string{"sensor_spectrum"})
	v.SetDefault("iotdb.enabled", false)
	v.SetDefault("iotdb.host", "127.0.0.1")
	v.SetDefault("iotdb.port", "6667")
	v.SetDefault("iotdb.user", "root")
	v.SetDefault("iotdb.password", "root")
	v.SetDefault("iotdb.device_prefix", "root.envlog")
	v.SetDefault("metrics.pushgateway", "")
	v.SetDefault("metrics.job", "envlog2netcdf")
}

// Load reads path, or ./envlog2netcdf.yaml when path is empty and the file exists. Environment variables
// ENVLOG_<SECTION>_<KEY> override the file; the IoTDB connection also honours IOTDB_HOST, IOTDB_PORT,
// IOTDB_USER and IOTDB_PASSWORD.
func Load(path string) (Config, error) {
	var cfg Config
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"host", "port", "user", "password"} {
		envKey := strings.ToUpper("iotdb_" + key)
		if err := v.BindEnv("iotdb."+key, EnvPrefix+"_"+envKey, envKey); err != nil {
			return cfg, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadEnvFiles loads .env style files into the process environment without overriding variables that
// are already set. Missing files are ignored.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Converter.Mode {
	case ModeInternal:
	case ModeCommand:
		if len(c.Converter.Command) == 0 {
			return fmt.Errorf("%w: converter.command is required in %s mode", ErrInvalidConfig, ModeCommand)
		}
	default:
		return fmt.Errorf("%w: unknown converter.mode %q", ErrInvalidConfig, c.Converter.Mode)
	}
	switch c.Appender.Mode {
	case ModeInternal, ModeNcrcat:
	default:
		return fmt.Errorf("%w: unknown appender.mode %q", ErrInvalidConfig, c.Appender.Mode)
	}
	if c.Geostream.Latitude < -90 || c.Geostream.Latitude > 90 || c.Geostream.Longitude < -180 || c.Geostream.Longitude > 180 {
		return fmt.Errorf("%w: geostream location %v,%v", ErrInvalidConfig, c.Geostream.Latitude, c.Geostream.Longitude)
	}
	if c.IoTDB.Enabled && (c.IoTDB.Host == "" || c.IoTDB.Port == "") {
		return fmt.Errorf("%w: iotdb.host and iotdb.port are required", ErrInvalidConfig)
	}
	return nil
}
