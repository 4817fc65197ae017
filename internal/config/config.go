package config

import (
	"os"
	"strings"

	"codeberg.org/mutker/sensorpoll/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix  = "SENSORPOLL"
	configName = "sensorpoll"
	configType = "toml"

	DefaultSource   = SourceHTTP
	DefaultEndpoint = "192.168.197.75"
	DefaultPath     = "/data"
	DefaultLogLevel = string(LogLevelWarning)
	DefaultTimeout  = 5
	DefaultCooldown = 300
	DefaultSubject  = "sensorpoll"
)

// Config is the file, environment and flag configuration.
type Config struct {
	Source        string            `mapstructure:"source"`
	Endpoint      string            `mapstructure:"endpoint"`
	Path          string            `mapstructure:"path"`
	Fields        []string          `mapstructure:"fields"`
	DiskPath      string            `mapstructure:"disk_path"`
	Interval      int               `mapstructure:"interval"`
	Timeout       int               `mapstructure:"timeout"`
	Cooldown      int               `mapstructure:"cooldown"`
	AlertMode     string            `mapstructure:"alert_mode"`
	CooldownScope string            `mapstructure:"cooldown_scope"`
	Thresholds    map[string]string `mapstructure:"thresholds"`
	AlertLog      string            `mapstructure:"alert_log"`
	NATSURL       string            `mapstructure:"nats_url"`
	NATSSubject   string            `mapstructure:"nats_subject"`
	PIDDir        string            `mapstructure:"pid_dir"`
	LogLevel      string            `mapstructure:"log_level"`
	Debug         bool              `mapstructure:"debug"`
	Verbose       bool              `mapstructure:"verbose"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source", DefaultSource)
	v.SetDefault("endpoint", DefaultEndpoint)
	v.SetDefault("path", DefaultPath)
	v.SetDefault("fields", []string{})
	v.SetDefault("disk_path", "/")
	v.SetDefault("interval", 0)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("cooldown", DefaultCooldown)
	v.SetDefault("alert_mode", AlertModeFirst)
	v.SetDefault("cooldown_scope", CooldownScopeKey)
	v.SetDefault("alert_log", "")
	v.SetDefault("nats_url", "")
	v.SetDefault("nats_subject", DefaultSubject)
	v.SetDefault("pid_dir", os.TempDir())
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)
}

func defineFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to the configuration file")
	fs.String("source", DefaultSource, "Metrics source: http, host or gpu")
	fs.String("endpoint", DefaultEndpoint, "Sensor host or base URL (http source)")
	fs.String("path", DefaultPath, "Sensor data path (http source)")
	fs.String("disk-path", "/", "Filesystem to report disk usage for (host source)")
	fs.Int("interval", 0, "Seconds between polls (0 selects the source default)")
	fs.Int("timeout", DefaultTimeout, "HTTP request timeout in seconds")
	fs.Int("cooldown", DefaultCooldown, "Seconds before the same alert may fire again")
	fs.String("alert-mode", AlertModeFirst, "Alerts per cycle: first or all")
	fs.String("cooldown-scope", CooldownScopeKey, "Cooldown tracking: key or global")
	fs.String("alert-log", "", "SQLite database recording fired alerts (empty disables)")
	fs.String("nats-url", "", "NATS server to publish updates and alerts to (empty disables)")
	fs.String("nats-subject", DefaultSubject, "NATS subject prefix")
	fs.String("pid-dir", os.TempDir(), "Directory holding the PID file")
	fs.String("log-level", DefaultLogLevel, "Log level: debug, info, warning or error")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.Bool("verbose", false, "Enable verbose logging")
}

// Load reads defaults, the config file, SENSORPOLL_* environment variables
// and the command line args, in increasing order of precedence.
func Load(args []string) (*Config, error) {
	errFactory := errors.New()
	v := viper.New()
	setDefaults(v)

	fs := pflag.NewFlagSet(configName, pflag.ContinueOnError)
	defineFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, bindErr)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	configFile, _ := fs.GetString("config")
	if configFile == "" {
		configFile = os.Getenv(envPrefix + "_CONFIG")
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath("/etc")
		v.AddConfigPath("$HOME/.config/" + configName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}
	cfg.File = v.ConfigFileUsed()

	if cfg.Debug {
		cfg.LogLevel = string(LogLevelDebug)
	} else if cfg.Verbose && cfg.LogLevel == DefaultLogLevel {
		cfg.LogLevel = string(LogLevelInfo)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if !LogLevel(cfg.LogLevel).IsValid() {
		return nil, errFactory.WithData(errors.ErrInvalidLogLevel, cfg.LogLevel)
	}

	return cfg, nil
}
