package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Gate     GateConfig     `mapstructure:"gate"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	ProxyPort   int    `mapstructure:"proxy_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type UpstreamConfig struct {
	URL string `mapstructure:"url"`
}

// GateConfig is the gate's entire policy surface. It is consumed once at
// process start and never re-read mid-request; changing it requires a
// restart.
type GateConfig struct {
	AllowedOrigins      []string                          `mapstructure:"allowed_origins"`
	TrustedProxyHeaders []string                          `mapstructure:"trusted_proxy_headers"`
	FailurePolicy       string                            `mapstructure:"failure_policy"`
	Limits              map[string]map[string]interface{} `mapstructure:"limits"`
	Paths               PathsConfig                       `mapstructure:"paths"`
}

type PathsConfig struct {
	Protected []string `mapstructure:"protected"`
	Exempt    []string `mapstructure:"exempt"`
	AuthPages []string `mapstructure:"auth_pages"`
	AdminOnly []string `mapstructure:"admin_only"`
	Login     string   `mapstructure:"login"`
}

var globalConfig Config

func Load(configPath string) error {
	if err := loadConfigFile(configPath, "config", &globalConfig); err != nil {
		return fmt.Errorf("could not load config file: %w", err)
	}
	setDefaultValues()
	return nil
}

func loadConfigFile(configPath, fileName string, out interface{}) error {
	viper.SetConfigName(fileName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("config file %s.yaml not found, using only environment variables", fileName)
		}
		return fmt.Errorf("error reading config file %s.yaml: %w", fileName, err)
	}

	if err := viper.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to unmarshal %s config: %w", fileName, err)
	}

	return nil
}

func setDefaultValues() {
	if globalConfig.Server.ProxyPort == 0 {
		globalConfig.Server.ProxyPort = 8080
	}
	if globalConfig.Server.MetricsPort == 0 {
		globalConfig.Server.MetricsPort = 9090
	}
	if len(globalConfig.Gate.TrustedProxyHeaders) == 0 {
		globalConfig.Gate.TrustedProxyHeaders = []string{"X-Real-IP", "X-Forwarded-For"}
	}
	if globalConfig.Gate.FailurePolicy == "" {
		// Fail-safe default: a dead counter store blocks traffic rather than
		// silently admitting unlimited traffic.
		globalConfig.Gate.FailurePolicy = "closed"
	}
	if globalConfig.Gate.Paths.Login == "" {
		globalConfig.Gate.Paths.Login = "/login"
	}
}

// Validate rejects malformed configuration at startup so no policy error is
// ever deferred to request time. Component constructors perform their own
// deeper validation on top of this.
func (c *Config) Validate() error {
	if c.Server.ProxyPort <= 0 || c.Server.ProxyPort > 65535 {
		return fmt.Errorf("invalid proxy port %d", c.Server.ProxyPort)
	}
	if c.Upstream.URL == "" {
		return fmt.Errorf("upstream.url is required")
	}
	parsed, err := url.Parse(c.Upstream.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("upstream.url must be an absolute URL: %q", c.Upstream.URL)
	}
	if len(c.Gate.AllowedOrigins) == 0 {
		return fmt.Errorf("gate.allowed_origins must not be empty")
	}
	if len(c.Gate.Limits) == 0 {
		return fmt.Errorf("gate.limits must define the limit classes")
	}
	if len(c.Gate.Paths.Protected) == 0 {
		return fmt.Errorf("gate.paths.protected must not be empty")
	}
	return nil
}

func GetConfig() *Config {
	return &globalConfig
}
