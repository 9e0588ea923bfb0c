package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config 服务完整配置
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Keys     KeysConfig     `yaml:"keys"`
	License  LicenseConfig  `yaml:"license"`
	Admin    AdminConfig    `yaml:"admin"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Log      LogConfig      `yaml:"log"`
	Sheet    SheetConfig    `yaml:"sheet"`
}

type ServerConfig struct {
	Port           int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout    time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	DisableCORS    bool          `yaml:"disable_cors" envconfig:"DISABLE_CORS"`
}

type DatabaseConfig struct {
	DataDir string `yaml:"data_dir" envconfig:"DATA_DIR"`
	File    string `yaml:"file" envconfig:"DB_FILE"`
}

// KeysConfig 同一把密钥既可以通过环境变量中的 PEM 提供，也可以通过文件路径提供，PEM 优先
type KeysConfig struct {
	PrivatePEM  string `yaml:"private_pem" envconfig:"PRIVATE_KEY_PEM"`
	PrivatePath string `yaml:"private_path" envconfig:"PRIVATE_KEY_PATH"`
	PublicPEM   string `yaml:"public_pem" envconfig:"PUBLIC_KEY_PEM"`
	PublicPath  string `yaml:"public_path" envconfig:"PUBLIC_KEY_PATH"`
}

type LicenseConfig struct {
	DefaultDurationHours int `yaml:"default_duration_hours" envconfig:"DEFAULT_DURATION_HOURS"`
}

type AdminConfig struct {
	Username     string        `yaml:"username" envconfig:"ADMIN_USERNAME"`
	PasswordHash string        `yaml:"password_hash" envconfig:"ADMIN_PASSWORD_HASH"`
	JWTSecret    string        `yaml:"jwt_secret" envconfig:"JWT_SECRET"`
	JWTTTL       time.Duration `yaml:"jwt_ttl" envconfig:"JWT_TTL"`
}

type WebhookConfig struct {
	Secret string `yaml:"secret" envconfig:"WEBHOOK_SECRET"`
}

type LogConfig struct {
	Level    string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format   string `yaml:"format" envconfig:"LOG_FORMAT"`
	Sampling bool   `yaml:"sampling" envconfig:"LOG_SAMPLING"`
}

type SheetConfig struct {
	Enable          bool   `yaml:"enable" envconfig:"SHEET_ENABLE"`
	CredentialsPath string `yaml:"credentials_path" envconfig:"SHEET_CREDENTIALS"`
	SpreadsheetID   string `yaml:"spreadsheet_id" envconfig:"SHEET_ID"`
	SheetName       string `yaml:"sheet_name" envconfig:"SHEET_NAME"`
}

const envPrefix = "LICENSE"

// Load 先读取可选的 YAML 文件，再用环境变量覆盖，最后补齐默认值。
// 环境变量形如 LICENSE_KEYS_PRIVATE_KEY_PEM、LICENSE_ADMIN_JWT_SECRET。
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv(envPrefix + "_CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = 5 * time.Second
	}
	if c.Database.DataDir == "" {
		c.Database.DataDir = "data"
	}
	if c.Database.File == "" {
		c.Database.File = "license.db"
	}
	if c.Keys.PrivatePEM == "" && c.Keys.PrivatePath == "" {
		c.Keys.PrivatePath = "priv.pem"
	}
	if c.License.DefaultDurationHours == 0 {
		c.License.DefaultDurationHours = 36
	}
	if c.Admin.Username == "" {
		c.Admin.Username = "admin"
	}
	if c.Admin.JWTTTL <= 0 {
		c.Admin.JWTTTL = 12 * time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Sheet.SheetName == "" {
		c.Sheet.SheetName = "licenses"
	}
}

// Validate 检查启动所需的最小配置
func (c *Config) Validate() error {
	if c.License.DefaultDurationHours <= 0 {
		return errors.New("license.default_duration_hours must be positive")
	}
	if c.Admin.JWTSecret == "" {
		return errors.New("admin.jwt_secret is required")
	}
	if c.Server.RequestTimeout <= 0 {
		return errors.New("server.request_timeout must be positive")
	}
	if c.Sheet.Enable && (c.Sheet.CredentialsPath == "" || c.Sheet.SpreadsheetID == "") {
		return errors.New("sheet sync requires credentials_path and spreadsheet_id")
	}
	return nil
}
