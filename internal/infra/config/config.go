package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mr-tron/base58"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config -
type Config struct {
	Token    TokenConfig    `mapstructure:"token"`
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Solscan  SolscanConfig  `mapstructure:"solscan"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	Rotation RotationConfig `mapstructure:"rotation"`
	Winners  WinnersConfig  `mapstructure:"winners"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	S3       S3Config       `mapstructure:"s3"`
	Log      LogConfig      `mapstructure:"log"`
}

type TokenConfig struct {
	Address string `mapstructure:"address"`
	Name    string `mapstructure:"name"`
}

type ServerConfig struct {
	Port                 int    `mapstructure:"port"`
	EnableRateLimit      bool   `mapstructure:"enable_rate_limit"`
	RateLimitWindowMs    int    `mapstructure:"rate_limit_window_ms"`
	RateLimitMaxRequests int    `mapstructure:"rate_limit_max_requests"`
	Version              string `mapstructure:"version"`
}

type StoreConfig struct {
	Path                  string `mapstructure:"path"`
	BackupDir             string `mapstructure:"backup_dir"`
	BackupKeep            int    `mapstructure:"backup_keep"`
	MaxHistory            int    `mapstructure:"max_history"`
	AutosaveIntervalSec   int    `mapstructure:"autosave_interval_seconds"`
	BackupIntervalMinutes int    `mapstructure:"backup_interval_minutes"`
}

// ScraperConfig - cooldown and retry policy for one scrape cycle
type ScraperConfig struct {
	Source                string `mapstructure:"source"` // solscan | browser | csv
	CSVPath               string `mapstructure:"csv_path"`
	CooldownMinutes       int    `mapstructure:"cooldown_minutes"`
	MaxRetries            int    `mapstructure:"max_retries"`
	RetryDelayMs          int    `mapstructure:"retry_delay_ms"`
	TimeoutMs             int    `mapstructure:"timeout_ms"`
	EnableAutoUpdate      bool   `mapstructure:"enable_auto_update"`
	UpdateIntervalMinutes int    `mapstructure:"update_interval_minutes"`
}

type SolscanConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	APIKey          string `mapstructure:"api_key"`
	PageSize        int    `mapstructure:"page_size"`
	MaxPages        int    `mapstructure:"max_pages"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
	MaxResponseSize int64  `mapstructure:"max_response_size"`
}

type BrowserConfig struct {
	Headless    bool   `mapstructure:"headless"`
	DownloadDir string `mapstructure:"download_dir"`
	PageURL     string `mapstructure:"page_url"`
	Bin         string `mapstructure:"bin"`
}

type ProxyConfig struct {
	List     []string `mapstructure:"list"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
}

type RotationConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalSeconds int  `mapstructure:"interval_seconds"`
	Weighted        bool `mapstructure:"weighted"`
}

type WinnersConfig struct {
	MaxEntries   int     `mapstructure:"max_entries"`
	DefaultPrize float64 `mapstructure:"default_prize"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// S3Config - optional remote copy of every backup
type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

type LogConfig struct {
	Dir   string `mapstructure:"dir"`
	Level string `mapstructure:"level"`
}

func (c ScraperConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownMinutes) * time.Minute
}

func (c ScraperConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

func (c ScraperConfig) AttemptTimeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c ScraperConfig) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalMinutes) * time.Minute
}

func (c StoreConfig) AutosaveInterval() time.Duration {
	return time.Duration(c.AutosaveIntervalSec) * time.Second
}

func (c StoreConfig) BackupInterval() time.Duration {
	return time.Duration(c.BackupIntervalMinutes) * time.Minute
}

func (c RotationConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c ServerConfig) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowMs) * time.Millisecond
}

// LoadConfig from env, and
// 1. by default
// 2. config.yaml
// 3. .env file
// 4. env variables (original names are kept as aliases)
// 5. command line flags, when flags is not nil
func LoadConfig(flags *pflag.FlagSet) (*Config, error) {
	godotenv.Load(".env")

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.ReadInConfig() // missing file is fine

	v.SetConfigType("env")
	v.SetConfigFile(".env")
	v.MergeInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setupEnvAliases(v)

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.Proxy.List = splitList(v.Get("proxy.list"))

	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("token.name", "Token")

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.enable_rate_limit", true)
	v.SetDefault("server.rate_limit_window_ms", 900000)
	v.SetDefault("server.rate_limit_max_requests", 100)
	v.SetDefault("server.version", "1.0.0")

	v.SetDefault("store.path", "data/holders.json")
	v.SetDefault("store.backup_dir", "data/backups")
	v.SetDefault("store.backup_keep", 10)
	v.SetDefault("store.max_history", 1000)
	v.SetDefault("store.autosave_interval_seconds", 300)
	v.SetDefault("store.backup_interval_minutes", 60)

	v.SetDefault("scraper.source", "solscan")
	v.SetDefault("scraper.cooldown_minutes", 8)
	v.SetDefault("scraper.max_retries", 3)
	v.SetDefault("scraper.retry_delay_ms", 5000)
	v.SetDefault("scraper.timeout_ms", 60000)
	v.SetDefault("scraper.enable_auto_update", true)
	v.SetDefault("scraper.update_interval_minutes", 10)

	v.SetDefault("solscan.base_url", "https://pro-api.solscan.io/v2.0")
	v.SetDefault("solscan.page_size", 40)
	v.SetDefault("solscan.max_pages", 25)
	v.SetDefault("solscan.request_timeout", 30)
	v.SetDefault("solscan.max_response_size", 10*1024*1024)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.download_dir", "data/downloads")
	v.SetDefault("browser.page_url", "https://solscan.io/token/%s#holders")

	v.SetDefault("rotation.enabled", true)
	v.SetDefault("rotation.interval_seconds", 30)
	v.SetDefault("rotation.weighted", true)

	v.SetDefault("winners.max_entries", 100)
	v.SetDefault("winners.default_prize", 0.1)

	v.SetDefault("s3.prefix", "holders-backups")
	v.SetDefault("s3.region", "us-east-1")

	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.level", "info")
}

func setupEnvAliases(v *viper.Viper) {
	v.BindEnv("token.address", "TOKEN_ADDRESS")
	v.BindEnv("token.name", "TOKEN_NAME")

	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.enable_rate_limit", "ENABLE_RATE_LIMIT")
	v.BindEnv("server.rate_limit_window_ms", "RATE_LIMIT_WINDOW_MS")
	v.BindEnv("server.rate_limit_max_requests", "RATE_LIMIT_MAX_REQUESTS")

	v.BindEnv("store.path", "DATABASE_PATH")
	v.BindEnv("store.backup_dir", "BACKUP_PATH")
	v.BindEnv("store.max_history", "MAX_HISTORY_ENTRIES")

	v.BindEnv("scraper.source", "SCRAPER_SOURCE")
	v.BindEnv("scraper.csv_path", "SCRAPER_CSV_PATH")
	v.BindEnv("scraper.max_retries", "MAX_RETRIES")
	v.BindEnv("scraper.timeout_ms", "TIMEOUT_MS")
	v.BindEnv("scraper.enable_auto_update", "ENABLE_AUTO_UPDATE")
	v.BindEnv("scraper.update_interval_minutes", "UPDATE_INTERVAL_MINUTES")

	v.BindEnv("solscan.api_key", "SOLSCAN_API_KEY")
	v.BindEnv("browser.headless", "HEADLESS_MODE")
	v.BindEnv("browser.bin", "CHROME_BIN")

	v.BindEnv("proxy.list", "PROXY_LIST")
	v.BindEnv("proxy.username", "PROXY_USER")
	v.BindEnv("proxy.password", "PROXY_PASS")

	v.BindEnv("rotation.enabled", "ENABLE_AUTO_ROTATION")
	v.BindEnv("rotation.interval_seconds", "ROTATION_INTERVAL_SECONDS")
	v.BindEnv("rotation.weighted", "WEIGHTED_SELECTION")

	v.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("telegram.chat_id", "TELEGRAM_CHAT_ID")

	v.BindEnv("s3.enabled", "S3_ENABLED")
	v.BindEnv("s3.bucket", "S3_BUCKET")
	v.BindEnv("s3.prefix", "S3_PREFIX")
	v.BindEnv("s3.region", "S3_REGION")
	v.BindEnv("s3.endpoint", "S3_ENDPOINT")
	v.BindEnv("s3.access_key_id", "S3_ACCESS_KEY_ID")
	v.BindEnv("s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("s3.use_path_style", "S3_USE_PATH_STYLE")

	v.BindEnv("log.dir", "LOG_PATH")
	v.BindEnv("log.level", "LOG_LEVEL")
}

// flag name -> config key
var flagKeys = map[string]string{
	"token":      "token.address",
	"port":       "server.port",
	"db":         "store.path",
	"source":     "scraper.source",
	"csv":        "scraper.csv_path",
	"headless":   "browser.headless",
	"log-level":  "log.level",
	"backup-dir": "store.backup_dir",
}

// RegisterFlags adds the flags LoadConfig understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("token", "", "Token mint address")
	fs.Int("port", 0, "HTTP port")
	fs.String("db", "", "Path of the JSON state document")
	fs.String("source", "", "Holder source: solscan, browser or csv")
	fs.String("csv", "", "Ingest holders from this CSV file instead of scraping")
	fs.Bool("headless", true, "Run the browser headless")
	fs.String("log-level", "", "Log level (debug, info)")
	fs.String("backup-dir", "", "Directory for backups and exports")
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed {
			return
		}
		if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
			bindErr = fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}

func splitList(raw any) []string {
	var items []string
	switch val := raw.(type) {
	case string:
		items = strings.FieldsFunc(val, func(r rune) bool { return r == ',' || r == '\n' || r == ' ' })
	case []string:
		items = val
	case []interface{}:
		for _, item := range val {
			if str, ok := item.(string); ok {
				items = append(items, str)
			}
		}
	}

	result := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}

// ValidateTokenAddress checks that addr is a base58 string decoding to a 32 byte key.
func ValidateTokenAddress(addr string) error {
	if len(addr) < 32 || len(addr) > 44 {
		return fmt.Errorf("token address must be 32-44 characters, got %d", len(addr))
	}
	raw, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("token address is not valid base58: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("token address decodes to %d bytes, want 32", len(raw))
	}
	return nil
}

func validateConfig(config *Config) error {
	if config.Token.Address == "" {
		return fmt.Errorf("token.address is required (TOKEN_ADDRESS)")
	}
	if err := ValidateTokenAddress(config.Token.Address); err != nil {
		return err
	}

	switch config.Scraper.Source {
	case "solscan", "browser", "csv":
	default:
		return fmt.Errorf("scraper.source must be solscan, browser or csv, got %q", config.Scraper.Source)
	}
	if config.Scraper.Source == "csv" && config.Scraper.CSVPath == "" {
		return fmt.Errorf("scraper.csv_path is required for the csv source")
	}

	if config.Scraper.MaxRetries < 1 {
		config.Scraper.MaxRetries = 1
	}
	if config.Store.MaxHistory <= 0 {
		config.Store.MaxHistory = 1000
	}
	if config.Winners.MaxEntries <= 0 {
		config.Winners.MaxEntries = 100
	}
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", config.Server.Port)
	}

	if config.S3.Enabled && config.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when s3 is enabled")
	}
	return nil
}
