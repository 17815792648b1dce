package configuration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"crosspost/infrastructure/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App         App               `json:"app"`
	Database    Database          `json:"database"`
	RedisClient RedisClient       `json:"redisClient"`
	Pubsub      Pubsub            `json:"pubsub"`
	ServiceBus  ServiceBus        `json:"serviceBus"`
	Logger      Logger            `json:"logger"`
	Publish     Publish           `json:"publish"`
	Media       Media             `json:"media"`
	OAuth       OAuth             `json:"oauth"`
	Webhooks    map[string]string `json:"webhooks"`
}

type App struct {
	Port        int      `json:"port"`
	SecretKey   string   `json:"secretKey"`
	TLSEnabled  bool     `json:"tlsEnabled"`
	TLSCertFile string   `json:"tlsCertFile"`
	TLSKeyFile  string   `json:"tlsKeyFile"`
	CORSOrigins []string `json:"corsOrigins"`
}

type Database struct {
	// Vendor selects the credential store: postgres (default), mssql or mysql.
	Vendor string `json:"vendor"`
	Psql   Db     `json:"psql"`
	MySql  Db     `json:"mysql"`
	Mongo  Db     `json:"mongo"`
	Mssql  Db     `json:"mssql"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	SSLMode  string `json:"sslMode"`
}

type RedisClient struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	Username string `json:"username"`
	DB       int    `json:"db"`
}

type Pubsub struct {
	ProjectID string `json:"projectID"`
	Topic     string `json:"topic"`
}

type ServiceBus struct {
	Namespace string `json:"namespace"`
	Queue     string `json:"queue"`
}

type Logger struct {
	Format string `json:"format"`
	Level  string `json:"level"`
}

// Publish tunes the orchestrator.
type Publish struct {
	Platforms           []string      `json:"platforms"`
	PlatformTimeout     time.Duration `json:"platformTimeout"`
	StoreTimeout        time.Duration `json:"storeTimeout"`
	MaxParallel         int           `json:"maxParallel"`
	EmptyOnStoreFailure bool          `json:"emptyOnStoreFailure"`
	IdempotencyTTL      time.Duration `json:"idempotencyTTL"`
}

// Media controls where uploads are kept while a publish request runs.
type Media struct {
	Dir           string `json:"dir"`
	PublicBaseURL string `json:"publicBaseURL"`
	MaxSizeMB     int64  `json:"maxSizeMB"`
}

// OAuth holds third-party platform OAuth client credentials
type OAuth struct {
	Facebook  OAuthClient `json:"facebook"`
	Instagram OAuthClient `json:"instagram"`
	YouTube   OAuthClient `json:"youtube"`
	X         OAuthClient `json:"x"`
	Bluesky   OAuthClient `json:"bluesky"`
}

type OAuthClient struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RedirectURI  string `json:"redirectURI"`
	// BaseURL overrides the platform API root (sandbox or self-hosted PDS).
	BaseURL string `json:"baseURL"`
}

var DefaultPlatforms = []string{"facebook", "instagram", "youtube", "x", "bluesky"}

// Load reads config.json (config-<ENV>.json when ENV is set), applies env
// overrides and defaults. Env files are loaded first and never override the OS env.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{"config.env", ".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err == nil {
			logger.GetLogger().WithField("file", f).Info("Loaded env file")
		}
	}

	name := getConfig()
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("../")
	v.AddConfigPath("../../")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config %s: %w", name, err)
		}
		logger.GetLogger().WithField("config", name).Warn("Config file not found, using env and defaults")
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	initDatabase(c)
	initApp(c)
	initServices(c)
	initPublish(c)
	initOAuth(c)
	if c.App.TLSEnabled {
		for _, client := range []*OAuthClient{&c.OAuth.Facebook, &c.OAuth.Instagram, &c.OAuth.YouTube, &c.OAuth.X} {
			if client.RedirectURI != "" && !hasHTTPS(client.RedirectURI) {
				client.RedirectURI = toHTTPSCallback(client.RedirectURI)
			}
		}
	}
	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
	return c, c.Validate()
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("app.port out of range: %d", c.App.Port)
	}
	switch c.Database.Vendor {
	case "postgres", "mssql", "mysql":
	default:
		return fmt.Errorf("unsupported database vendor %q", c.Database.Vendor)
	}
	if c.Publish.MaxParallel < 1 {
		return fmt.Errorf("publish.maxParallel must be >= 1")
	}
	return nil
}

func getConfig() string {
	name := "config"
	env := os.Getenv("ENV")
	if env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initDatabase(c *Config) {
	if v := os.Getenv("DB_VENDOR"); v != "" {
		c.Database.Vendor = v
	}
	if c.Database.Vendor == "" {
		env := os.Getenv("ENV")
		if env == "production" || env == "prod" {
			c.Database.Vendor = "mssql"
		} else {
			c.Database.Vendor = "postgres"
		}
	}
	c.Database.Vendor = strings.ToLower(c.Database.Vendor)

	c.Database.Psql.Name = getConfigValue(c.Database.Psql.Name, "DB_NAME", "crosspost")
	c.Database.Psql.Host = getConfigValue(c.Database.Psql.Host, "DB_HOST", "localhost")
	c.Database.Psql.Port = getConfigValue(c.Database.Psql.Port, "DB_PORT", "5432")
	c.Database.Psql.User = getConfigValue(c.Database.Psql.User, "DB_USER", "postgres")
	c.Database.Psql.Password = getConfigValue(c.Database.Psql.Password, "DB_PASSWORD", "")
	c.Database.Psql.SSLMode = getConfigValue(c.Database.Psql.SSLMode, "DB_SSLMODE", "disable")

	// Optional MSSQL config via environment variables (for Azure SQL in production)
	c.Database.Mssql.Name = getConfigValue(c.Database.Mssql.Name, "MSSQL_DB_NAME", "crosspost")
	c.Database.Mssql.Host = getConfigValue(c.Database.Mssql.Host, "MSSQL_HOST", "localhost")
	c.Database.Mssql.Port = getConfigValue(c.Database.Mssql.Port, "MSSQL_PORT", "1433")
	c.Database.Mssql.User = getConfigValue(c.Database.Mssql.User, "MSSQL_USER", "sa")
	c.Database.Mssql.Password = getConfigValue(c.Database.Mssql.Password, "MSSQL_PASSWORD", "")

	c.Database.MySql.Name = getConfigValue(c.Database.MySql.Name, "MYSQL_DB_NAME", "crosspost")
	c.Database.MySql.Host = getConfigValue(c.Database.MySql.Host, "MYSQL_HOST", "localhost")
	c.Database.MySql.Port = getConfigValue(c.Database.MySql.Port, "MYSQL_PORT", "3306")
	c.Database.MySql.User = getConfigValue(c.Database.MySql.User, "MYSQL_USER", "root")
	c.Database.MySql.Password = getConfigValue(c.Database.MySql.Password, "MYSQL_PASSWORD", "")

	c.Database.Mongo.Name = getConfigValue(c.Database.Mongo.Name, "MONGO_DB_NAME", "crosspost")
	c.Database.Mongo.Host = getConfigValue(c.Database.Mongo.Host, "MONGO_HOST", "")
	c.Database.Mongo.Port = getConfigValue(c.Database.Mongo.Port, "MONGO_PORT", "27017")
	c.Database.Mongo.User = getConfigValue(c.Database.Mongo.User, "MONGO_USER", "")
	c.Database.Mongo.Password = getConfigValue(c.Database.Mongo.Password, "MONGO_PASSWORD", "")
}

func initApp(c *Config) {
	// Prefer SECRET_KEY from environment for JWT verification; overrides config file when provided
	if v := os.Getenv("SECRET_KEY"); v != "" {
		c.App.SecretKey = v
	}
	// Port resolution order (env overrides config): APP_PORT -> PORT -> config -> default 10001
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.App.Port = p
		}
	}
	if c.App.Port == 0 {
		c.App.Port = 10001
	}
	if v := os.Getenv("TLS_ENABLED"); v != "" {
		switch v {
		case "1", "true", "TRUE", "True":
			c.App.TLSEnabled = true
		case "0", "false", "FALSE", "False":
			c.App.TLSEnabled = false
		}
	}
	c.App.TLSCertFile = getConfigValue(c.App.TLSCertFile, "TLS_CERT_FILE", "")
	c.App.TLSKeyFile = getConfigValue(c.App.TLSKeyFile, "TLS_KEY_FILE", "")
	if c.App.TLSEnabled {
		if c.App.TLSCertFile == "" {
			if _, err := os.Stat("certs/localhost.crt"); err == nil {
				c.App.TLSCertFile = "certs/localhost.crt"
			}
		}
		if c.App.TLSKeyFile == "" {
			if _, err := os.Stat("certs/localhost.key"); err == nil {
				c.App.TLSKeyFile = "certs/localhost.key"
			}
		}
		logger.GetLogger().WithFields(map[string]interface{}{"cert": c.App.TLSCertFile, "key": c.App.TLSKeyFile}).Info("TLS enabled via configuration")
	}
	if len(c.App.CORSOrigins) == 0 {
		c.App.CORSOrigins = []string{"http://localhost:4200", "https://localhost:4200"}
	}
	if c.App.SecretKey == "" {
		logger.GetLogger().Warn("App.SecretKey not set; JWT authentication will fail. Provide SECRET_KEY via environment.")
	}
}

func initServices(c *Config) {
	c.RedisClient.Host = getConfigValue(c.RedisClient.Host, "REDIS_HOST", "")
	c.RedisClient.Port = getConfigValue(c.RedisClient.Port, "REDIS_PORT", "6379")
	c.RedisClient.Username = getConfigValue(c.RedisClient.Username, "REDIS_USERNAME", "")
	c.RedisClient.Password = getConfigValue(c.RedisClient.Password, "REDIS_PASSWORD", "")

	c.Pubsub.ProjectID = getConfigValue(c.Pubsub.ProjectID, "PUBSUB_PROJECT_ID", "")
	c.Pubsub.Topic = getConfigValue(c.Pubsub.Topic, "PUBSUB_TOPIC", "publish-reports")
	c.ServiceBus.Namespace = getConfigValue(c.ServiceBus.Namespace, "SERVICEBUS_NAMESPACE", "")
	c.ServiceBus.Queue = getConfigValue(c.ServiceBus.Queue, "SERVICEBUS_QUEUE", "publish-reports")

	c.Logger.Level = getConfigValue(c.Logger.Level, "LOG_LEVEL", "")
	c.Logger.Format = getConfigValue(c.Logger.Format, "LOG_FORMAT", "json")

	c.Media.Dir = getConfigValue(c.Media.Dir, "MEDIA_DIR", filepath.Join(os.TempDir(), "crosspost-media"))
	c.Media.PublicBaseURL = strings.TrimRight(getConfigValue(c.Media.PublicBaseURL, "MEDIA_PUBLIC_BASE_URL", ""), "/")
	if c.Media.MaxSizeMB <= 0 {
		c.Media.MaxSizeMB = 256
	}
}

func initPublish(c *Config) {
	if len(c.Publish.Platforms) == 0 {
		c.Publish.Platforms = append([]string(nil), DefaultPlatforms...)
	}
	for i, p := range c.Publish.Platforms {
		c.Publish.Platforms[i] = strings.ToLower(strings.TrimSpace(p))
	}
	if c.Publish.PlatformTimeout <= 0 {
		c.Publish.PlatformTimeout = 2 * time.Minute
	}
	if c.Publish.StoreTimeout <= 0 {
		c.Publish.StoreTimeout = 5 * time.Second
	}
	if c.Publish.MaxParallel == 0 {
		c.Publish.MaxParallel = 1
	}
	if c.Publish.IdempotencyTTL <= 0 {
		c.Publish.IdempotencyTTL = 24 * time.Hour
	}
	if v := os.Getenv("PUBLISH_EMPTY_ON_STORE_FAILURE"); v == "true" || v == "1" {
		c.Publish.EmptyOnStoreFailure = true
	}
	if len(c.Webhooks) > 0 {
		normalized := make(map[string]string, len(c.Webhooks))
		for p, u := range c.Webhooks {
			normalized[strings.ToLower(p)] = u
		}
		c.Webhooks = normalized
	}
}

func initOAuth(c *Config) {
	scheme := "http"
	if c.App.TLSEnabled {
		scheme = "https"
	}
	redirect := func(platform string) string {
		return fmt.Sprintf("%s://localhost:%d/auth/%s/callback", scheme, c.App.Port, platform)
	}
	fill := func(client *OAuthClient, prefix, platform string) {
		client.ClientID = getConfigValue(client.ClientID, prefix+"_CLIENT_ID", "")
		client.ClientSecret = getConfigValue(client.ClientSecret, prefix+"_CLIENT_SECRET", "")
		client.RedirectURI = getConfigValue(client.RedirectURI, prefix+"_REDIRECT_URL", redirect(platform))
		client.BaseURL = getConfigValue(client.BaseURL, prefix+"_BASE_URL", "")
	}
	fill(&c.OAuth.Facebook, "FACEBOOK", "facebook")
	fill(&c.OAuth.Instagram, "INSTAGRAM", "instagram")
	fill(&c.OAuth.YouTube, "YOUTUBE", "youtube")
	fill(&c.OAuth.X, "X", "x")
	fill(&c.OAuth.Bluesky, "BLUESKY", "bluesky")
}

// getConfigValue gets value from env first, then config, then default
func getConfigValue(configValue, envKey, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	// Otherwise use config value if set and not a placeholder
	if configValue != "" && !strings.HasPrefix(configValue, "YOUR_") {
		return configValue
	}
	return defaultValue
}

// helpers to coerce local callback to https
func hasHTTPS(u string) bool { return strings.HasPrefix(u, "https://") }
func toHTTPSCallback(u string) string {
	if strings.HasPrefix(u, "http://") {
		return "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}
