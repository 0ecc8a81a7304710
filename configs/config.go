package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
}

func (r R2) Configured() bool {
	return r.AccountID != "" && r.AccessKey != "" && r.SecretKey != "" && r.BucketName != ""
}

type Twitter struct {
	Username       string
	Password       string
	UserEmail      string
	LoginTimeout   time.Duration
	ElementTimeout time.Duration
	MaxPosts       int
}

// Configured reports whether every credential needed by the challenge-aware
// login flow is present.
func (t Twitter) Configured() bool {
	return t.Username != "" && t.Password != "" && t.UserEmail != ""
}

type Bluesky struct {
	Username string
	Password string
	Service  string
}

func (b Bluesky) Configured() bool {
	return b.Username != "" && b.Password != ""
}

type Browser struct {
	Bin            string
	Headless       bool
	ScreenshotPath string
}

type Config struct {
	Port                int
	Production          bool
	ServerOrigin        string
	PostgresURI         string
	RedisURI            string
	SecretKey           string
	SessionCookieName   string
	DiscordClientID     string
	DiscordClientSecret string
	DiscordServerID     string
	DiscordValidRoleIDs []string
	Twitter             Twitter
	Bluesky             Bluesky
	Browser             Browser
	UploadDir           string
	MaxUploadSize       int
	SyncSchedule        string
	R2                  R2
}

func LoadConfig() *Config {
	return &Config{
		Port:                getEnvInt("PORT", 3000),
		Production:          getEnv("APP_ENV", "development") == "production",
		ServerOrigin:        strings.TrimRight(getEnv("SERVER_ORIGIN", "http://localhost:3000"), "/"),
		PostgresURI:         getEnv("POSTGRES_URI", ""),
		RedisURI:            getEnv("REDIS_URI", ""),
		SecretKey:           getEnv("SECRET_KEY", ""),
		SessionCookieName:   getEnv("SESSION_COOKIE_NAME", "app_session_token"),
		DiscordClientID:     getEnv("DISCORD_CLIENT_ID", ""),
		DiscordClientSecret: getEnv("DISCORD_CLIENT_SECRET", ""),
		DiscordServerID:     getEnv("DISCORD_SERVER_ID", ""),
		DiscordValidRoleIDs: splitList(getEnv("DISCORD_VALID_ROLE_IDS", "")),
		Twitter: Twitter{
			Username:       getEnv("TWITTER_USERNAME", ""),
			Password:       getEnv("TWITTER_PASSWORD", ""),
			UserEmail:      getEnv("TWITTER_USER_EMAIL", ""),
			LoginTimeout:   getEnvDuration("TWITTER_LOGIN_TIMEOUT", 10*time.Second),
			ElementTimeout: getEnvDuration("TWITTER_ELEMENT_TIMEOUT", 30*time.Second),
			MaxPosts:       getEnvInt("TWITTER_MAX_POSTS", 5),
		},
		Bluesky: Bluesky{
			Username: getEnv("BLUESKY_USERNAME", ""),
			Password: getEnv("BLUESKY_PASSWORD", ""),
			Service:  getEnv("BLUESKY_SERVICE", "https://bsky.social"),
		},
		Browser: Browser{
			Bin:            getEnv("BROWSER_BIN", ""),
			Headless:       getEnvBool("PUPPETEER_HEADLESS", false),
			ScreenshotPath: getEnv("PUPPETEER_SCREENSHOT_PATH", ""),
		},
		UploadDir:     getEnv("UPLOAD_DIR", filepath.Join(os.TempDir(), "crosspost")),
		MaxUploadSize: getEnvInt("MAX_UPLOAD_SIZE", 100_000_000),
		SyncSchedule:  getEnv("SYNC_SCHEDULE", "@every 00h05m00s"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
		},
	}
}

// Validate returns an error naming every required key that is missing.
func (c *Config) Validate() error {
	var missing []string
	required := map[string]string{
		"POSTGRES_URI":          c.PostgresURI,
		"SECRET_KEY":            c.SecretKey,
		"DISCORD_CLIENT_ID":     c.DiscordClientID,
		"DISCORD_CLIENT_SECRET": c.DiscordClientSecret,
		"DISCORD_SERVER_ID":     c.DiscordServerID,
	}
	for _, key := range []string{"POSTGRES_URI", "SECRET_KEY", "DISCORD_CLIENT_ID", "DISCORD_CLIENT_SECRET", "DISCORD_SERVER_ID"} {
		if required[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(c.DiscordValidRoleIDs) == 0 {
		missing = append(missing, "DISCORD_VALID_ROLE_IDS")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.Twitter.MaxPosts <= 0 {
		return errors.New("TWITTER_MAX_POSTS must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
