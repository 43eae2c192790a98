package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"4242"`

	JWTSecret   string   `envconfig:"JWT_SECRET" required:"true"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`

	// Completion-Service (OpenAI-kompatibel)
	OpenAIAPIKey     string        `envconfig:"OPENAI_API_KEY"`
	OpenAIModel      string        `envconfig:"OPENAI_MODEL" default:"gpt-4o"`
	OpenAIBaseURL    string        `envconfig:"OPENAI_BASE_URL"`
	CompletionWindow time.Duration `envconfig:"AI_TIMEOUT" default:"30s"`

	// Quellen-Konfiguration
	EnabledSources       string `envconfig:"ENABLED_SOURCES" default:"producthunt"`
	ProductHuntToken     string `envconfig:"PRODUCT_HUNT_TOKEN"`
	ProductHuntBaseURL   string `envconfig:"PRODUCT_HUNT_BASE_URL" default:"https://api.producthunt.com/v2/api/graphql"`
	ProductHuntDaysBack  int    `envconfig:"PRODUCT_HUNT_DAYS_BACK" default:"1"`
	RSSFeeds             string `envconfig:"RSS_FEEDS"` // "Name|https://feed-url" kommagetrennt
	IngestSnapshotBucket string `envconfig:"INGEST_SNAPSHOT_BUCKET"`

	CronSchedule        string `envconfig:"CRON_SCHEDULE" default:"0 5 * * *"`
	PublishCronSchedule string `envconfig:"PUBLISH_CRON_SCHEDULE"`

	// Optionaler S3-Speicher für Ingest-Snapshots und Backups
	S3Key    string `envconfig:"S3_KEY"`
	S3Secret string `envconfig:"S3_SECRET"`
	S3URL    string `envconfig:"S3_URL"`
	S3Region string `envconfig:"S3_REGION"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// S3Enabled meldet, ob die optionale S3-Anbindung konfiguriert ist.
func (c *Config) S3Enabled() bool {
	return c.S3URL != "" && c.S3Key != "" && c.S3Secret != ""
}

// RSSFeed ist ein benannter Feed aus RSS_FEEDS.
type RSSFeed struct {
	Name string
	URL  string
}

// ParseRSSFeeds zerlegt RSS_FEEDS ("Name|URL,Name|URL") in einzelne Feeds.
// Einträge ohne URL werden übersprungen.
func (c *Config) ParseRSSFeeds() []RSSFeed {
	var feeds []RSSFeed
	for _, entry := range strings.Split(c.RSSFeeds, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, url, found := strings.Cut(entry, "|")
		if !found || strings.TrimSpace(url) == "" {
			continue
		}
		feeds = append(feeds, RSSFeed{Name: strings.TrimSpace(name), URL: strings.TrimSpace(url)})
	}
	return feeds
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
