// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Scrape   ScrapeConfig   `mapstructure:"scrape"`
	Images   ImageConfig    `mapstructure:"images"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Rewrite  RewriteConfig  `mapstructure:"rewrite"`
	Notion   NotionConfig   `mapstructure:"notion"`
	Airtable AirtableConfig `mapstructure:"airtable"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// WorkerConfig governs the job execution pool.
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	QueueDepth  int `mapstructure:"queue_depth"`
}

// ScrapeConfig governs link discovery and article extraction.
type ScrapeConfig struct {
	UserAgent        string `mapstructure:"user_agent"`
	SearchTimeoutSec int    `mapstructure:"search_timeout_seconds"`
	PageTimeoutSec   int    `mapstructure:"page_timeout_seconds"`
	LinkProbeBudget  int    `mapstructure:"link_probe_budget"`
	ArticleTarget    int    `mapstructure:"article_target"`
	MinBodyRunes     int    `mapstructure:"min_body_runes"`
	MaxImagesPerPage int    `mapstructure:"max_images_per_page"`
}

// ImageConfig holds validator/encoder thresholds and pipeline budgets.
type ImageConfig struct {
	MinBytes       int     `mapstructure:"min_bytes"`
	MinWidth       int     `mapstructure:"min_width"`
	MinHeight      int     `mapstructure:"min_height"`
	MinAspectRatio float64 `mapstructure:"min_aspect_ratio"`
	MaxAspectRatio float64 `mapstructure:"max_aspect_ratio"`
	MaxSidePx      int     `mapstructure:"max_side_px"`
	JPEGQuality    int     `mapstructure:"jpeg_quality"`

	DownloadTimeoutSec int `mapstructure:"download_timeout_seconds"`
	CandidateBudget    int `mapstructure:"candidate_budget"`
	AcceptCap          int `mapstructure:"accept_cap"`
	QuickBatch         int `mapstructure:"quick_batch"`
	PreviewCount       int `mapstructure:"preview_count"`
	ChunkSize          int `mapstructure:"chunk_size"`
}

// UploadConfig controls the image host fallback chain.
type UploadConfig struct {
	TelegraphURL  string `mapstructure:"telegraph_url"`
	CatboxURL     string `mapstructure:"catbox_url"`
	TimeoutSec    int    `mapstructure:"timeout_seconds"`
	CooldownMs    int    `mapstructure:"cooldown_ms"`
	VerifyPrimary bool   `mapstructure:"verify_primary"`
}

// RewriteConfig holds the optional rewrite-service credential. A missing
// or malformed key silently degrades the merge step to the local fallback.
type RewriteConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	Model        string `mapstructure:"model"`
	TimeoutSec   int    `mapstructure:"timeout_seconds"`
}

// NotionConfig holds the persistence-service credentials. These are
// required: a job fails fast before any scraping when either is empty.
type NotionConfig struct {
	Token      string `mapstructure:"token"`
	DatabaseID string `mapstructure:"database_id"`
}

// AirtableConfig configures the optional secondary archive. All three
// fields must be set for the archive to be attempted.
type AirtableConfig struct {
	Token     string `mapstructure:"token"`
	BaseID    string `mapstructure:"base_id"`
	TableName string `mapstructure:"table_name"`
}

// StorageConfig selects and configures the job record store.
type StorageConfig struct {
	Provider string `mapstructure:"provider"`
	Dir      string `mapstructure:"dir"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("REPORTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.queue_depth", 64)

	v.SetDefault("scrape.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("scrape.search_timeout_seconds", 10)
	v.SetDefault("scrape.page_timeout_seconds", 8)
	v.SetDefault("scrape.link_probe_budget", 20)
	v.SetDefault("scrape.article_target", 8)
	v.SetDefault("scrape.min_body_runes", 150)
	v.SetDefault("scrape.max_images_per_page", 20)

	v.SetDefault("images.min_bytes", 1000)
	v.SetDefault("images.min_width", 400)
	v.SetDefault("images.min_height", 300)
	v.SetDefault("images.min_aspect_ratio", 0.3)
	v.SetDefault("images.max_aspect_ratio", 3.0)
	v.SetDefault("images.max_side_px", 1600)
	v.SetDefault("images.jpeg_quality", 80)
	v.SetDefault("images.download_timeout_seconds", 25)
	v.SetDefault("images.candidate_budget", 80)
	v.SetDefault("images.accept_cap", 50)
	v.SetDefault("images.quick_batch", 10)
	v.SetDefault("images.preview_count", 5)
	v.SetDefault("images.chunk_size", 8)

	v.SetDefault("upload.telegraph_url", "https://telegra.ph/upload")
	v.SetDefault("upload.catbox_url", "https://catbox.moe/user/api.php")
	v.SetDefault("upload.timeout_seconds", 30)
	v.SetDefault("upload.cooldown_ms", 1000)
	v.SetDefault("upload.verify_primary", true)

	// Credential keys default to empty so AutomaticEnv can resolve them;
	// Viper only consults the environment for keys it already knows.
	v.SetDefault("rewrite.gemini_api_key", "")
	v.SetDefault("rewrite.model", "gemini-2.0-flash")
	v.SetDefault("rewrite.timeout_seconds", 120)

	v.SetDefault("notion.token", "")
	v.SetDefault("notion.database_id", "")

	v.SetDefault("airtable.token", "")
	v.SetDefault("airtable.base_id", "")
	v.SetDefault("airtable.table_name", "")

	v.SetDefault("storage.provider", "badger")
	v.SetDefault("storage.dir", "data/jobs")

	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. Credentials are
// deliberately not checked here: their absence is a per-job condition
// surfaced by the state machine, not a startup failure.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be > 0")
	}
	if c.Scrape.PageTimeoutSec <= 0 || c.Scrape.SearchTimeoutSec <= 0 {
		return fmt.Errorf("scrape timeouts must be > 0")
	}
	if c.Scrape.LinkProbeBudget <= 0 || c.Scrape.ArticleTarget <= 0 {
		return fmt.Errorf("scrape budgets must be > 0")
	}
	if c.Images.MinWidth <= 0 || c.Images.MinHeight <= 0 {
		return fmt.Errorf("images minimum dimensions must be > 0")
	}
	if c.Images.MinAspectRatio <= 0 || c.Images.MaxAspectRatio <= c.Images.MinAspectRatio {
		return fmt.Errorf("images aspect ratio band is invalid")
	}
	if c.Images.MaxSidePx <= 0 {
		return fmt.Errorf("images.max_side_px must be > 0")
	}
	if c.Images.JPEGQuality <= 0 || c.Images.JPEGQuality > 100 {
		return fmt.Errorf("images.jpeg_quality must be in (0,100]")
	}
	if c.Images.ChunkSize <= 0 || c.Images.AcceptCap <= 0 || c.Images.CandidateBudget <= 0 {
		return fmt.Errorf("images pipeline budgets must be > 0")
	}
	if c.Storage.Provider != "badger" && c.Storage.Provider != "memory" {
		return fmt.Errorf("unknown storage provider: %s", c.Storage.Provider)
	}
	return nil
}

// HasNotionCredentials reports whether the required persistence
// credentials are present.
func (c Config) HasNotionCredentials() bool {
	return c.Notion.Token != "" && c.Notion.DatabaseID != ""
}

// HasRewriteKey reports whether a superficially well-formed Gemini key is
// configured. Google API keys carry a fixed prefix.
func (c Config) HasRewriteKey() bool {
	return strings.HasPrefix(c.Rewrite.GeminiAPIKey, "AIza")
}

// HasAirtable reports whether the secondary archive is fully configured.
func (c Config) HasAirtable() bool {
	return c.Airtable.Token != "" && c.Airtable.BaseID != "" && c.Airtable.TableName != ""
}

// SearchTimeout returns the per-query search fetch timeout.
func (c Config) SearchTimeout() time.Duration {
	return time.Duration(c.Scrape.SearchTimeoutSec) * time.Second
}

// PageTimeout returns the per-article fetch timeout.
func (c Config) PageTimeout() time.Duration {
	return time.Duration(c.Scrape.PageTimeoutSec) * time.Second
}

// DownloadTimeout returns the per-image download timeout.
func (c Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Images.DownloadTimeoutSec) * time.Second
}

// UploadTimeout returns the per-backend upload timeout.
func (c Config) UploadTimeout() time.Duration {
	return time.Duration(c.Upload.TimeoutSec) * time.Second
}

// UploadCooldown returns the pause taken after a failed upload backend.
func (c Config) UploadCooldown() time.Duration {
	return time.Duration(c.Upload.CooldownMs) * time.Millisecond
}

// RewriteTimeout returns the rewrite-service call timeout.
func (c Config) RewriteTimeout() time.Duration {
	return time.Duration(c.Rewrite.TimeoutSec) * time.Second
}
