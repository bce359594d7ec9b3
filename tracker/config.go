package tracker

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/gagstock/horosafe"
	"github.com/hazyhaar/gagstock/stock"
	"github.com/hazyhaar/gagstock/weather"
)

// Config is the top-level service configuration.
type Config struct {
	Listen    string        `yaml:"listen"`
	StaticDir string        `yaml:"static_dir"`
	Stock     StockConfig   `yaml:"stock"`
	Scrape    ScrapeConfig  `yaml:"scrape"`
	Browser   BrowserConfig `yaml:"browser"`
	Weather   WeatherConfig `yaml:"weather"`
	Sinks     []SinkConfig  `yaml:"sinks"`
}

// StockConfig controls when the stock page is scraped.
type StockConfig struct {
	URL      string        `yaml:"url"`
	Every    time.Duration `yaml:"every"`
	Offset   time.Duration `yaml:"offset"`
	Cooldown time.Duration `yaml:"cooldown"`
	Gate     GateConfig    `yaml:"gate"`
}

// GateConfig mirrors stock.Gate.
type GateConfig struct {
	StepMinutes int `yaml:"step_minutes"`
	FromSecond  int `yaml:"from_second"`
	ToSecond    int `yaml:"to_second"`
}

// ScrapeConfig mirrors stock.ScrapeConfig.
type ScrapeConfig struct {
	Attempts     int           `yaml:"attempts"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Settle       time.Duration `yaml:"settle"`
}

// BrowserConfig controls Chrome.
type BrowserConfig struct {
	Remote           string   `yaml:"remote"`
	Bin              string   `yaml:"bin"`
	NoSandbox        bool     `yaml:"no_sandbox"`
	Stealth          *bool    `yaml:"stealth"`
	UserAgent        string   `yaml:"user_agent"`
	Width            int      `yaml:"width"`
	Height           int      `yaml:"height"`
	ResourceBlocking []string `yaml:"resource_blocking"`
}

// WeatherConfig controls the weather poller.
type WeatherConfig struct {
	URL        string        `yaml:"url"`
	Interval   time.Duration `yaml:"interval"`
	MinSpacing time.Duration `yaml:"min_spacing"`
	Timeout    time.Duration `yaml:"timeout"`
	UserAgent  string        `yaml:"user_agent"`
}

// SinkConfig defines an extra output backend.
type SinkConfig struct {
	Type    string `yaml:"type"` // stdout | webhook
	URL     string `yaml:"url"`  // for webhook
	Retries int    `yaml:"retries"`
	// Rate caps webhook requests per second; burst is twice the rate.
	Rate float64 `yaml:"rate"`

	// AllowPrivate admits webhook targets on loopback or private networks.
	AllowPrivate bool `yaml:"allow_private"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfigFile reads a YAML configuration file, applies defaults and
// then environment overrides. An empty path yields the defaults plus
// environment.
func LoadConfigFile(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("tracker: read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("tracker: parse config: %w", err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.Listen = ":" + port
	}
	c.Stock.URL = env("STOCK_URL", c.Stock.URL)
	c.Weather.URL = env("WEATHER_URL", c.Weather.URL)
	c.Browser.Bin = env("CHROME_BIN", c.Browser.Bin)
	c.Browser.Remote = env("CHROME_REMOTE", c.Browser.Remote)
	if v, err := strconv.ParseBool(os.Getenv("CHROME_NO_SANDBOX")); err == nil {
		c.Browser.NoSandbox = v
	}
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":3000"
	}
	if c.Stock.URL == "" {
		c.Stock.URL = stock.DefaultURL
	}
	if c.Stock.Every <= 0 {
		c.Stock.Every = 5 * time.Minute
	}
	if c.Stock.Offset < 0 {
		c.Stock.Offset = 0
	} else if c.Stock.Offset == 0 {
		c.Stock.Offset = 30 * time.Second
	}
	if c.Stock.Cooldown <= 0 {
		c.Stock.Cooldown = 60 * time.Second
	}
	if c.Stock.Gate == (GateConfig{}) {
		g := stock.DefaultGate()
		c.Stock.Gate = GateConfig{StepMinutes: g.StepMinutes, FromSecond: g.FromSecond, ToSecond: g.ToSecond}
	}
	if c.Scrape.Attempts <= 0 {
		c.Scrape.Attempts = 3
	}
	if c.Scrape.RetryDelay <= 0 {
		c.Scrape.RetryDelay = 5 * time.Second
	}
	if c.Scrape.Timeout <= 0 {
		c.Scrape.Timeout = 30 * time.Second
	}
	if c.Scrape.PollInterval <= 0 {
		c.Scrape.PollInterval = time.Second
	}
	if c.Scrape.Settle <= 0 {
		c.Scrape.Settle = time.Second
	}
	if c.Browser.Width <= 0 {
		c.Browser.Width = 1920
	}
	if c.Browser.Height <= 0 {
		c.Browser.Height = 1080
	}
	if c.Weather.URL == "" {
		c.Weather.URL = weather.DefaultURL
	}
	if c.Weather.Interval <= 0 {
		c.Weather.Interval = 10 * time.Second
	}
	if c.Weather.MinSpacing <= 0 {
		c.Weather.MinSpacing = c.Weather.Interval
	}
	if c.Weather.Timeout <= 0 {
		c.Weather.Timeout = 5 * time.Second
	}
}

// ScheduleSpec returns the cron spec of the stock trigger.
func (c *Config) ScheduleSpec() (string, error) {
	return ScheduleSpec(c.Stock.Every, c.Stock.Offset)
}

// Validate rejects configurations the scheduler cannot honour.
func (c *Config) Validate() error {
	g := c.Stock.Gate
	if g.FromSecond < 0 || g.ToSecond > 59 || g.FromSecond > g.ToSecond {
		return fmt.Errorf("tracker: gate seconds must satisfy 0 <= from <= to <= 59, got %d..%d", g.FromSecond, g.ToSecond)
	}
	if _, err := c.ScheduleSpec(); err != nil {
		return fmt.Errorf("tracker: stock: %w", err)
	}
	if err := horosafe.ValidateURL(c.Stock.URL, true); err != nil {
		return fmt.Errorf("tracker: stock.url: %w", err)
	}
	if err := horosafe.ValidateURL(c.Weather.URL, true); err != nil {
		return fmt.Errorf("tracker: weather.url: %w", err)
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("tracker: sinks[%d]: webhook needs a url", i)
			}
			if err := horosafe.ValidateURL(s.URL, s.AllowPrivate); err != nil {
				return fmt.Errorf("tracker: sinks[%d]: %w", i, err)
			}
		default:
			return fmt.Errorf("tracker: sinks[%d]: unknown type %q", i, s.Type)
		}
	}
	return nil
}

// GateSpec converts the YAML gate into a stock.Gate.
func (c *Config) GateSpec() stock.Gate {
	return stock.Gate{
		StepMinutes: c.Stock.Gate.StepMinutes,
		FromSecond:  c.Stock.Gate.FromSecond,
		ToSecond:    c.Stock.Gate.ToSecond,
	}
}

// BrowserSpec returns the browser settings for stock.NewBrowserScraper.
func (c *Config) BrowserSpec() stock.BrowserConfig {
	return stock.BrowserConfig{
		RemoteURL:        c.Browser.Remote,
		Bin:              c.Browser.Bin,
		NoSandbox:        c.Browser.NoSandbox,
		DisableStealth:   c.Browser.Stealth != nil && !*c.Browser.Stealth,
		UserAgent:        c.Browser.UserAgent,
		Width:            c.Browser.Width,
		Height:           c.Browser.Height,
		ResourceBlocking: c.Browser.ResourceBlocking,
	}
}

// ScrapeSpec returns the load sequence settings for stock.NewBrowserScraper.
func (c *Config) ScrapeSpec() stock.ScrapeConfig {
	return stock.ScrapeConfig{
		Attempts:     c.Scrape.Attempts,
		RetryDelay:   c.Scrape.RetryDelay,
		Timeout:      c.Scrape.Timeout,
		PollInterval: c.Scrape.PollInterval,
		Settle:       c.Scrape.Settle,
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
