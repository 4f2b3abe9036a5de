package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 项目配置结构体
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Sources     []SourceConfig    `yaml:"sources"`
	Search      SearchConfig      `yaml:"search"`
	Filter      FilterConfig      `yaml:"filter"`
	Extraction  ExtractionConfig  `yaml:"extraction"`
	Synthesis   SynthesisConfig   `yaml:"synthesis"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Output      OutputConfig      `yaml:"output"`
	Notion      NotionConfig      `yaml:"notion"`
	DB          DBConfig          `yaml:"db"`
	Log         LogConfig         `yaml:"log"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
}

// LLMConfig LLM 相关配置
type LLMConfig struct {
	BaseURL    string   `yaml:"base_url"`
	APIKey     string   `yaml:"api_key"`
	Model      string   `yaml:"model"`
	Timeout    Duration `yaml:"timeout"`
	MaxRetries int      `yaml:"max_retries"`
	BaseDelay  Duration `yaml:"base_delay"`
}

// SourceConfig 单个采集源描述
type SourceConfig struct {
	Name          string            `yaml:"name"`
	Strategy      string            `yaml:"strategy"` // html, rss, searxng, tavily
	URLs          []string          `yaml:"urls"`
	Query         string            `yaml:"query"`
	Selectors     map[string]string `yaml:"selectors"`
	MaxPosts      int               `yaml:"max_posts"`
	Timeout       Duration          `yaml:"timeout"`
	RatePerSecond float64           `yaml:"rate_per_second"`
	Options       map[string]string `yaml:"options"`
	Disabled      bool              `yaml:"disabled"`
}

// SearchConfig 搜索后端配置，供 searxng/tavily 采集策略使用
type SearchConfig struct {
	Tavily  TavilyConfig  `yaml:"tavily"`
	SearXNG SearXNGConfig `yaml:"searxng"`
}

// TavilyConfig Tavily 配置
type TavilyConfig struct {
	APIKey string `yaml:"api_key"`
}

// SearXNGConfig SearXNG 配置
type SearXNGConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"`
}

// FilterConfig 相关性过滤配置
type FilterConfig struct {
	Keywords     []string `yaml:"keywords"`
	Exclude      []string `yaml:"exclude"`
	MinBodyChars int      `yaml:"min_body_chars"`
	Classifier   bool     `yaml:"classifier"`
}

// ExtractionConfig 趋势抽取配置
type ExtractionConfig struct {
	BatchSize      int     `yaml:"batch_size"`
	MaxBatchChars  int     `yaml:"max_batch_chars"`
	MaxPostChars   int     `yaml:"max_post_chars"`
	DedupThreshold float64 `yaml:"dedup_threshold"`
	KeywordOverlap float64 `yaml:"keyword_overlap"`
}

// SynthesisConfig 综合分析配置
type SynthesisConfig struct {
	TopPriorities int `yaml:"top_priorities"`
}

// PipelineConfig 编排器超时与冷却配置
type PipelineConfig struct {
	Cooldown         Duration `yaml:"cooldown"`
	RunTimeout       Duration `yaml:"run_timeout"`
	CollectTimeout   Duration `yaml:"collect_timeout"`
	FilterTimeout    Duration `yaml:"filter_timeout"`
	ExtractTimeout   Duration `yaml:"extract_timeout"`
	SynthesisTimeout Duration `yaml:"synthesis_timeout"`
	PersistTimeout   Duration `yaml:"persist_timeout"`
	PublishTimeout   Duration `yaml:"publish_timeout"`
}

// OutputConfig 产物存储配置
type OutputConfig struct {
	Store        string `yaml:"store"` // memory, file, postgres
	Dir          string `yaml:"dir"`
	SummaryWidth int    `yaml:"summary_width"`
}

// NotionConfig Notion 推送配置
type NotionConfig struct {
	Token      string `yaml:"token"`
	DatabaseID string `yaml:"database_id"`
	BaseURL    string `yaml:"base_url"`
}

// Enabled 凭据齐全时才推送
func (n NotionConfig) Enabled() bool {
	return n.Token != "" && n.DatabaseID != ""
}

// DBConfig 数据库相关配置
type DBConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// ConnString 优先使用 DSN
func (c DBConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig 并发控制配置
type ConcurrencyConfig struct {
	QPS     int `yaml:"qps"`
	RPM     int `yaml:"rpm"`
	Sources int `yaml:"sources"`
}

// ScheduleConfig 每日定时配置
type ScheduleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Time     string `yaml:"time"` // HH:MM
	Timezone string `yaml:"timezone"`
}

// Clock 解析 HH:MM
func (s ScheduleConfig) Clock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", s.Time)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid schedule time %q: %w", s.Time, err)
	}
	return t.Hour(), t.Minute(), nil
}

// Location 空值按 UTC 处理
func (s ScheduleConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

// Duration 以 "90s"、"1h" 形式书写的时长
type Duration time.Duration

// UnmarshalYAML 支持字符串和整数秒两种写法
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	s := strings.TrimSpace(value.Value)
	if secs, err := strconv.Atoi(s); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML 输出字符串形式
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std 转换为 time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DefaultKeywords K-beauty 相关性关键词
var DefaultKeywords = []string{
	"korean", "k-beauty", "kbeauty", "skincare", "beauty",
	"cosmetics", "makeup", "serum", "essence", "toner",
	"moisturizer", "cleanser", "mask", "cream", "sunscreen",
	"korean beauty", "korean skincare", "korean makeup", "korean cosmetics",
	"뷰티", "화장품", "스킨케어",
}

// Default 返回带默认值的配置
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-4o-mini",
			Timeout:    Duration(60 * time.Second),
			MaxRetries: 3,
			BaseDelay:  Duration(2 * time.Second),
		},
		Sources: []SourceConfig{
			{
				Name:     "naver_beauty",
				Strategy: "html",
				URLs: []string{
					"https://search.naver.com/search.naver?where=view&query=K뷰티+트렌드",
					"https://search.naver.com/search.naver?where=view&query=한국화장품+리뷰",
					"https://search.naver.com/search.naver?where=view&query=K뷰티+신상품",
				},
				Selectors: map[string]string{
					"posts":   "li.bx, div.total_wrap, div.thumb",
					"title":   "a.title_link, h3.title, a.link_tit",
					"content": "div.dsc, div.content, p.content",
					"date":    "span.date, time, span.time",
					"author":  "span.author, a.author, span.writer",
				},
				MaxPosts:      20,
				Timeout:       Duration(30 * time.Second),
				RatePerSecond: 1,
			},
		},
		Filter: FilterConfig{
			Keywords:     DefaultKeywords,
			MinBodyChars: 20,
		},
		Extraction: ExtractionConfig{
			BatchSize:      10,
			MaxBatchChars:  12000,
			MaxPostChars:   2000,
			DedupThreshold: 0.8,
			KeywordOverlap: 0.6,
		},
		Synthesis: SynthesisConfig{TopPriorities: 5},
		Pipeline: PipelineConfig{
			Cooldown:         Duration(time.Hour),
			RunTimeout:       Duration(15 * time.Minute),
			CollectTimeout:   Duration(3 * time.Minute),
			FilterTimeout:    Duration(2 * time.Minute),
			ExtractTimeout:   Duration(6 * time.Minute),
			SynthesisTimeout: Duration(3 * time.Minute),
			PersistTimeout:   Duration(30 * time.Second),
			PublishTimeout:   Duration(30 * time.Second),
		},
		Output: OutputConfig{
			Store:        "file",
			Dir:          "output",
			SummaryWidth: 200,
		},
		Notion:      NotionConfig{BaseURL: "https://api.notion.com/v1"},
		Log:         LogConfig{Level: "info"},
		Concurrency: ConcurrencyConfig{QPS: 2, RPM: 60, Sources: 4},
		Schedule:    ScheduleConfig{Time: "09:00", Timezone: "UTC"},
	}
}

// LoadConfig 从指定路径加载配置，未出现的字段保留默认值
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv 用环境变量覆盖凭据和路径
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("OPENAI_API_KEY", &c.LLM.APIKey)
	set("LLM_BASE_URL", &c.LLM.BaseURL)
	set("ANALYSIS_MODEL", &c.LLM.Model)
	set("NOTION_TOKEN", &c.Notion.Token)
	set("NOTION_DATABASE_ID", &c.Notion.DatabaseID)
	set("OUTPUT_DIR", &c.Output.Dir)
	set("DATABASE_DSN", &c.DB.DSN)
	set("LOG_LEVEL", &c.Log.Level)
	set("TAVILY_API_KEY", &c.Search.Tavily.APIKey)
}

// Validate 检查结构性错误，凭据缺失留给具体组件处理
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("sources[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
		if s.Strategy == "" {
			return fmt.Errorf("source %q: strategy is required", s.Name)
		}
	}

	if c.Extraction.BatchSize <= 0 {
		return fmt.Errorf("extraction.batch_size must be positive")
	}
	if t := c.Extraction.DedupThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("extraction.dedup_threshold must be in (0, 1], got %v", t)
	}
	if t := c.Extraction.KeywordOverlap; t <= 0 || t > 1 {
		return fmt.Errorf("extraction.keyword_overlap must be in (0, 1], got %v", t)
	}
	if c.Pipeline.Cooldown < 0 {
		return fmt.Errorf("pipeline.cooldown must not be negative")
	}

	switch strings.ToLower(c.Output.Store) {
	case "memory", "file", "postgres":
	default:
		return fmt.Errorf("unknown output.store: %s", c.Output.Store)
	}

	if c.Schedule.Enabled {
		if _, _, err := c.Schedule.Clock(); err != nil {
			return err
		}
		if _, err := c.Schedule.Location(); err != nil {
			return fmt.Errorf("invalid schedule timezone: %w", err)
		}
	}
	return nil
}
