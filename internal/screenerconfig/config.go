package screenerconfig

// Config is the screener's YAML settings file
// ⭐ SSOT: 스크리너 설정 구조는 여기서만 정의
// 주의: map 대신 slice/struct 사용 (해시 재현성)
type Config struct {
	Meta       Meta            `yaml:"meta" json:"meta"`
	Benchmarks BenchmarkConfig `yaml:"benchmarks" json:"benchmarks"`
	Universe   UniverseConfig  `yaml:"universe" json:"universe"`
	Schedules  ScheduleConfig  `yaml:"schedules" json:"schedules"`
	Ranking    RankingConfig   `yaml:"ranking" json:"ranking"`
}

type Meta struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
}

// BenchmarkConfig lists the indices refreshed by the benchmark flow.
// Default is the index relative strength is measured against.
type BenchmarkConfig struct {
	Default string   `yaml:"default" json:"default"`
	Symbols []string `yaml:"symbols" json:"symbols"`
}

type UniverseConfig struct {
	DefaultSource string         `yaml:"default_source" json:"default_source"`
	Lists         []UniverseList `yaml:"lists" json:"lists"`
}

// UniverseList is a named custom symbol list usable as a refresh source
type UniverseList struct {
	Name    string   `yaml:"name" json:"name"`
	Symbols []string `yaml:"symbols" json:"symbols"`
}

// ScheduleConfig holds cron specs (with seconds field) in the market timezone
type ScheduleConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Benchmark string `yaml:"benchmark" json:"benchmark"`
	Refresh   string `yaml:"refresh" json:"refresh"`
}

type RankingConfig struct {
	TopN           int  `yaml:"top_n" json:"top_n"`
	IncludeScoring bool `yaml:"include_scoring" json:"include_scoring"`
}

// Default returns the settings used when no YAML file is configured
func Default() *Config {
	return &Config{
		Meta: Meta{Name: "canslim_us_equity", Version: "1"},
		Benchmarks: BenchmarkConfig{
			Default: "^GSPC",
			Symbols: []string{"^GSPC", "^IXIC", "^DJI"},
		},
		Universe: UniverseConfig{DefaultSource: "sp500"},
		Schedules: ScheduleConfig{
			Enabled:   true,
			Benchmark: "0 30 16 * * 1-5", // 장 마감 30분 후
			Refresh:   "0 0 17 * * 1-5",
		},
		Ranking: RankingConfig{TopN: 20, IncludeScoring: true},
	}
}

// List returns the named custom list, or nil
func (c *Config) List(name string) []string {
	for _, l := range c.Universe.Lists {
		if l.Name == name {
			return l.Symbols
		}
	}
	return nil
}
