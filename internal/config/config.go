package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Worker   WorkerConfig
	Feeds    FeedsConfig
	Connect  ConnectConfig
	Dedup    DedupConfig
	Report   ReportConfig
	Severity SeverityConfig
	Local    LocalObserverConfig
	Keyword  QuakeKeywordConfig
	Weather  WeatherConfig
	Push     PushConfig
	DB       DatabaseConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

// FeedsConfig toggles each upstream feed family and carries its endpoints.
type FeedsConfig struct {
	FanStudioEnabled   bool
	FanStudioURL       string
	FanStudioBackupURL string

	P2PEnabled bool
	P2PURL     string

	WolfxEnabled bool
	WolfxURLs    map[string]string // connection name -> url

	GlobalQuakeEnabled bool
	GlobalQuakeURL     string

	PollEnabled  bool
	PollInterval time.Duration
	CENCListURL  string
	JMAListURL   string
}

// ConnectConfig tunes the per-endpoint connection state machines.
type ConnectConfig struct {
	ReconnectInterval time.Duration
	MaxRetries        int
	HandshakeTimeout  time.Duration
	MessageTimeout    time.Duration
	CleanupInterval   time.Duration
}

type DedupConfig struct {
	TimeWindow          time.Duration
	LocationToleranceKm float64
	MagnitudeTolerance  float64
}

type ReportConfig struct {
	CEACWAReportN         int
	JMAReportN            int
	GlobalQuakeReportN    int
	FinalAlwaysForward    bool
	IgnoreNonFinalReports bool
}

type SeverityConfig struct {
	IntensityEnabled      bool
	IntensityMinMagnitude float64
	IntensityMinIntensity float64

	ScaleEnabled      bool
	ScaleMinMagnitude float64
	ScaleMinScale     float64

	USGSEnabled      bool
	USGSMinMagnitude float64

	GQEnabled      bool
	GQMinMagnitude float64
	GQMinIntensity float64
}

type LocalObserverConfig struct {
	Enabled    bool
	Latitude   float64
	Longitude  float64
	Threshold  float64
	StrictMode bool
	Name       string
}

// QuakeKeywordConfig restricts quake pushes to place names matching one of
// the keywords. Off by default; an empty list passes everything.
type QuakeKeywordConfig struct {
	Enabled  bool
	Keywords []string
}

// WeatherConfig gates weather alarms. A keyword list overrides the colour
// and province rules entirely.
type WeatherConfig struct {
	Enabled       bool
	Keywords      []string
	Provinces     []string
	MinColorLevel string
}

type PushConfig struct {
	StalenessThreshold time.Duration
	Destinations       []string // webhook URLs
	DeliveryTimeout    time.Duration
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 2),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 50),
		},
		Feeds: FeedsConfig{
			FanStudioEnabled:   getEnvBool("FANSTUDIO_ENABLED", true),
			FanStudioURL:       getEnv("FANSTUDIO_URL", "wss://ws.fanstudio.tech/all"),
			FanStudioBackupURL: getEnv("FANSTUDIO_BACKUP_URL", "wss://ws.fanstudio.hk/all"),
			P2PEnabled:         getEnvBool("P2P_ENABLED", true),
			P2PURL:             getEnv("P2P_URL", "wss://api.p2pquake.net/v2/ws"),
			WolfxEnabled:       getEnvBool("WOLFX_ENABLED", true),
			WolfxURLs: map[string]string{
				"wolfx_jma_eew":     getEnv("WOLFX_JMA_EEW_URL", "wss://ws-api.wolfx.jp/jma_eew"),
				"wolfx_cenc_eew":    getEnv("WOLFX_CENC_EEW_URL", "wss://ws-api.wolfx.jp/cenc_eew"),
				"wolfx_cwa_eew":     getEnv("WOLFX_CWA_EEW_URL", "wss://ws-api.wolfx.jp/cwa_eew"),
				"wolfx_jma_eqlist":  getEnv("WOLFX_JMA_EQLIST_URL", "wss://ws-api.wolfx.jp/jma_eqlist"),
				"wolfx_cenc_eqlist": getEnv("WOLFX_CENC_EQLIST_URL", "wss://ws-api.wolfx.jp/cenc_eqlist"),
			},
			GlobalQuakeEnabled: getEnvBool("GLOBAL_QUAKE_ENABLED", false),
			GlobalQuakeURL:     getEnv("GLOBAL_QUAKE_URL", "wss://gqm.aloys233.top/ws"),
			PollEnabled:        getEnvBool("POLL_ENABLED", true),
			PollInterval:       getEnvDuration("POLL_INTERVAL", 5*time.Minute),
			CENCListURL:        getEnv("CENC_LIST_URL", "https://api.wolfx.jp/cenc_eqlist.json"),
			JMAListURL:         getEnv("JMA_LIST_URL", "https://api.wolfx.jp/jma_eqlist.json"),
		},
		Connect: ConnectConfig{
			ReconnectInterval: getEnvDuration("RECONNECT_INTERVAL", 10*time.Second),
			MaxRetries:        getEnvInt("MAX_RECONNECT_RETRIES", 3),
			HandshakeTimeout:  getEnvDuration("HANDSHAKE_TIMEOUT", 10*time.Second),
			MessageTimeout:    getEnvDuration("MESSAGE_TIMEOUT", 90*time.Second),
			CleanupInterval:   getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour),
		},
		Dedup: DedupConfig{
			TimeWindow:          getEnvDuration("DEDUP_TIME_WINDOW", time.Minute),
			LocationToleranceKm: getEnvFloat("DEDUP_LOCATION_TOLERANCE_KM", 20.0),
			MagnitudeTolerance:  getEnvFloat("DEDUP_MAGNITUDE_TOLERANCE", 0.5),
		},
		Report: ReportConfig{
			CEACWAReportN:         getEnvInt("CEA_CWA_REPORT_N", 1),
			JMAReportN:            getEnvInt("JMA_REPORT_N", 3),
			GlobalQuakeReportN:    getEnvInt("GLOBAL_QUAKE_REPORT_N", 5),
			FinalAlwaysForward:    getEnvBool("FINAL_REPORT_ALWAYS_FORWARD", true),
			IgnoreNonFinalReports: getEnvBool("IGNORE_NON_FINAL_REPORTS", false),
		},
		Severity: SeverityConfig{
			IntensityEnabled:      getEnvBool("INTENSITY_FILTER_ENABLED", true),
			IntensityMinMagnitude: getEnvFloat("INTENSITY_MIN_MAGNITUDE", 2.0),
			IntensityMinIntensity: getEnvFloat("INTENSITY_MIN_INTENSITY", 4.0),
			ScaleEnabled:          getEnvBool("SCALE_FILTER_ENABLED", true),
			ScaleMinMagnitude:     getEnvFloat("SCALE_MIN_MAGNITUDE", 2.0),
			ScaleMinScale:         getEnvFloat("SCALE_MIN_SCALE", 1.0),
			USGSEnabled:           getEnvBool("USGS_FILTER_ENABLED", true),
			USGSMinMagnitude:      getEnvFloat("USGS_MIN_MAGNITUDE", 4.5),
			GQEnabled:             getEnvBool("GQ_FILTER_ENABLED", true),
			GQMinMagnitude:        getEnvFloat("GQ_MIN_MAGNITUDE", 4.5),
			GQMinIntensity:        getEnvFloat("GQ_MIN_INTENSITY", 5.0),
		},
		Local: LocalObserverConfig{
			Enabled:    getEnvBool("LOCAL_OBSERVER_ENABLED", false),
			Latitude:   getEnvFloat("LOCAL_OBSERVER_LATITUDE", 0),
			Longitude:  getEnvFloat("LOCAL_OBSERVER_LONGITUDE", 0),
			Threshold:  getEnvFloat("LOCAL_OBSERVER_THRESHOLD", 2.0),
			StrictMode: getEnvBool("LOCAL_OBSERVER_STRICT", false),
			Name:       getEnv("LOCAL_OBSERVER_NAME", "本地"),
		},
		Keyword: QuakeKeywordConfig{
			Enabled:  getEnvBool("QUAKE_KEYWORD_FILTER_ENABLED", false),
			Keywords: getEnvList("QUAKE_KEYWORDS"),
		},
		Weather: WeatherConfig{
			Enabled:       getEnvBool("WEATHER_FILTER_ENABLED", false),
			Keywords:      getEnvList("WEATHER_KEYWORDS"),
			Provinces:     getEnvList("WEATHER_PROVINCES"),
			MinColorLevel: getEnv("WEATHER_MIN_COLOR_LEVEL", "白色"),
		},
		Push: PushConfig{
			StalenessThreshold: getEnvDuration("STALENESS_THRESHOLD", time.Hour),
			Destinations:       getEnvList("PUSH_DESTINATIONS"),
			DeliveryTimeout:    getEnvDuration("DELIVERY_TIMEOUT", 10*time.Second),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/disaster-warning.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Feeds.PollInterval < time.Minute {
		return fmt.Errorf("poll interval must be at least 1 minute")
	}
	if c.Connect.ReconnectInterval <= 0 {
		return fmt.Errorf("reconnect interval must be positive")
	}
	if c.Connect.MaxRetries < 1 {
		return fmt.Errorf("max reconnect retries must be at least 1")
	}
	if c.Dedup.TimeWindow <= 0 {
		return fmt.Errorf("dedup time window must be positive")
	}
	if c.Dedup.LocationToleranceKm <= 0 {
		return fmt.Errorf("dedup location tolerance must be positive")
	}
	if c.Dedup.MagnitudeTolerance <= 0 {
		return fmt.Errorf("dedup magnitude tolerance must be positive")
	}
	switch c.Weather.MinColorLevel {
	case "白色", "蓝色", "黄色", "橙色", "红色":
	default:
		return fmt.Errorf("invalid weather minimum color level: %s", c.Weather.MinColorLevel)
	}
	if c.Local.Enabled {
		if c.Local.Latitude < -90 || c.Local.Latitude > 90 {
			return fmt.Errorf("invalid local observer latitude: %f", c.Local.Latitude)
		}
		if c.Local.Longitude < -180 || c.Local.Longitude > 180 {
			return fmt.Errorf("invalid local observer longitude: %f", c.Local.Longitude)
		}
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
