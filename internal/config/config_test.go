package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Dedup.TimeWindow != time.Minute {
		t.Errorf("Dedup.TimeWindow = %v, want 1m", cfg.Dedup.TimeWindow)
	}
	if cfg.Report.JMAReportN != 3 {
		t.Errorf("Report.JMAReportN = %d, want 3", cfg.Report.JMAReportN)
	}
	if !cfg.Report.FinalAlwaysForward {
		t.Error("Report.FinalAlwaysForward should default to true")
	}
	if len(cfg.Feeds.WolfxURLs) != 5 {
		t.Errorf("len(Feeds.WolfxURLs) = %d, want 5", len(cfg.Feeds.WolfxURLs))
	}
	if cfg.Feeds.GlobalQuakeEnabled {
		t.Error("Feeds.GlobalQuakeEnabled should default to false")
	}
	if cfg.Weather.Enabled || cfg.Keyword.Enabled {
		t.Error("content filters should default to off")
	}
	if cfg.Weather.MinColorLevel != "白色" {
		t.Errorf("Weather.MinColorLevel = %q, want 白色", cfg.Weather.MinColorLevel)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DEDUP_TIME_WINDOW", "2m")
	t.Setenv("WEATHER_KEYWORDS", "台风, 暴雨 ,红色预警")
	t.Setenv("WEATHER_FILTER_ENABLED", "true")
	t.Setenv("WEATHER_PROVINCES", "四川,重庆")
	t.Setenv("QUAKE_KEYWORD_FILTER_ENABLED", "true")
	t.Setenv("QUAKE_KEYWORDS", "四川")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Dedup.TimeWindow != 2*time.Minute {
		t.Errorf("Dedup.TimeWindow = %v, want 2m", cfg.Dedup.TimeWindow)
	}
	want := []string{"台风", "暴雨", "红色预警"}
	if len(cfg.Weather.Keywords) != len(want) {
		t.Fatalf("Weather.Keywords = %v, want %v", cfg.Weather.Keywords, want)
	}
	for i, kw := range want {
		if cfg.Weather.Keywords[i] != kw {
			t.Errorf("Weather.Keywords[%d] = %q, want %q", i, cfg.Weather.Keywords[i], kw)
		}
	}
	if !cfg.Weather.Enabled {
		t.Error("Weather.Enabled should follow WEATHER_FILTER_ENABLED")
	}
	if len(cfg.Weather.Provinces) != 2 {
		t.Errorf("Weather.Provinces = %v, want two entries", cfg.Weather.Provinces)
	}
	if !cfg.Keyword.Enabled || len(cfg.Keyword.Keywords) != 1 {
		t.Errorf("Keyword config = %+v, want enabled with one keyword", cfg.Keyword)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad port", "SERVER_PORT", "70000"},
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"poll too frequent", "POLL_INTERVAL", "10s"},
		{"zero dedup window", "DEDUP_TIME_WINDOW", "0s"},
		{"unknown weather color", "WEATHER_MIN_COLOR_LEVEL", "紫色"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%s should fail", tt.key, tt.value)
			}
		})
	}
}

func TestValidateLocalObserverBounds(t *testing.T) {
	t.Setenv("LOCAL_OBSERVER_ENABLED", "true")
	t.Setenv("LOCAL_OBSERVER_LATITUDE", "95.0")

	if _, err := Load(); err == nil {
		t.Error("Load() with out-of-range observer latitude should fail")
	}
}
