package handler

import (
	"log/slog"
	"testing"

	"github.com/Kx501/go-disaster-warning/internal/models"
)

func TestWolfxJMAEEWHandler(t *testing.T) {
	h := NewWolfxJMAEEWHandler(slog.Default())

	raw := []byte(`{"type":"jma_eew","EventID":"20260512142801","Serial":3,
		"OriginTime":"2026/05/12 14:28:01","Hypocenter":"石川県能登地方",
		"Latitude":37.5,"Longitude":137.2,"Depth":12,"Magunitude":6.2,
		"MaxIntensity":"5強","ReportNum":3,"isFinal":false,"isCancel":false}`)

	ev, err := h.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ev == nil {
		t.Fatal("Parse() returned no event")
	}
	if ev.SourceID != "jma_wolfx" {
		t.Errorf("SourceID = %q", ev.SourceID)
	}
	if ev.Magnitude == nil || *ev.Magnitude != 6.2 {
		t.Errorf("misspelled Magunitude key should still parse, got %v", ev.Magnitude)
	}
	if ev.Scale == nil || *ev.Scale != 5.5 {
		t.Errorf("Scale = %v, want 5.5 for 5強", ev.Scale)
	}
	if ev.PlaceName != "石川県能登地方" {
		t.Errorf("PlaceName = %q", ev.PlaceName)
	}
	if ev.SequenceNumber != 3 {
		t.Errorf("SequenceNumber = %d, want 3", ev.SequenceNumber)
	}
}

func TestWolfxEEWHandlerIgnoresHeartbeat(t *testing.T) {
	h := NewWolfxJMAEEWHandler(slog.Default())

	ev, err := h.Parse([]byte(`{"type":"heartbeat","ver":"1.0","id":12,"timestamp":1715500000}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ev != nil {
		t.Error("heartbeat frames must be skipped")
	}
}

func TestWolfxCENCEEWIntensity(t *testing.T) {
	h := NewWolfxCENCEEWHandler(slog.Default())

	raw := []byte(`{"type":"cenc_eew","ID":9001,"EventID":"CENC9001",
		"OriginTime":"2026-05-12 14:28:01","HypoCenter":"四川汶川",
		"Latitude":30.12,"Longitude":103.85,"Depth":14,"Magnitude":5.6,
		"MaxIntensity":7.2,"ReportNum":1,"isFinal":false}`)

	ev, err := h.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ev == nil {
		t.Fatal("Parse() returned no event")
	}
	if ev.Intensity == nil || *ev.Intensity != 7.2 {
		t.Errorf("Intensity = %v, want 7.2", ev.Intensity)
	}
	if ev.Scale != nil {
		t.Error("CENC reports continuous intensity, not a grade")
	}
	if ev.ID != "9001" {
		t.Errorf("ID = %q", ev.ID)
	}
}

func TestWolfxEEWHandlerDropsCancel(t *testing.T) {
	h := NewWolfxJMAEEWHandler(slog.Default())

	ev, err := h.Parse([]byte(`{"type":"jma_eew","EventID":"x","isCancel":true}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ev != nil {
		t.Error("cancelled warnings must be dropped")
	}
}

func TestWolfxJMAListHandler(t *testing.T) {
	h := NewWolfxJMAListHandler(slog.Default())

	raw := []byte(`{"type":"jma_eqlist",
		"No1":{"md5":"abc123","time":"2026/05/12 14:20:00","location":"宮城県沖",
			"latitude":"38.3","longitude":"141.6","depth":"20km","magnitude":"4.8","shindo":"3"},
		"No2":{"md5":"older","time":"2026/05/12 10:00:00","location":"千葉県東方沖",
			"latitude":"35.6","longitude":"140.9","depth":"30km","magnitude":"3.9","shindo":"2"}}`)

	ev, err := h.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ev == nil {
		t.Fatal("Parse() returned no event")
	}
	if ev.ID != "abc123" {
		t.Errorf("only the newest entry is forwarded, got %q", ev.ID)
	}
	if ev.DepthKm == nil || *ev.DepthKm != 20 {
		t.Errorf(`"20km" depth should parse as 20, got %v`, ev.DepthKm)
	}
	if ev.Scale == nil || *ev.Scale != 3 {
		t.Errorf("Scale = %v, want 3", ev.Scale)
	}
	if ev.Category != models.CategoryQuakeInfo {
		t.Errorf("Category = %q", ev.Category)
	}
}

func TestWolfxCENCListHandler(t *testing.T) {
	h := NewWolfxCENCListHandler(slog.Default())

	raw := []byte(`{"type":"cenc_eqlist",
		"No1":{"md5":"def456","time":"2026-05-12 14:20:00","location":"新疆阿克苏",
			"latitude":41.2,"longitude":80.3,"depth":10,"magnitude":5.1,"intensity":6.0,"type":"自动测定"}}`)

	ev, err := h.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ev == nil {
		t.Fatal("Parse() returned no event")
	}
	if ev.Intensity == nil || *ev.Intensity != 6.0 {
		t.Errorf("Intensity = %v, want 6.0", ev.Intensity)
	}
	if ev.InfoType != "自动测定" {
		t.Errorf("InfoType = %q", ev.InfoType)
	}
}

func TestWolfxListHandlerIgnoresForeignType(t *testing.T) {
	h := NewWolfxCENCListHandler(slog.Default())

	ev, err := h.Parse([]byte(`{"type":"jma_eqlist","No1":{"md5":"x"}}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ev != nil {
		t.Error("a frame tagged for another endpoint must be skipped")
	}
}

func TestParseShindo(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"5強", 5.5, true},
		{"5弱", 4.5, true},
		{"7", 7.0, true},
		{"震度4", 4.0, true},
		{"", 0, false},
		{"不明", 0, false},
	}

	for _, tt := range tests {
		got := parseShindo(tt.in)
		if tt.ok {
			if got == nil || *got != tt.want {
				t.Errorf("parseShindo(%q) = %v, want %v", tt.in, got, tt.want)
			}
		} else if got != nil {
			t.Errorf("parseShindo(%q) = %v, want nil", tt.in, *got)
		}
	}
}
