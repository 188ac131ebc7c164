package handler

import (
	"log/slog"
	"testing"

	"github.com/Kx501/go-disaster-warning/internal/models"
)

func TestCEAWarningHandler(t *testing.T) {
	h := NewCEAWarningHandler(slog.Default())

	raw := []byte(`{"Data":{"id":"20260512142801","eventId":"CEA2026051201",
		"shockTime":"2026-05-12 14:28:01","latitude":30.12,"longitude":103.85,
		"depth":14,"magnitude":5.6,"epiIntensity":7.2,"placeName":"四川汶川",
		"updates":2,"isFinal":false}}`)

	ev, err := h.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ev == nil {
		t.Fatal("Parse() returned no event")
	}

	if ev.SourceID != "cea_fanstudio" {
		t.Errorf("SourceID = %q", ev.SourceID)
	}
	if ev.Category != models.CategoryQuakeWarning {
		t.Errorf("Category = %q", ev.Category)
	}
	if ev.Magnitude == nil || *ev.Magnitude != 5.6 {
		t.Errorf("Magnitude = %v, want 5.6", ev.Magnitude)
	}
	if ev.Intensity == nil || *ev.Intensity != 7.2 {
		t.Errorf("Intensity = %v, want 7.2", ev.Intensity)
	}
	if ev.SequenceNumber != 2 {
		t.Errorf("SequenceNumber = %d, want 2", ev.SequenceNumber)
	}
	if ev.OccurredAt == nil {
		t.Error("OccurredAt should parse")
	}
}

func TestCEAWarningHandlerSkipsOtherPayloads(t *testing.T) {
	h := NewCEAWarningHandler(slog.Default())

	// A weather alarm arriving on the shared connection: no epiIntensity.
	ev, err := h.Parse([]byte(`{"Data":{"id":"w1","headline":"暴雨红色预警"}}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ev != nil {
		t.Error("foreign payloads must be skipped, not parsed")
	}
}

func TestCEAWarningHandlerLowercaseEnvelope(t *testing.T) {
	h := NewCEAWarningHandler(slog.Default())

	ev, err := h.Parse([]byte(`{"data":{"id":"x","epiIntensity":3.0,"latitude":28.0,"longitude":104.0,"magnitude":4.0,"shockTime":"2026-05-12 14:28:01"}}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ev == nil {
		t.Fatal("lowercase data envelope should unwrap")
	}
	if ev.SequenceNumber != 1 {
		t.Errorf("SequenceNumber defaults to 1, got %d", ev.SequenceNumber)
	}
}

func TestJMAWarningHandlerMarksCancel(t *testing.T) {
	h := NewJMAWarningHandler(slog.Default())

	ev, err := h.Parse([]byte(`{"Data":{"id":"jma1","infoTypeName":"警報","cancel":true,"updates":3}}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ev == nil {
		t.Fatal("a cancellation is news, not noise")
	}
	if !ev.IsCancelled {
		t.Error("IsCancelled should be set")
	}
	if ev.SequenceNumber != 3 {
		t.Errorf("SequenceNumber = %d, want 3", ev.SequenceNumber)
	}
}

func TestCWAWarningHandlerScale(t *testing.T) {
	h := NewCWAWarningHandler(slog.Default())

	raw := []byte(`{"Data":{"id":114,"eventId":"CWA114","createTime":"2026-05-12 14:28:10",
		"shockTime":"2026-05-12 14:28:01","latitude":23.5,"longitude":121.2,
		"depth":20,"magnitude":5.9,"maxIntensity":4,"placeName":"花蓮縣近海","updates":1}}`)

	ev, err := h.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ev == nil {
		t.Fatal("Parse() returned no event")
	}
	if ev.ID != "114" {
		t.Errorf("numeric id should coerce to string, got %q", ev.ID)
	}
	if ev.Scale == nil || *ev.Scale != 4 {
		t.Errorf("Scale = %v, want 4", ev.Scale)
	}
	if ev.Intensity != nil {
		t.Error("CWA reports a grade, not a continuous intensity")
	}
}

func TestCENCInfoHandlerRounding(t *testing.T) {
	h := NewCENCInfoHandler(slog.Default())

	raw := []byte(`{"Data":{"id":1,"eventId":"CC2026","infoTypeName":"自动测定",
		"shockTime":"2026-05-12 14:28:01","latitude":30.1,"longitude":103.8,
		"depth":14.678,"magnitude":5.6432,"placeName":"四川汶川"}}`)

	ev, err := h.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ev == nil {
		t.Fatal("Parse() returned no event")
	}
	if ev.Magnitude == nil || *ev.Magnitude != 5.6 {
		t.Errorf("Magnitude = %v, want 5.6", ev.Magnitude)
	}
	if ev.DepthKm == nil || *ev.DepthKm != 14.7 {
		t.Errorf("DepthKm = %v, want 14.7", ev.DepthKm)
	}
	if ev.InfoType != "自动测定" {
		t.Errorf("InfoType = %q", ev.InfoType)
	}
}

func TestUSGSInfoHandlerCaseFallback(t *testing.T) {
	h := NewUSGSInfoHandler(slog.Default())

	raw := []byte(`{"Data":{"Id":"us7000abcd","Magnitude":"6.234","Latitude":35.2,
		"Longitude":-117.5,"Depth":8.11,"PlaceName":"Southern California",
		"ShockTime":"2026-05-12 14:28:01"}}`)

	ev, err := h.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ev == nil {
		t.Fatal("capitalized fields should still parse")
	}
	if ev.ID != "us7000abcd" {
		t.Errorf("ID = %q", ev.ID)
	}
	if ev.Magnitude == nil || *ev.Magnitude != 6.2 {
		t.Errorf("Magnitude = %v, want 6.2", ev.Magnitude)
	}
}

func TestUSGSInfoHandlerRejectsEmptyPayloads(t *testing.T) {
	h := NewUSGSInfoHandler(slog.Default())

	ev, err := h.Parse([]byte(`{"Data":{"magnitude":5.0,"latitude":10,"longitude":20}}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ev != nil {
		t.Error("a report without an id must be skipped")
	}

	ev, err = h.Parse([]byte(`{"Data":{"id":"x","latitude":0,"longitude":0,"magnitude":5.0}}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ev != nil {
		t.Error("zero coordinates mark a keep-alive frame")
	}
}

func TestWeatherHandlerReplaySuppression(t *testing.T) {
	h := NewWeatherHandler(slog.Default())

	raw := []byte(`{"Data":{"id":"23010041600000_20260826093000",
		"headline":"台风红色预警","title":"台风预警","description":"……",
		"effective":"2026-08-26 09:30:00"}}`)

	ev, err := h.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ev == nil {
		t.Fatal("Parse() returned no event")
	}
	if ev.Category != models.CategoryWeather {
		t.Errorf("Category = %q", ev.Category)
	}
	if ev.OccurredAt == nil || ev.OccurredAt.Hour() != 9 || ev.OccurredAt.Minute() != 30 {
		t.Errorf("issue time should come from the id suffix, got %v", ev.OccurredAt)
	}

	// Reconnect replay of the same alarm.
	ev, err = h.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ev != nil {
		t.Error("a replayed alarm id must be dropped")
	}
}

func TestChinaTsunamiHandler(t *testing.T) {
	h := NewChinaTsunamiHandler(slog.Default())

	raw := []byte(`{"Data":{"id":"ts1","warningInfo":{"title":"海啸黄色警报","level":"黄色",
		"orgUnit":"自然资源部海啸预警中心"},"timeInfo":{"alarmDate":"2026-05-12 14:40:00"}}}`)

	ev, err := h.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ev == nil {
		t.Fatal("Parse() returned no event")
	}
	if ev.Category != models.CategoryTsunami {
		t.Errorf("Category = %q", ev.Category)
	}
	if ev.Level != "黄色" {
		t.Errorf("Level = %q", ev.Level)
	}
	if ev.OccurredAt == nil {
		t.Error("alarmDate should parse")
	}
}

func TestChinaTsunamiHandlerArrayPayload(t *testing.T) {
	h := NewChinaTsunamiHandler(slog.Default())

	raw := []byte(`{"Data":[{"id":"ts2","warningInfo":{"title":"海啸警报","level":"橙色"},
		"timeInfo":{"issueTime":"2026-05-12 14:41:00"}},
		{"id":"ts3","warningInfo":{"title":"older","level":"蓝色"},"timeInfo":{}}]}`)

	ev, err := h.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ev == nil {
		t.Fatal("Parse() returned no event")
	}
	if ev.ID != "ts2" {
		t.Errorf("only the first bulletin is forwarded, got %q", ev.ID)
	}
}
