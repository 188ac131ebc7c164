package push

import (
	"strings"
	"testing"
	"time"

	"github.com/Kx501/go-disaster-warning/internal/models"
)

func TestRenderQuake(t *testing.T) {
	occurred := time.Date(2026, 5, 12, 14, 30, 0, 0, time.UTC)
	reg := models.DefaultRegistry()
	spec := reg.Lookup("cea_fanstudio")

	msg := Render(spec, &models.Event{
		SourceID:       "cea_fanstudio",
		Category:       models.CategoryQuakeWarning,
		OccurredAt:     &occurred,
		PlaceName:      "四川省成都市",
		Magnitude:      f64(5.5),
		DepthKm:        f64(10),
		Intensity:      f64(6.3),
		SequenceNumber: 3,
		IsFinal:        true,
		LocalEstimate: &models.LocalEstimate{
			DistanceKm:   120,
			Intensity:    2.4,
			ObserverName: "本地",
		},
	})

	for _, want := range []string{
		"【中国地震预警网】", "四川省成都市", "M5.5", "深度10km",
		"预估烈度6.3", "第3报", "(最终报)", "2026-05-12 14:30:00",
		"本地预估烈度2.4", "距震中120km",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestRenderScaleQuakeOmitsIntensity(t *testing.T) {
	reg := models.DefaultRegistry()
	msg := Render(reg.Lookup("jma_p2p"), &models.Event{
		SourceID:       "jma_p2p",
		Category:       models.CategoryQuakeWarning,
		PlaceName:      "千葉県東方沖",
		Magnitude:      f64(5.8),
		Scale:          f64(4.5),
		SequenceNumber: 1,
	})

	if !strings.Contains(msg, "最大震度4.5") {
		t.Errorf("message %q missing scale", msg)
	}
	if strings.Contains(msg, "预估烈度") {
		t.Errorf("message %q should not carry intensity", msg)
	}
	if strings.Contains(msg, "第1报") {
		t.Errorf("message %q should not mark the first report", msg)
	}
}

func TestRenderQuakeCancellation(t *testing.T) {
	reg := models.DefaultRegistry()
	msg := Render(reg.Lookup("jma_p2p"), &models.Event{
		SourceID:       "jma_p2p",
		Category:       models.CategoryQuakeWarning,
		PlaceName:      "石川県能登地方",
		SequenceNumber: 4,
		IsCancelled:    true,
	})

	for _, want := range []string{"[取消]", "第4报(取消报)", "已取消"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
	if strings.Contains(msg, "石川県") {
		t.Errorf("message %q should replace the report body, not extend it", msg)
	}
}

func TestRenderTsunamiCancellation(t *testing.T) {
	reg := models.DefaultRegistry()
	msg := Render(reg.Lookup("jma_tsunami_p2p"), &models.Event{
		SourceID:    "jma_tsunami_p2p",
		Category:    models.CategoryTsunami,
		IsCancelled: true,
	})

	if !strings.Contains(msg, "解除") {
		t.Errorf("message %q missing cancellation marker", msg)
	}
}

func TestRenderUnknownSourceFallsBackToID(t *testing.T) {
	reg := models.DefaultRegistry()
	msg := Render(reg.Lookup("mystery_feed"), &models.Event{
		SourceID: "mystery_feed",
		Category: models.CategoryQuakeInfo,
	})

	if !strings.Contains(msg, "mystery_feed") {
		t.Errorf("message %q missing source id fallback", msg)
	}
}
