package push

import (
	"fmt"
	"strings"

	"github.com/Kx501/go-disaster-warning/internal/models"
)

// Render produces the compact plain-text message pushed to destinations.
// One line, provider name first, then whatever the event actually carries.
func Render(spec models.SourceSpec, ev *models.Event) string {
	title := spec.DisplayName
	if title == "" {
		title = ev.SourceID
	}

	var b strings.Builder
	fmt.Fprintf(&b, "【%s】", title)

	switch ev.Category {
	case models.CategoryWeather:
		renderWeather(&b, ev)
	case models.CategoryTsunami:
		renderTsunami(&b, ev)
	default:
		renderQuake(&b, ev)
	}

	return b.String()
}

func renderQuake(b *strings.Builder, ev *models.Event) {
	if ev.IsCancelled {
		b.WriteString("[取消]")
		if ev.SequenceNumber > 0 {
			fmt.Fprintf(b, " 第%d报(取消报)", ev.SequenceNumber)
		}
		b.WriteString(" 之前的紧急地震速报已取消")
		return
	}
	if ev.PlaceName != "" {
		b.WriteString(ev.PlaceName)
	}
	if ev.Magnitude != nil {
		fmt.Fprintf(b, " M%.1f", *ev.Magnitude)
	}
	if ev.DepthKm != nil {
		fmt.Fprintf(b, " 深度%.0fkm", *ev.DepthKm)
	}
	if ev.Intensity != nil {
		fmt.Fprintf(b, " 预估烈度%.1f", *ev.Intensity)
	} else if ev.Scale != nil {
		fmt.Fprintf(b, " 最大震度%.1f", *ev.Scale)
	}
	if ev.SequenceNumber > 1 || ev.IsFinal {
		fmt.Fprintf(b, " 第%d报", ev.SequenceNumber)
	}
	if ev.IsFinal {
		b.WriteString("(最终报)")
	}
	if ev.OccurredAt != nil {
		fmt.Fprintf(b, " %s", ev.OccurredAt.Format("2006-01-02 15:04:05"))
	}
	if le := ev.LocalEstimate; le != nil {
		fmt.Fprintf(b, " | %s预估烈度%.1f 距震中%.0fkm", le.ObserverName, le.Intensity, le.DistanceKm)
	}
}

func renderTsunami(b *strings.Builder, ev *models.Event) {
	if ev.Level != "" {
		b.WriteString(ev.Level)
	}
	if ev.IsCancelled && ev.Level == "" {
		b.WriteString("解除")
	}
	if ev.PlaceName != "" {
		fmt.Fprintf(b, " %s", ev.PlaceName)
	}
	if ev.Headline != "" {
		fmt.Fprintf(b, " %s", ev.Headline)
	}
}

func renderWeather(b *strings.Builder, ev *models.Event) {
	if ev.Headline != "" {
		b.WriteString(ev.Headline)
	}
	if ev.PlaceName != "" {
		fmt.Fprintf(b, " %s", ev.PlaceName)
	}
	if ev.OccurredAt != nil {
		fmt.Fprintf(b, " %s", ev.OccurredAt.Format("2006-01-02 15:04"))
	}
}
