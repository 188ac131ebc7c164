package filter

import (
	"strings"

	"github.com/Kx501/go-disaster-warning/internal/config"
	"github.com/Kx501/go-disaster-warning/internal/models"
)

// QuakeKeywordFilter keeps only earthquake reports whose place name mentions
// one of the configured regions. Events without a place name always pass:
// dropping a quake over missing metadata would hide real warnings.
type QuakeKeywordFilter struct {
	enabled  bool
	keywords []string
}

func NewQuakeKeywordFilter(cfg config.QuakeKeywordConfig) *QuakeKeywordFilter {
	return &QuakeKeywordFilter{enabled: cfg.Enabled, keywords: cleanKeywords(cfg.Keywords)}
}

func (f *QuakeKeywordFilter) Allow(ev *models.Event) bool {
	if !f.enabled || len(f.keywords) == 0 {
		return true
	}
	if ev.PlaceName == "" {
		return true
	}

	place := strings.ToLower(ev.PlaceName)
	for _, kw := range f.keywords {
		if strings.Contains(place, kw) {
			return true
		}
	}
	return false
}

func cleanKeywords(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, kw := range raw {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, strings.ToLower(kw))
		}
	}
	return out
}
