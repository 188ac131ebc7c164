package filter

import (
	"strings"

	"github.com/Kx501/go-disaster-warning/internal/config"
	"github.com/Kx501/go-disaster-warning/internal/models"
)

// Weather alarm colours, least to most severe. A headline that names no
// colour counts as 白色.
var weatherColorRank = map[string]int{
	"白色": 0,
	"蓝色": 1,
	"黄色": 2,
	"橙色": 3,
	"红色": 4,
}

// chinaProvinces lists every province-level division a headline can name.
var chinaProvinces = []string{
	"北京", "天津", "上海", "重庆", "河北", "山西", "辽宁", "吉林", "黑龙江",
	"江苏", "浙江", "安徽", "福建", "江西", "山东", "河南", "湖北", "湖南",
	"广东", "海南", "四川", "贵州", "云南", "陕西", "甘肃", "青海", "台湾",
	"内蒙古", "广西", "西藏", "宁夏", "新疆", "香港", "澳门",
}

// WeatherFilter gates weather alarms three ways: an explicit keyword
// allow-list when one is configured, otherwise a minimum alarm colour plus
// an optional province whitelist, both read off the alarm text.
type WeatherFilter struct {
	enabled   bool
	keywords  []string
	minColor  int
	provinces []string
}

func NewWeatherFilter(cfg config.WeatherConfig) *WeatherFilter {
	return &WeatherFilter{
		enabled:   cfg.Enabled,
		keywords:  cleanKeywords(cfg.Keywords),
		minColor:  weatherColorRank[cfg.MinColorLevel],
		provinces: cleanKeywords(cfg.Provinces),
	}
}

func (f *WeatherFilter) Allow(ev *models.Event) bool {
	if !f.enabled {
		return true
	}

	text := ev.Headline + " " + ev.PlaceName

	// A keyword list overrides the colour and province rules.
	if len(f.keywords) > 0 {
		lowered := strings.ToLower(text)
		for _, kw := range f.keywords {
			if strings.Contains(lowered, kw) {
				return true
			}
		}
		return false
	}

	if alarmColor(text) < f.minColor {
		return false
	}

	if len(f.provinces) > 0 {
		province := alarmProvince(text)
		if province == "" {
			// An alarm we cannot place is kept rather than lost.
			return true
		}
		for _, want := range f.provinces {
			if want == province {
				return true
			}
		}
		return false
	}

	return true
}

// alarmColor reads the alarm colour out of the text, most severe first,
// defaulting to the lowest grade when none is named.
func alarmColor(text string) int {
	for _, color := range []string{"红色", "橙色", "黄色", "蓝色", "白色"} {
		if strings.Contains(text, color) {
			return weatherColorRank[color]
		}
	}
	return weatherColorRank["白色"]
}

func alarmProvince(text string) string {
	for _, name := range chinaProvinces {
		if strings.Contains(text, name) {
			return name
		}
	}
	return ""
}
