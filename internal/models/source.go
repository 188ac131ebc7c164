package models

// AgencyClass groups sources that share report-gate and severity-filter
// behavior.
type AgencyClass string

const (
	AgencyCEACWA      AgencyClass = "cea_cwa"
	AgencyJMA         AgencyClass = "jma"
	AgencyGlobalQuake AgencyClass = "global_quake"
	AgencyCENC        AgencyClass = "cenc"
	AgencyUSGS        AgencyClass = "usgs"
	AgencyOther       AgencyClass = "other"
)

// SourceSpec describes one upstream feed: how its events are categorized,
// which severity field it uses, its local timezone, and whether the report
// gate applies to it.
type SourceSpec struct {
	ID          string
	Category    Category
	Agency      AgencyClass
	DisplayName string

	NeedsReportControl bool
	SupportsFinal      bool
	UsesIntensity      bool
	UsesScale          bool

	// UTCOffsetHours localizes naive provider timestamps for staleness
	// checks: +8 for Chinese agencies, +9 for Japanese, 0 for GlobalQuake.
	UTCOffsetHours int

	// FingerprintPrefix is set for providers emitting a stable global event
	// id; the deduplicator keys on "<prefix>_<eventID>" instead of the
	// quantized location/magnitude/time fingerprint.
	FingerprintPrefix string
}

// Registry maps source ids to their specs. Built once at startup and passed
// by reference into the connection manager and the push orchestrator.
type Registry struct {
	specs map[string]SourceSpec
}

func NewRegistry(specs []SourceSpec) *Registry {
	m := make(map[string]SourceSpec, len(specs))
	for _, s := range specs {
		m[s.ID] = s
	}
	return &Registry{specs: m}
}

// Lookup returns the spec for a source id. Unknown sources get a permissive
// default so a new feed cannot be silently dropped by the pipeline.
func (r *Registry) Lookup(id string) SourceSpec {
	if s, ok := r.specs[id]; ok {
		return s
	}
	return SourceSpec{ID: id, Category: CategoryQuakeInfo, Agency: AgencyOther, UTCOffsetHours: 8}
}

func (r *Registry) Known(id string) bool {
	_, ok := r.specs[id]
	return ok
}

// DefaultRegistry lists every feed the service understands.
func DefaultRegistry() *Registry {
	return NewRegistry([]SourceSpec{
		// Earthquake early-warning feeds.
		{ID: "cea_fanstudio", Category: CategoryQuakeWarning, Agency: AgencyCEACWA, DisplayName: "中国地震预警网", NeedsReportControl: true, UsesIntensity: true, UTCOffsetHours: 8},
		{ID: "cea_wolfx", Category: CategoryQuakeWarning, Agency: AgencyCEACWA, DisplayName: "中国地震预警网", NeedsReportControl: true, UsesIntensity: true, UTCOffsetHours: 8},
		{ID: "cwa_fanstudio", Category: CategoryQuakeWarning, Agency: AgencyCEACWA, DisplayName: "台湾中央气象署", NeedsReportControl: true, UsesScale: true, UTCOffsetHours: 8},
		{ID: "cwa_wolfx", Category: CategoryQuakeWarning, Agency: AgencyCEACWA, DisplayName: "台湾中央气象署", NeedsReportControl: true, UsesScale: true, UTCOffsetHours: 8},
		{ID: "jma_fanstudio", Category: CategoryQuakeWarning, Agency: AgencyJMA, DisplayName: "日本気象庁 EEW", NeedsReportControl: true, SupportsFinal: true, UsesScale: true, UTCOffsetHours: 9},
		{ID: "jma_p2p", Category: CategoryQuakeWarning, Agency: AgencyJMA, DisplayName: "日本気象庁 EEW (P2P)", NeedsReportControl: true, SupportsFinal: true, UsesScale: true, UTCOffsetHours: 9},
		{ID: "jma_wolfx", Category: CategoryQuakeWarning, Agency: AgencyJMA, DisplayName: "日本気象庁 EEW (Wolfx)", NeedsReportControl: true, SupportsFinal: true, UsesScale: true, UTCOffsetHours: 9},
		{ID: "global_quake", Category: CategoryQuakeWarning, Agency: AgencyGlobalQuake, DisplayName: "Global Quake", NeedsReportControl: true, UsesIntensity: true, UTCOffsetHours: 0, FingerprintPrefix: "gq"},

		// Earthquake information (measured, not predictive) feeds.
		{ID: "cenc_fanstudio", Category: CategoryQuakeInfo, Agency: AgencyCENC, DisplayName: "中国地震台网", UsesIntensity: true, UTCOffsetHours: 8},
		{ID: "cenc_wolfx", Category: CategoryQuakeInfo, Agency: AgencyCENC, DisplayName: "中国地震台网 (Wolfx)", UsesIntensity: true, UTCOffsetHours: 8},
		{ID: "jma_p2p_info", Category: CategoryQuakeInfo, Agency: AgencyJMA, DisplayName: "日本気象庁 地震情報 (P2P)", UsesScale: true, UTCOffsetHours: 9},
		{ID: "jma_wolfx_info", Category: CategoryQuakeInfo, Agency: AgencyJMA, DisplayName: "日本気象庁 地震情報 (Wolfx)", UsesScale: true, UTCOffsetHours: 9},
		{ID: "usgs_fanstudio", Category: CategoryQuakeInfo, Agency: AgencyUSGS, DisplayName: "USGS", UTCOffsetHours: 8},

		// Tsunami and weather feeds.
		{ID: "china_tsunami_fanstudio", Category: CategoryTsunami, Agency: AgencyOther, DisplayName: "中国海啸预警中心", UTCOffsetHours: 8},
		{ID: "jma_tsunami_p2p", Category: CategoryTsunami, Agency: AgencyJMA, DisplayName: "日本気象庁 津波予報 (P2P)", UTCOffsetHours: 9},
		{ID: "china_weather_fanstudio", Category: CategoryWeather, Agency: AgencyOther, DisplayName: "中国气象局", UTCOffsetHours: 8},
	})
}
