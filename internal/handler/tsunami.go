package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Kx501/go-disaster-warning/internal/models"
)

// ChinaTsunamiHandler parses 中国海啸预警中心 bulletins from FAN Studio. A
// frame may carry a single bulletin object or an array of them; only the
// first is forwarded.
type ChinaTsunamiHandler struct {
	log        *slog.Logger
	heartbeats *heartbeatGate
	warnings   *warnLimiter
}

func NewChinaTsunamiHandler(log *slog.Logger) *ChinaTsunamiHandler {
	return &ChinaTsunamiHandler{
		log:        log,
		heartbeats: newHeartbeatGate(time.Now),
		warnings:   newWarnLimiter(time.Now),
	}
}

func (h *ChinaTsunamiHandler) SourceID() string { return "china_tsunami_fanstudio" }

type chinaTsunami struct {
	ID          flexString `json:"id"`
	Code        flexString `json:"code"`
	WarningInfo struct {
		Title    string `json:"title"`
		Level    string `json:"level"`
		Subtitle string `json:"subtitle"`
		OrgUnit  string `json:"orgUnit"`
	} `json:"warningInfo"`
	TimeInfo struct {
		AlarmDate   string `json:"alarmDate"`
		IssueTime   string `json:"issueTime"`
		PublishTime string `json:"publishTime"`
		UpdateDate  string `json:"updateDate"`
	} `json:"timeInfo"`
	Forecasts json.RawMessage `json:"forecasts"`
}

func (h *ChinaTsunamiHandler) Parse(raw []byte) (*models.Event, error) {
	payload := unwrapEnvelope(raw)

	bulletin, err := firstTsunamiBulletin(payload)
	if err != nil {
		return nil, err
	}
	if bulletin == nil {
		return nil, nil
	}

	if h.heartbeats.shouldInspect() &&
		mostlyEmpty(bulletin.WarningInfo.Title, bulletin.WarningInfo.Level) {
		return nil, nil
	}

	if bulletin.WarningInfo.Title == "" && bulletin.WarningInfo.Level == "" {
		if h.warnings.allow("empty_bulletin", "tsunami bulletin without title or level") {
			h.log.Debug("tsunami bulletin without title or level, skipping")
		}
		return nil, nil
	}

	// The feed scatters the issue timestamp across several fields; take
	// the first one that is set.
	occurred := parseTime(bulletin.TimeInfo.AlarmDate)
	for _, alt := range []string{
		bulletin.TimeInfo.IssueTime,
		bulletin.TimeInfo.PublishTime,
		bulletin.TimeInfo.UpdateDate,
	} {
		if occurred != nil {
			break
		}
		occurred = parseTime(alt)
	}

	extras := map[string]any{
		"subtitle": bulletin.WarningInfo.Subtitle,
		"orgUnit":  bulletin.WarningInfo.OrgUnit,
	}
	if len(bulletin.Forecasts) > 0 {
		extras["forecasts"] = json.RawMessage(bulletin.Forecasts)
	}

	return &models.Event{
		ID:             bulletin.ID.String(),
		EventID:        bulletin.ID.String(),
		SourceID:       h.SourceID(),
		Category:       models.CategoryTsunami,
		OccurredAt:     occurred,
		Headline:       bulletin.WarningInfo.Title,
		Level:          bulletin.WarningInfo.Level,
		Extras:         extras,
		SequenceNumber: 1,
		ReceivedAt:     time.Now(),
	}, nil
}

func firstTsunamiBulletin(payload json.RawMessage) (*chinaTsunami, error) {
	var one chinaTsunami
	if err := json.Unmarshal(payload, &one); err == nil {
		return &one, nil
	}

	var many []chinaTsunami
	if err := json.Unmarshal(payload, &many); err != nil {
		return nil, fmt.Errorf("tsunami payload: %w", err)
	}
	if len(many) == 0 {
		return nil, nil
	}
	return &many[0], nil
}
