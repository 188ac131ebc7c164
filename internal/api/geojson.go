package api

import (
	"github.com/Kx501/go-disaster-warning/internal/repository"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

func toGeoJSON(events []repository.StoredEvent) FeatureCollection {
	features := make([]Feature, 0, len(events))

	for _, ev := range events {
		props := map[string]any{
			"id":       ev.ID,
			"event_id": ev.EventID,
			"source":   ev.SourceID,
			"category": ev.Category,
			"place":    ev.PlaceName,
			"sequence": ev.Sequence,
			"final":    ev.IsFinal,
		}
		if ev.OccurredAt != nil {
			props["occurred_at"] = ev.OccurredAt
		}
		if ev.Magnitude != nil {
			props["magnitude"] = *ev.Magnitude
		}
		if ev.DepthKm != nil {
			props["depth_km"] = *ev.DepthKm
		}
		if ev.Intensity != nil {
			props["intensity"] = *ev.Intensity
		}
		if ev.Scale != nil {
			props["scale"] = *ev.Scale
		}
		if ev.Headline != "" {
			props["headline"] = ev.Headline
		}
		if ev.Level != "" {
			props["level"] = ev.Level
		}

		features = append(features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{ev.Longitude, ev.Latitude},
			},
			Properties: props,
		})
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
