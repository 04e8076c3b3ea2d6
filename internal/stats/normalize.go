package stats

import (
	"encoding/json"
	"fmt"
)

// The statistics upstream is loosely typed: depending on the endpoint
// and its version, a series arrives as a bare array of labeled points,
// as a parallel {labels, data} pair, or wrapped in a {history: [...]}
// envelope. Shapes are sniffed once here, at the transport boundary;
// consumers only ever see []SeriesPoint.

type seriesEnvelope struct {
	Labels  []string        `json:"labels"`
	Data    []float64       `json:"data"`
	History json.RawMessage `json:"history"`
}

type rawPoint struct {
	Label string   `json:"label"`
	Value *float64 `json:"value"`
	Count *float64 `json:"count"`
	Rate  *float64 `json:"rate"`
}

func (p rawPoint) toPoint() SeriesPoint {
	out := SeriesPoint{Label: p.Label}
	switch {
	case p.Value != nil:
		out.Value = *p.Value
	case p.Count != nil:
		out.Value = *p.Count
	case p.Rate != nil:
		out.Value = *p.Rate
	}
	return out
}

func decodePointArray(data []byte) ([]SeriesPoint, error) {
	var raw []rawPoint
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make([]SeriesPoint, 0, len(raw))
	for _, p := range raw {
		out = append(out, p.toPoint())
	}
	return out, nil
}

// decodeSeries normalizes any of the supported payload shapes into an
// ordered series.
func decodeSeries(data []byte) ([]SeriesPoint, error) {
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		return decodePointArray(data)
	}

	var env seriesEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unrecognized series payload: %w", err)
	}

	if env.History != nil {
		return decodePointArray(env.History)
	}

	if len(env.Labels) != len(env.Data) {
		return nil, fmt.Errorf("series payload labels/data length mismatch: %d vs %d", len(env.Labels), len(env.Data))
	}
	out := make([]SeriesPoint, 0, len(env.Labels))
	for i, label := range env.Labels {
		out = append(out, SeriesPoint{Label: label, Value: env.Data[i]})
	}
	return out, nil
}

type rawCompliance struct {
	Rate       *float64 `json:"rate"`
	Taken      *int     `json:"taken"`
	TakenDoses *int     `json:"taken_doses"`
	Total      *int     `json:"total"`
	TotalDoses *int     `json:"total_doses"`
}

// decodeCompliance normalizes the compliance payload, tolerating both
// key spellings the upstream has used. A missing rate stays nil.
func decodeCompliance(data []byte) (Compliance, error) {
	var raw rawCompliance
	if err := json.Unmarshal(data, &raw); err != nil {
		return Compliance{}, fmt.Errorf("unrecognized compliance payload: %w", err)
	}

	out := Compliance{Rate: raw.Rate}
	switch {
	case raw.TakenDoses != nil:
		out.TakenDoses = *raw.TakenDoses
	case raw.Taken != nil:
		out.TakenDoses = *raw.Taken
	}
	switch {
	case raw.TotalDoses != nil:
		out.TotalDoses = *raw.TotalDoses
	case raw.Total != nil:
		out.TotalDoses = *raw.Total
	}
	return out, nil
}
