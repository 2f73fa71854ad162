package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/harrison/snippetcheck/internal/filelock"
	"github.com/harrison/snippetcheck/internal/models"
)

// jsonReport is the machine-readable form of a Report.
type jsonReport struct {
	models.Report
	DurationMs int64         `json:"duration_ms"`
	Verdicts   []jsonVerdict `json:"verdicts"`
}

type jsonVerdict struct {
	models.Verdict
	DurationMs int64 `json:"duration_ms"`
}

func toJSON(rep models.Report) jsonReport {
	out := jsonReport{
		Report:     rep,
		DurationMs: rep.Duration.Milliseconds(),
		Verdicts:   []jsonVerdict{},
	}
	for _, v := range rep.Verdicts() {
		out.Verdicts = append(out.Verdicts, jsonVerdict{Verdict: v, DurationMs: v.DurationMs()})
	}
	return out
}

// MarshalJSON encodes rep with durations in milliseconds and a flat verdict
// list in report order.
func MarshalJSON(rep models.Report) ([]byte, error) {
	data, err := json.MarshalIndent(toJSON(rep), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteJSON writes the JSON report to w.
func WriteJSON(w io.Writer, rep models.Report) error {
	data, err := MarshalJSON(rep)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteJSONFile atomically replaces path with the JSON report while holding
// its sibling lock file.
func WriteJSONFile(path string, rep models.Report) error {
	data, err := MarshalJSON(rep)
	if err != nil {
		return err
	}
	if err := filelock.LockAndWrite(path, data); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
