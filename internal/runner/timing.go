package runner

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TimingEnv names a JSONL file that receives stage timings for every run.
const TimingEnv = "SILVER_TIMING_JSONL"

type timingEvent struct {
	Stage      string  `json:"stage"`
	Status     string  `json:"status"`
	Detail     string  `json:"detail,omitempty"`
	StartMS    float64 `json:"start_ms"`
	DurationMS float64 `json:"duration_ms"`
	EndMS      float64 `json:"end_ms"`
}

type timingRecorder struct {
	start time.Time
	file  *os.File
	enc   *json.Encoder
	err   error
}

func newTimingRecorder(start time.Time, path string) *timingRecorder {
	tr := &timingRecorder{start: start}
	if path == "" {
		return tr
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tr.err = err
		return tr
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		tr.err = err
		return tr
	}
	tr.file = f
	tr.enc = json.NewEncoder(f)
	return tr
}

func (tr *timingRecorder) Enabled() bool {
	return tr != nil && tr.enc != nil
}

func (tr *timingRecorder) Err() error {
	if tr == nil {
		return nil
	}
	return tr.err
}

func (tr *timingRecorder) Close() {
	if tr == nil || tr.file == nil {
		return
	}
	_ = tr.file.Close()
}

// stage records one stage that began at start and ends now.
func (tr *timingRecorder) stage(name string, start time.Time, err error, detail string) {
	if !tr.Enabled() {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		if detail == "" {
			detail = err.Error()
		}
	}
	startMS := durationToMS(start.Sub(tr.start))
	durationMS := durationToMS(time.Since(start))
	ev := timingEvent{
		Stage:      name,
		Status:     status,
		Detail:     detail,
		StartMS:    startMS,
		DurationMS: durationMS,
		EndMS:      startMS + durationMS,
	}
	if err := tr.enc.Encode(ev); err != nil && tr.err == nil {
		tr.err = err
	}
}

func durationToMS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000_000.0
}

// resolveTimingPath picks the timing file: the environment first, then the
// configured path, then timing.jsonl in the run directory.
func (o Options) resolveTimingPath() string {
	if env := strings.TrimSpace(os.Getenv(TimingEnv)); env != "" {
		return env
	}
	if !o.Timing {
		return ""
	}
	if o.TimingPath != "" {
		return o.TimingPath
	}
	return filepath.Join(o.Dir, "timing.jsonl")
}
