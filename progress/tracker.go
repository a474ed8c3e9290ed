package progress

import (
	"sync"
	"time"

	"luminakraft-launcher/model"
)

const (
	// rateWindow is how many rate samples feed the smoothed transfer speed.
	rateWindow = 10
	// smoothing is the weight of the newest rate sample.
	smoothing = 0.3

	etaLowerPercent = 10.0
	etaUpperPercent = 95.0
	maxETA          = 30 * time.Minute
)

// Snapshot is the smoothed view of a transfer that observers are allowed to see.
type Snapshot struct {
	Done       int64
	Total      int64
	Percentage float64       // 0-100, never decreases within one tracker
	Speed      float64       // smoothed bytes per second
	ETA        time.Duration // only meaningful when HasETA is set
	HasETA     bool
}

// Progress converts the snapshot into the form published to observers.
func (s Snapshot) Progress() model.Progress {
	return model.Progress{
		DownloadedBytes: s.Done,
		TotalBytes:      s.Total,
		Percentage:      s.Percentage,
		CurrentSpeed:    s.Speed,
		ETA:             s.ETA,
		HasETA:          s.HasETA,
	}
}

// Tracker turns raw (done, total) samples into a Snapshot.
// It is safe for concurrent use.
type Tracker struct {
	mu  sync.Mutex
	now func() time.Time

	started  bool
	lastDone int64
	lastAt   time.Time
	rates    []float64
	percent  float64
}

// NewTracker creates a tracker. A nil clock defaults to time.Now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now}
}

// Add records a sample and returns the updated snapshot.
func (t *Tracker) Add(done, total int64) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	at := t.now()
	if t.started {
		dt := at.Sub(t.lastAt).Seconds()
		if dt > 0 && done >= t.lastDone {
			t.rates = append(t.rates, float64(done-t.lastDone)/dt)
			if len(t.rates) > rateWindow {
				t.rates = t.rates[len(t.rates)-rateWindow:]
			}
		}
	}
	t.started = true
	t.lastDone = done
	t.lastAt = at

	if p := percentage(done, total); p > t.percent {
		t.percent = p
	}

	snap := Snapshot{
		Done:       done,
		Total:      total,
		Percentage: t.percent,
		Speed:      t.smoothedRate(),
	}

	if t.percent > etaLowerPercent && t.percent < etaUpperPercent && snap.Speed > 0 && total > done {
		eta := time.Duration(float64(total-done) / snap.Speed * float64(time.Second))
		if eta <= maxETA {
			snap.ETA = eta
			snap.HasETA = true
		}
	}

	return snap
}

// Reset forgets all samples so the tracker can be reused for a new transfer.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = false
	t.lastDone = 0
	t.lastAt = time.Time{}
	t.rates = nil
	t.percent = 0
}

func (t *Tracker) smoothedRate() float64 {
	if len(t.rates) == 0 {
		return 0
	}
	ema := t.rates[0]
	for _, r := range t.rates[1:] {
		ema = smoothing*r + (1-smoothing)*ema
	}
	return ema
}

func percentage(done, total int64) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(done) / float64(total) * 100
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
