package launcher

import (
	"luminakraft-launcher/model"
	"luminakraft-launcher/progress"
)

const subscriberBuffer = 32

// Event is a state change for one modpack. Terminal is set on the last event
// of an action invocation.
type Event struct {
	ModpackID string
	State     model.RuntimeState
	Terminal  bool
}

type subscriber struct {
	ch chan Event
}

// Subscribe returns a channel of state changes and a function that stops
// delivery and closes it. Progress events are dropped for slow readers;
// terminal events evict older buffered events instead.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}
	c.subs[id] = sub

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub.ch)
		}
	}
	return sub.ch, cancel
}

// publishLocked must be called with c.mu held; it never blocks.
func (c *Controller) publishLocked(ev Event) {
	for _, sub := range c.subs {
		if !ev.Terminal {
			select {
			case sub.ch <- ev:
			default:
			}
			continue
		}
		for {
			select {
			case sub.ch <- ev:
			default:
				select {
				case <-sub.ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// Phase shares of the overall percentage. Fetching the archive is usually a
// single large transfer; installing covers every mod download.
const (
	fetchShare   = 20.0
	installShare = 100.0
)

// opState carries progress bookkeeping across the phases of one action.
type opState struct {
	tracker    *progress.Tracker
	onProgress func(model.Progress)
	// offset is the byte count finished by earlier phases, so byte totals
	// keep growing instead of restarting for each phase.
	offset   int64
	lastDone int64
	// lo and hi bound the current phase's slice of 0-100; percent is the
	// highest overall percentage published so far.
	lo, hi  float64
	percent float64
}

// phase runs fn with a fresh sample queue and drains it on its own goroutine.
// The phase's own progress is mapped into [st.percent, hi]. It returns only
// after every sample has been reported.
func (c *Controller) phase(id string, st *opState, hi float64, fn func(chan<- model.Sample) error) error {
	st.tracker.Reset()
	st.lo = st.percent
	st.hi = hi

	samples := make(chan model.Sample, sampleBuffer)
	drained := make(chan int64, 1)

	go func() {
		var phaseTotal int64
		for s := range samples {
			if s.Total > phaseTotal {
				phaseTotal = s.Total
			}
			c.report(id, st, s)
		}
		drained <- phaseTotal
	}()

	err := fn(samples)
	close(samples)
	st.offset += <-drained
	if err == nil && st.percent < hi {
		st.percent = hi
	}
	return err
}

func (c *Controller) report(id string, st *opState, s model.Sample) {
	done := st.offset + s.Done
	if done < st.lastDone {
		return
	}
	st.lastDone = done

	snap := st.tracker.Add(s.Done, s.Total)
	pct := st.lo + (st.hi-st.lo)*snap.Percentage/100
	if pct < st.percent {
		pct = st.percent
	}
	st.percent = pct

	p := snap.Progress()
	p.DownloadedBytes = done
	p.TotalBytes = st.offset + s.Total
	p.Percentage = pct

	c.mu.Lock()
	if rs, ok := c.states[id]; ok {
		rs.Progress = p
		c.publishLocked(Event{ModpackID: id, State: *rs})
	}
	c.mu.Unlock()

	if st.onProgress != nil {
		st.onProgress(p)
	}
}
