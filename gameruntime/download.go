package gameruntime

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cavaliergopher/grab/v3"
)

// progressTick is how often in-flight transfers are sampled.
const progressTick = 100 * time.Millisecond

// download fetches url into target through a temporary file, calling onBytes
// with the running byte count while the transfer is in flight.
func (r *Runtime) download(ctx context.Context, url, target string, onBytes func(done, total int64)) error {
	tmp := target + ".part"
	req, err := grab.NewRequest(tmp, url)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req = req.WithContext(ctx)
	req.NoResume = true

	resp := r.client.Do(req)

	ticker := time.NewTicker(progressTick)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ticker.C:
			if onBytes != nil {
				onBytes(resp.BytesComplete(), resp.Size())
			}
		case <-resp.Done:
			break loop
		}
	}

	if err := resp.Err(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("download of %s failed: %w", url, err)
	}
	if onBytes != nil {
		onBytes(resp.BytesComplete(), resp.Size())
	}
	return os.Rename(tmp, target)
}
