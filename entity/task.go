package entity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/piwi3910/gosatellite/config"
)

// Defaults for PollTask.
const (
	DefaultPollRate    = 5 * time.Second
	DefaultPollTimeout = 5 * time.Minute
)

// PollOptions controls PollTask. Zero values mean the defaults.
type PollOptions struct {
	// Rate is the pause between successive GETs of the task.
	Rate time.Duration

	// Timeout bounds the whole wait. The caller's context deadline
	// applies as well, whichever is sooner.
	Timeout time.Duration
}

// taskPath is where foreman task documents live, relative to the
// server URL.
const taskPath = "foreman_tasks/api/tasks"

// PollTask fetches the task until it leaves the running states, then
// returns its final document. A task that ends with a result other
// than "success" yields a *TaskFailedError; running out of time yields
// a *TaskTimeoutError carrying the last document seen.
func PollTask(ctx context.Context, cfg *config.Server, taskID string, opts PollOptions) (map[string]any, error) {
	rate := opts.Rate
	if rate <= 0 {
		rate = DefaultPollRate
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cl := clientFor(cfg)
	url := strings.TrimRight(cfg.URL, "/") + "/" + taskPath + "/" + taskID

	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	var last map[string]any
	for {
		resp, err := cl.Get(ctx, url, nil)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, &TaskTimeoutError{TaskID: taskID, Info: last}
			}
			return nil, err
		}
		if err := resp.Err(); err != nil {
			return nil, err
		}
		info, err := resp.JSON()
		if err != nil {
			return nil, err
		}
		last = info

		state, _ := info["state"].(string)
		if state == "paused" || state == "stopped" {
			result, _ := info["result"].(string)
			if result != "success" {
				return nil, &TaskFailedError{TaskID: taskID, Result: result, Info: info}
			}
			return info, nil
		}

		select {
		case <-ctx.Done():
			return nil, &TaskTimeoutError{TaskID: taskID, Info: last}
		case <-ticker.C:
		}
	}
}
