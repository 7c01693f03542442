package docstore

import (
	"context"
	"encoding/json"
	"time"
)

const DefaultPollInterval = 2 * time.Second

type queryFunc func(ctx context.Context) ([]Document, error)

// pollQuery emulates a live query for backends without change feeds. The
// first result is always delivered; later results only when they differ.
func pollQuery(ctx context.Context, interval time.Duration, query queryFunc, onNext func([]Document), onError func(error)) func() {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last string
		first := true
		for {
			docs, err := query(ctx)
			if ctx.Err() != nil {
				return
			}
			switch {
			case err != nil:
				if onError != nil {
					onError(err)
				}
			default:
				fp := fingerprint(docs)
				if first || fp != last {
					first = false
					last = fp
					onNext(docs)
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return cancel
}

func fingerprint(docs []Document) string {
	raw, err := json.Marshal(docs)
	if err != nil {
		return ""
	}
	return string(raw)
}
