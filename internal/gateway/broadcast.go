package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/avendano/forecourt/internal/store"
)

// broadcastPause spaces consecutive sends so a large broadcast does not
// hammer the platform.
const broadcastPause = 250 * time.Millisecond

// BroadcastResult reports the outcome of one broadcast delivery.
type BroadcastResult struct {
	JID     string `json:"jid"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Broadcast sends text to each JID in turn. A failed delivery is recorded
// and the fan-out continues; the context cancels the remainder.
func (d *Daemon) Broadcast(ctx context.Context, jids []string, text string) []BroadcastResult {
	results := make([]BroadcastResult, 0, len(jids))
	for i, jid := range jids {
		if err := ctx.Err(); err != nil {
			results = append(results, BroadcastResult{JID: jid, Error: err.Error()})
			continue
		}
		res := BroadcastResult{JID: jid, Success: true}
		if err := d.Deliver(ctx, jid, text); err != nil {
			res.Success = false
			res.Error = err.Error()
			d.log.Warn("broadcast delivery failed", zap.String("jid", jid), zap.Error(err))
		}
		results = append(results, res)
		if i < len(jids)-1 {
			time.Sleep(broadcastPause)
		}
	}
	return results
}

// BroadcastFiltered resolves the recipient list from the allow-list and tag
// filter, then fans out.
func (d *Daemon) BroadcastFiltered(ctx context.Context, f store.BroadcastFilter, text string) ([]BroadcastResult, error) {
	jids, err := d.contacts.BroadcastJIDs(f)
	if err != nil {
		return nil, err
	}
	return d.Broadcast(ctx, jids, text), nil
}
