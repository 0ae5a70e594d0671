package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/avendano/forecourt/internal/models"
	"github.com/avendano/forecourt/internal/store"
)

// runDigestScheduler fires the daily operator digest on the configured cron
// expression. A digest with no unresolved tickets is suppressed.
func (d *Daemon) runDigestScheduler(ctx context.Context) {
	expr := d.cfg.Digest.Cron
	next := nextCronDuration(expr)
	if next == 0 {
		d.log.Warn("invalid digest cron expression, digest disabled", zap.String("cron", expr))
		return
	}
	timer := time.NewTimer(next)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			d.fireDigest(ctx)
			if next := nextCronDuration(expr); next > 0 {
				timer.Reset(next)
			} else {
				return
			}
		}
	}
}

// fireDigest builds and delivers one digest to every configured recipient.
func (d *Daemon) fireDigest(ctx context.Context) {
	if d.tickets == nil || len(d.cfg.Digest.Recipients) == 0 {
		return
	}
	text, err := BuildDigest(d.tickets)
	if err != nil {
		d.log.Error("build digest", zap.Error(err))
		return
	}
	if text == "" {
		d.log.Debug("no unresolved tickets, digest suppressed")
		return
	}
	for _, jid := range d.cfg.Digest.Recipients {
		if err := d.Deliver(ctx, jid, text); err != nil {
			d.log.Error("send digest", zap.String("jid", jid), zap.Error(err))
		}
	}
}

// BuildDigest renders the unresolved-ticket summary sent to operators.
// Returns the empty string when there is nothing to report.
func BuildDigest(tickets *store.TicketStore) (string, error) {
	var lines []string
	for _, status := range []string{models.TicketOpen, models.TicketInProgress} {
		rows, _, err := tickets.List(store.TicketListOpts{Status: status, Limit: 50})
		if err != nil {
			return "", err
		}
		for _, t := range rows {
			lines = append(lines, fmt.Sprintf("- [%s/%s] %s %s (%s)",
				t.Status, t.Priority, t.Category, t.Summary, t.ID[:8]))
		}
	}
	if len(lines) == 0 {
		return "", nil
	}
	header := fmt.Sprintf("Daily ticket digest (%s): %d unresolved",
		time.Now().Format("2006-01-02"), len(lines))
	return header + "\n" + strings.Join(lines, "\n"), nil
}
