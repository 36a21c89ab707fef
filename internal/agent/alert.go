package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/psiobot/internal/domain"
	"github.com/ashureev/psiobot/internal/metrics"
)

// criticalMarkers identify credential or account failures in upstream errors.
var criticalMarkers = []string{"401", "403", "unauthorized", "suspended"}

// IsCritical reports whether err signals an authorization or suspension
// failure that an operator must see.
func IsCritical(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrUnauthorized) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range criticalMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// AlertMessage formats a critical alert.
func AlertMessage(where string, err error, mention string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 **CRITICAL SHROUD ERROR** 🚨\nContext: %s\nError: %v\n", where, err)
	if mention != "" {
		b.WriteString(mention + " - ")
	}
	b.WriteString("Check server immediately!")
	return b.String()
}

// alertIfCritical notifies the operator about critical errors, at most once
// per throttle window.
func (o *Orchestrator) alertIfCritical(ctx context.Context, where string, err error) DeliveryResult {
	if !IsCritical(err) {
		return skipped(where)
	}
	if !o.alerts.Allow() {
		metrics.AlertsSuppressed.Inc()
		o.logger.Debug("Critical alert suppressed", "context", where, "error", err)
		return skipped(where)
	}

	o.logger.Error("Sending critical alert", "context", where, "error", err)
	perr := o.notifier.PostMessage(ctx, AlertMessage(where, err, o.mention))
	o.record(ctx, domain.ActionAlert, where, err.Error(), perr)
	if perr != nil {
		o.logger.Error("Critical alert delivery failed", "context", where, "error", perr)
		return failed(where, perr)
	}
	metrics.AlertsSent.Inc()
	return delivered(where)
}
