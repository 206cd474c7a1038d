// Package watch implements the reply-detection engine: it scans sent mail
// for leave requests, decides whether each one's conversation already holds
// a genuine reply, and alerts exactly once per overdue request through the
// configured notification channel.
package watch

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/bassamadnan/leavewatch/config"
	"github.com/bassamadnan/leavewatch/gmail"
	"github.com/bassamadnan/leavewatch/notify"
)

// Store is the slice of the mailbox provider the engine consumes.
type Store interface {
	Search(ctx context.Context, query string, maxResults int64) ([]gmail.Message, error)
	GetThread(ctx context.Context, threadID string) ([]gmail.Message, error)
}

// Result summarizes one scan cycle for the caller and the HTTP surface.
type Result struct {
	Checked  int      `json:"checked_requests"`
	Pending  int      `json:"pending_requests"`
	Notified int      `json:"notifications_sent"`
	Errors   []string `json:"errors"`
}

// emailRe is a permissive address matcher for pulling a best-effort
// recipient out of a To header.
var emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// Agent runs scan cycles over one authorized mailbox. Each Agent owns its
// processed-id tracker; concurrent agents for different users must not
// share one. Candidates are evaluated strictly sequentially, which keeps
// the tracker lock-free and implicitly respects provider rate limits.
type Agent struct {
	store        Store
	notifier     notify.Notifier
	keywords     []string
	timeoutHours int
	maxResults   int64
	processed    *Tracker
}

func NewAgent(store Store, notifier notify.Notifier, cfg *config.Config) *Agent {
	return &Agent{
		store:        store,
		notifier:     notifier,
		keywords:     cfg.Keywords,
		timeoutHours: cfg.ReplyTimeoutHours,
		maxResults:   cfg.MaxResults,
		processed:    NewTracker(),
	}
}

// lookbackDays sizes the scan window so it always covers at least the
// reply timeout, with a one-week floor.
func lookbackDays(timeoutHours int) int {
	days := (timeoutHours+23)/24 + 1
	if days < 7 {
		return 7
	}
	return days
}

// extractRecipient pulls the first email address out of a To header.
// Returns "" when nothing matches.
func extractRecipient(to string) string {
	return emailRe.FindString(to)
}

// RunOnce executes one complete scan cycle. Errors inside the
// per-candidate loop are collected in the result and never abort the
// remaining candidates; only a failed search ends the cycle early.
func (a *Agent) RunOnce(ctx context.Context) Result {
	res := Result{Errors: []string{}}

	query := BuildQuery(a.keywords, lookbackDays(a.timeoutHours))
	log.Printf("Agent: scanning with query %q", query)
	messages, err := a.store.Search(ctx, query, a.maxResults)
	if err != nil {
		log.Printf("Agent: search failed: %v", err)
		res.Errors = append(res.Errors, fmt.Sprintf("search failed: %v", err))
		return res
	}

	candidates := Classify(messages, a.keywords)
	log.Printf("Agent: %d message(s) matched, %d classified as leave requests", len(messages), len(candidates))

	var overdue []Candidate
	for _, cand := range candidates {
		if ctx.Err() != nil {
			res.Errors = append(res.Errors, "scan cancelled")
			return res
		}
		if a.processed.Contains(cand.ID) {
			continue
		}
		res.Checked++

		cand.HoursOld = AgeHours(cand.Message)
		if cand.HoursOld < float64(a.timeoutHours) {
			// Still within the grace period; leave unresolved so a
			// later scan re-evaluates it.
			continue
		}

		thread, err := a.store.GetThread(ctx, cand.ThreadID)
		if err != nil {
			// Treat the thread as reply-less rather than dropping the
			// candidate: better a redundant alert than a lost one.
			log.Printf("Agent: thread fetch failed for %s: %v", cand.ID, err)
			res.Errors = append(res.Errors, fmt.Sprintf("thread fetch for %s: %v", cand.ID, err))
			overdue = append(overdue, cand)
			continue
		}
		if HasReply(cand.Message, thread) {
			log.Printf("Agent: %q already has a reply", cand.Subject)
			a.processed.Mark(cand.ID)
			continue
		}
		overdue = append(overdue, cand)
	}

	for _, cand := range overdue {
		res.Pending++
		alert := notify.Alert{
			MessageID: cand.ID,
			ThreadID:  cand.ThreadID,
			Subject:   cand.Subject,
			Recipient: extractRecipient(cand.To),
			DaysOld:   fmt.Sprintf("%.1f", cand.HoursOld/24),
			HoursOld:  cand.HoursOld,
		}
		if a.notifier.NotifyPendingLeaveRequest(ctx, alert) {
			res.Notified++
		} else {
			res.Errors = append(res.Errors, fmt.Sprintf("notification for %s not delivered", cand.ID))
		}
		a.processed.Mark(cand.ID)
	}

	if res.Pending > 0 {
		a.notifier.NotifySummary(ctx, res.Pending)
	}

	log.Printf("Agent: cycle done: checked=%d pending=%d notified=%d errors=%d",
		res.Checked, res.Pending, res.Notified, len(res.Errors))
	return res
}

// RunContinuous runs scan cycles forever at the given interval, starting
// with an immediate one. A cycle that records errors does not stop the
// loop; cancellation of ctx does, cleanly.
func (a *Agent) RunContinuous(ctx context.Context, interval time.Duration) {
	a.RunOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("Agent: stopping continuous scan")
			return
		case <-ticker.C:
			a.RunOnce(ctx)
		}
	}
}
