// Package notify delivers leave-request alerts over one of three channels:
// a desktop popup, a Firebase multicast push, or a server-sent event stream.
// The channel is chosen once at construction; callers only see Notifier.
package notify

import (
	"context"
	"fmt"
	"time"
)

// Record types carried in the "type" field of every notification.
const (
	TypeLeaveRequest = "leave_request"
	TypeSummary      = "summary"
	TypeTest         = "test"
)

// Record is the structured payload delivered on every channel.
// Fire-and-forget: it has no identity and is never persisted.
type Record struct {
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Data      map[string]string `json:"data,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Alert describes one overdue leave request.
type Alert struct {
	MessageID string
	ThreadID  string
	Subject   string
	Recipient string // best-effort email extracted from the To header; may be empty
	DaysOld   string // formatted with one decimal, e.g. "3.0"
	HoursOld  float64
}

// Notifier is implemented by every channel variant. All methods return
// true when the alert was attempted and not known to fail, so a single
// delivery failure never interrupts a scan cycle.
type Notifier interface {
	NotifyPendingLeaveRequest(ctx context.Context, a Alert) bool
	NotifySummary(ctx context.Context, count int) bool
	NotifyTest(ctx context.Context) bool
}

func leaveRequestRecord(a Alert) Record {
	subject := a.Subject
	if subject == "" {
		subject = "No Subject"
	}
	recipient := a.Recipient
	if recipient == "" {
		recipient = "unknown recipient"
	}
	return Record{
		Type:    TypeLeaveRequest,
		Title:   "Pending Leave Request",
		Message: fmt.Sprintf("%q sent to %s has had no reply for %s days", subject, recipient, a.DaysOld),
		Data: map[string]string{
			"messageId": a.MessageID,
			"threadId":  a.ThreadID,
			"subject":   subject,
			"recipient": recipient,
			"daysOld":   a.DaysOld,
		},
		Timestamp: time.Now(),
	}
}

func summaryRecord(count int) Record {
	return Record{
		Type:      TypeSummary,
		Title:     "Leave Request Check Complete",
		Message:   fmt.Sprintf("%d leave request(s) are awaiting a reply", count),
		Data:      map[string]string{"pendingCount": fmt.Sprintf("%d", count)},
		Timestamp: time.Now(),
	}
}

func testRecord() Record {
	return Record{
		Type:      TypeTest,
		Title:     "Leavewatch Test",
		Message:   "Notifications are working",
		Timestamp: time.Now(),
	}
}
