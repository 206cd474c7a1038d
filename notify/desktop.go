package notify

import (
	"context"
	"log"

	"github.com/gen2brain/beeep"
)

// Desktop shows platform popups. Intended for development and interactive
// use; there is no recipient registry, success is per-call.
type Desktop struct{}

func NewDesktop() *Desktop {
	return &Desktop{}
}

// NotifyPendingLeaveRequest pops an alert with sound, since an overdue
// request is the one event worth interrupting for.
func (d *Desktop) NotifyPendingLeaveRequest(ctx context.Context, a Alert) bool {
	rec := leaveRequestRecord(a)
	if err := beeep.Alert(rec.Title, rec.Message, ""); err != nil {
		log.Printf("Notify: desktop alert failed: %v", err)
		return false
	}
	return true
}

func (d *Desktop) NotifySummary(ctx context.Context, count int) bool {
	if count == 0 {
		return true
	}
	rec := summaryRecord(count)
	if err := beeep.Notify(rec.Title, rec.Message, ""); err != nil {
		log.Printf("Notify: desktop summary failed: %v", err)
		return false
	}
	return true
}

func (d *Desktop) NotifyTest(ctx context.Context) bool {
	rec := testRecord()
	if err := beeep.Notify(rec.Title, rec.Message, ""); err != nil {
		log.Printf("Notify: desktop test notification failed: %v", err)
		return false
	}
	return true
}
