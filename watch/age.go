package watch

import (
	"time"

	"github.com/bassamadnan/leavewatch/gmail"
)

// AgeHours returns how long ago the message was sent, in fractional hours.
// A missing or zero send timestamp yields 0 so that messages with unknown
// age never trip the overdue check.
func AgeHours(msg gmail.Message) float64 {
	if msg.InternalDate <= 0 {
		return 0
	}
	return time.Since(time.UnixMilli(msg.InternalDate)).Hours()
}
