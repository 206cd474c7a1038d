package watch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassamadnan/leavewatch/config"
	"github.com/bassamadnan/leavewatch/gmail"
	"github.com/bassamadnan/leavewatch/notify"
)

type fakeStore struct {
	messages       []gmail.Message
	threads        map[string][]gmail.Message
	searchErr      error
	threadErr      error
	getThreadCalls int
}

func (f *fakeStore) Search(ctx context.Context, query string, maxResults int64) ([]gmail.Message, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.messages, nil
}

func (f *fakeStore) GetThread(ctx context.Context, threadID string) ([]gmail.Message, error) {
	f.getThreadCalls++
	if f.threadErr != nil {
		return nil, f.threadErr
	}
	return f.threads[threadID], nil
}

type fakeNotifier struct {
	alerts    []notify.Alert
	summaries []int
	tests     int
	fail      bool
}

func (f *fakeNotifier) NotifyPendingLeaveRequest(ctx context.Context, a notify.Alert) bool {
	if f.fail {
		return false
	}
	f.alerts = append(f.alerts, a)
	return true
}

func (f *fakeNotifier) NotifySummary(ctx context.Context, count int) bool {
	if count == 0 {
		return true
	}
	if f.fail {
		return false
	}
	f.summaries = append(f.summaries, count)
	return true
}

func (f *fakeNotifier) NotifyTest(ctx context.Context) bool { return !f.fail }

func testConfig(timeoutHours int) *config.Config {
	return &config.Config{
		Keywords:           []string{"leave request"},
		ReplyTimeoutHours:  timeoutHours,
		CheckIntervalHours: 24,
		ScheduleHours:      12,
		MaxResults:         50,
	}
}

func sentHoursAgo(hours float64) int64 {
	return time.Now().Add(-time.Duration(hours * float64(time.Hour))).UnixMilli()
}

func TestRunOnceOverdueWithoutReply(t *testing.T) {
	original := gmail.Message{
		ID: "m1", ThreadID: "t1", From: "me@example.com",
		To:      "HR Team <hr@example.com>",
		Subject: "Leave Request - John", InternalDate: sentHoursAgo(72),
	}
	store := &fakeStore{
		messages: []gmail.Message{original},
		threads:  map[string][]gmail.Message{"t1": {original}},
	}
	notifier := &fakeNotifier{}
	agent := NewAgent(store, notifier, testConfig(48))

	res := agent.RunOnce(context.Background())

	assert.Equal(t, 1, res.Checked)
	assert.Equal(t, 1, res.Pending)
	assert.Equal(t, 1, res.Notified)
	assert.Empty(t, res.Errors)

	require.Len(t, notifier.alerts, 1)
	alert := notifier.alerts[0]
	assert.Equal(t, "m1", alert.MessageID)
	assert.Equal(t, "3.0", alert.DaysOld)
	assert.Equal(t, "hr@example.com", alert.Recipient)

	require.Len(t, notifier.summaries, 1)
	assert.Equal(t, 1, notifier.summaries[0])
}

func TestRunOnceRepliedCandidate(t *testing.T) {
	original := gmail.Message{
		ID: "m1", ThreadID: "t1", From: "me@example.com",
		Subject: "Leave Request - John", InternalDate: sentHoursAgo(72),
	}
	reply := gmail.Message{
		ID: "m2", ThreadID: "t1", From: "boss@example.com",
		Subject: "Re: Leave Request - John", InternalDate: sentHoursAgo(62),
	}
	store := &fakeStore{
		messages: []gmail.Message{original},
		threads:  map[string][]gmail.Message{"t1": {original, reply}},
	}
	notifier := &fakeNotifier{}
	agent := NewAgent(store, notifier, testConfig(48))

	res := agent.RunOnce(context.Background())

	assert.Equal(t, 1, res.Checked)
	assert.Zero(t, res.Pending)
	assert.Zero(t, res.Notified)
	assert.Empty(t, notifier.alerts)
	assert.Empty(t, notifier.summaries)

	// Replied candidates are marked processed and skipped next cycle.
	res = agent.RunOnce(context.Background())
	assert.Zero(t, res.Checked)
}

func TestRunOnceIdempotent(t *testing.T) {
	original := gmail.Message{
		ID: "m1", ThreadID: "t1", From: "me@example.com",
		Subject: "Leave Request", InternalDate: sentHoursAgo(72),
	}
	store := &fakeStore{
		messages: []gmail.Message{original},
		threads:  map[string][]gmail.Message{"t1": {original}},
	}
	notifier := &fakeNotifier{}
	agent := NewAgent(store, notifier, testConfig(48))

	first := agent.RunOnce(context.Background())
	assert.Equal(t, 1, first.Notified)

	second := agent.RunOnce(context.Background())
	assert.Zero(t, second.Notified)
	assert.Zero(t, second.Pending)
	assert.Len(t, notifier.alerts, 1, "no re-alert for a processed candidate")
}

func TestRunOnceWithinGracePeriod(t *testing.T) {
	original := gmail.Message{
		ID: "m1", ThreadID: "t1", From: "me@example.com",
		Subject: "Leave Request", InternalDate: sentHoursAgo(10),
	}
	store := &fakeStore{
		messages: []gmail.Message{original},
		threads:  map[string][]gmail.Message{"t1": {original}},
	}
	notifier := &fakeNotifier{}
	agent := NewAgent(store, notifier, testConfig(48))

	res := agent.RunOnce(context.Background())

	assert.Equal(t, 1, res.Checked)
	assert.Zero(t, res.Pending)
	assert.Zero(t, store.getThreadCalls, "reply resolution is skipped inside the grace period")

	// Not marked processed: the candidate is re-evaluated next cycle.
	res = agent.RunOnce(context.Background())
	assert.Equal(t, 1, res.Checked)
}

func TestRunOnceUnknownAgeNeverOverdue(t *testing.T) {
	original := gmail.Message{
		ID: "m1", ThreadID: "t1", From: "me@example.com",
		Subject: "Leave Request", InternalDate: 0,
	}
	store := &fakeStore{messages: []gmail.Message{original}}
	notifier := &fakeNotifier{}
	agent := NewAgent(store, notifier, testConfig(1))

	res := agent.RunOnce(context.Background())
	assert.Zero(t, res.Pending)
	assert.Zero(t, store.getThreadCalls)
}

func TestRunOnceSearchFailure(t *testing.T) {
	store := &fakeStore{searchErr: errors.New("rate limited")}
	notifier := &fakeNotifier{}
	agent := NewAgent(store, notifier, testConfig(48))

	res := agent.RunOnce(context.Background())

	assert.Zero(t, res.Checked)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "search failed")
}

func TestRunOnceThreadFetchFailureStillAlerts(t *testing.T) {
	original := gmail.Message{
		ID: "m1", ThreadID: "t1", From: "me@example.com",
		Subject: "Leave Request", InternalDate: sentHoursAgo(72),
	}
	store := &fakeStore{
		messages:  []gmail.Message{original},
		threadErr: errors.New("backend unavailable"),
	}
	notifier := &fakeNotifier{}
	agent := NewAgent(store, notifier, testConfig(48))

	res := agent.RunOnce(context.Background())

	assert.Equal(t, 1, res.Pending)
	assert.Equal(t, 1, res.Notified)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "thread fetch")
}

func TestRunOnceNotifierFailureIsRecorded(t *testing.T) {
	original := gmail.Message{
		ID: "m1", ThreadID: "t1", From: "me@example.com",
		Subject: "Leave Request", InternalDate: sentHoursAgo(72),
	}
	store := &fakeStore{
		messages: []gmail.Message{original},
		threads:  map[string][]gmail.Message{"t1": {original}},
	}
	notifier := &fakeNotifier{fail: true}
	agent := NewAgent(store, notifier, testConfig(48))

	res := agent.RunOnce(context.Background())

	assert.Equal(t, 1, res.Pending)
	assert.Zero(t, res.Notified)
	require.Len(t, res.Errors, 1)

	// Still marked processed: one attempt per candidate per process.
	res = agent.RunOnce(context.Background())
	assert.Zero(t, res.Pending)
}

func TestLookbackDays(t *testing.T) {
	tests := []struct {
		timeoutHours int
		expected     int
	}{
		{1, 7},
		{48, 7},
		{24 * 6, 7},
		{24 * 7, 8},
		{24*10 + 1, 12},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, lookbackDays(tc.timeoutHours), "timeout %dh", tc.timeoutHours)
	}
}

func TestExtractRecipient(t *testing.T) {
	assert.Equal(t, "hr@example.com", extractRecipient("HR Team <hr@example.com>"))
	assert.Equal(t, "a@b.co", extractRecipient("a@b.co, c@d.co"))
	assert.Empty(t, extractRecipient("undisclosed recipients"))
}

func TestTracker(t *testing.T) {
	tr := NewTracker()
	assert.False(t, tr.Contains("x"))
	tr.Mark("x")
	tr.Mark("x")
	assert.True(t, tr.Contains("x"))
	assert.Equal(t, 1, tr.Len())
}
