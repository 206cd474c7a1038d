package watch

import (
	"sort"
	"strings"

	"github.com/bassamadnan/leavewatch/gmail"
)

// HasReply reports whether the conversation holding the original message
// contains a genuine reply to it. This is a structural heuristic over
// sender identity, subject prefix and timestamp ordering, not a content
// classifier.
//
// The thread is ordered by send time (stable, so equal timestamps keep
// provider arrival order) and the earliest message is presumed to be the
// true conversation starter, which can differ from the classified original
// when timestamps are missing or skewed; both are excluded from reply
// candidacy. A remaining message counts as a reply when it was sent after
// the original and either came from a different sender or carries a "re:"
// subject, which catches self-CCs and mailing-list echoes.
func HasReply(original gmail.Message, thread []gmail.Message) bool {
	if original.ThreadID == "" {
		return false
	}
	if len(thread) == 0 {
		return false
	}

	sorted := make([]gmail.Message, len(thread))
	copy(sorted, thread)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].InternalDate < sorted[j].InternalDate
	})
	firstMessage := sorted[0]

	for _, msg := range sorted {
		if msg.ID == original.ID || msg.ID == firstMessage.ID {
			continue
		}
		if msg.InternalDate <= original.InternalDate {
			continue
		}
		if msg.From != original.From {
			return true
		}
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(msg.Subject)), "re:") {
			return true
		}
	}
	return false
}
