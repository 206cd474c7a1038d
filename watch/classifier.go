package watch

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bassamadnan/leavewatch/gmail"
)

// replyPrefixRe matches subjects that are replies or forwards of an
// existing conversation rather than fresh requests.
var replyPrefixRe = regexp.MustCompile(`(?i)^(re|fwd?|fw):`)

// Candidate is a sent message classified as an original leave request.
// HoursOld is recomputed on every scan, never cached between cycles.
type Candidate struct {
	gmail.Message
	HoursOld float64
}

// BuildQuery produces the Gmail search string for one scan: the user's own
// sent mail, bounded below in time, with a subject OR-clause over the
// configured keywords. The query is only a coarse pre-filter; Classify is
// the ground truth.
func BuildQuery(keywords []string, daysBack int) string {
	after := time.Now().AddDate(0, 0, -daysBack).Format("2006/01/02")
	quoted := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		quoted = append(quoted, fmt.Sprintf("%q", kw))
	}
	return fmt.Sprintf("in:sent after:%s subject:(%s)", after, strings.Join(quoted, " OR "))
}

// Classify filters search results down to original leave requests: the
// subject must not carry a reply/forward prefix and must contain at least
// one keyword, both case-insensitively. Messages with empty subjects fail
// the keyword test and are excluded.
func Classify(messages []gmail.Message, keywords []string) []Candidate {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		lowered = append(lowered, strings.ToLower(kw))
	}
	var candidates []Candidate
	for _, msg := range messages {
		subject := strings.TrimSpace(msg.Subject)
		if replyPrefixRe.MatchString(subject) {
			continue
		}
		subjectLower := strings.ToLower(subject)
		for _, kw := range lowered {
			if strings.Contains(subjectLower, kw) {
				candidates = append(candidates, Candidate{Message: msg})
				break
			}
		}
	}
	return candidates
}
