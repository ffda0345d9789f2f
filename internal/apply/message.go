package apply

import (
	"fmt"
	"strings"

	"github.com/scmtools/diffstack/internal/review"
)

// CommitMessage formats the message for a materialized diff: the
// revision's title and prose first, then trailers identifying exactly
// which review state the commit captures.
func CommitMessage(rev *review.Revision, diff *review.Diff) string {
	var b strings.Builder

	title := strings.TrimSpace(rev.Title)
	if title == "" {
		title = fmt.Sprintf("Apply diff %d of revision %d", diff.ID, rev.ID)
	}

	b.WriteString(title)
	b.WriteString("\n")

	if summary := strings.TrimSpace(rev.Summary); summary != "" {
		b.WriteString("\n")
		b.WriteString(summary)
		b.WriteString("\n")
	}

	if plan := strings.TrimSpace(rev.TestPlan); plan != "" {
		b.WriteString("\nTest Plan: ")
		b.WriteString(plan)
		b.WriteString("\n")
	}

	b.WriteString("\n")

	if rev.URI != "" {
		fmt.Fprintf(&b, "Review-Revision: %s\n", rev.URI)
	} else {
		fmt.Fprintf(&b, "Review-Revision: %d\n", rev.ID)
	}

	fmt.Fprintf(&b, "Review-Diff: %d\n", diff.ID)

	return b.String()
}
