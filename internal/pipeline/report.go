package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/orgmatch/internal/model"
	"github.com/sells-group/orgmatch/internal/priority"
)

// FormatReport renders a human-readable summary of a run. top bounds the
// number of ranked records listed; 0 lists all.
func FormatReport(res *Result, top int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Run Report: %s\n\n", res.RunID)

	b.WriteString("## Summary\n")
	if d := res.Dedupe; d != nil {
		fmt.Fprintf(&b, "- Canonical records: %d\n", len(d.Records))
		fmt.Fprintf(&b, "- Duplicate candidates: %d\n", len(d.Candidates))
		fmt.Fprintf(&b, "- Merges: %d\n", len(d.Merges))
		fmt.Fprintf(&b, "- Manual review: %d\n", len(d.ReviewQueue))
		fmt.Fprintf(&b, "- Marked duplicate: %d\n", len(d.Duplicates))
		fmt.Fprintf(&b, "- Skipped: %d\n", d.Skipped)
	}
	fmt.Fprintf(&b, "- Scored: %d\n", len(res.Scored))
	fmt.Fprintf(&b, "- Errors: %d\n", len(res.Errors))
	if res.Canceled {
		b.WriteString("- Canceled: yes\n")
	}
	if res.Duration > 0 {
		fmt.Fprintf(&b, "- Duration: %s\n", res.Duration.Round(1e6))
	}
	b.WriteString("\n")

	b.WriteString("## Tiers\n")
	for _, t := range model.AllTiers() {
		fmt.Fprintf(&b, "- %s: %d\n", t, len(res.ByTier[t]))
	}
	b.WriteString("\n")

	b.WriteString("## Ranked Records\n")
	if len(res.Scored) == 0 {
		b.WriteString("No records scored.\n\n")
	} else {
		n := len(res.Scored)
		if top > 0 && top < n {
			n = top
		}
		for _, s := range res.Scored[:n] {
			name := s.Record.Name
			if name == "" {
				name = s.Record.ID
			}
			fmt.Fprintf(&b, "- **%s** (%s): %.2f [%s], quality %.0f\n",
				name, s.Record.ID, s.Priority.Overall, s.Priority.Tier, s.Quality.Overall)
			fmt.Fprintf(&b, "  %s\n", formatComponents(s.Priority.Components))
			if len(s.Priority.RecommendedActions) > 0 {
				fmt.Fprintf(&b, "  Next: %s\n", s.Priority.RecommendedActions[0])
			}
		}
		b.WriteString("\n")
	}

	if d := res.Dedupe; d != nil && len(d.ReviewQueue) > 0 {
		b.WriteString("## Manual Review\n")
		for _, c := range d.ReviewQueue {
			fmt.Fprintf(&b, "- %s / %s: similarity %.2f, confidence %.2f\n",
				c.RecordID1, c.RecordID2, c.Similarity, c.Confidence)
		}
		b.WriteString("\n")
	}

	if len(res.Errors) > 0 {
		b.WriteString("## Errors\n")
		errs := append(res.Errors[:0:0], res.Errors...)
		sort.SliceStable(errs, func(i, j int) bool { return errs[i].Index < errs[j].Index })
		for _, e := range errs {
			id := e.RecordID
			if id == "" {
				id = fmt.Sprintf("#%d", e.Index)
			}
			fmt.Fprintf(&b, "- %s: %s\n", id, e.Err)
		}
	}
	return b.String()
}

func formatComponents(c map[string]float64) string {
	parts := make([]string, 0, len(priority.Components))
	for _, name := range priority.Components {
		if v, ok := c[name]; ok {
			parts = append(parts, fmt.Sprintf("%s %.0f", name, v))
		}
	}
	return strings.Join(parts, ", ")
}
