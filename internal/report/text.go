package report

import (
	"fmt"
	"io"
	"strings"
)

// maxHistoryRows caps the "records with history" section of the text report.
const maxHistoryRows = 5

const rule = "============================================================"

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n--- %s ---\n", title)
}

func entity(id int64, label string) string {
	if label == "" {
		return fmt.Sprintf("ID %d", id)
	}
	return fmt.Sprintf("ID %d: %s", id, label)
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// WriteText renders the report for a terminal.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "SCD2 VERIFICATION REPORT: %s\n", r.Dimension)
	fmt.Fprintln(&b, rule)

	section(&b, "Summary")
	fmt.Fprintf(&b, "Source records:       %d\n", r.Stats.Source)
	fmt.Fprintf(&b, "Active versions:      %d\n", r.Stats.Active)
	fmt.Fprintf(&b, "Historical versions:  %d\n", r.Stats.Historical)
	fmt.Fprintf(&b, "Total versions:       %d\n", r.Stats.Total)
	if len(r.Untracked) > 0 {
		fmt.Fprintf(&b, "Untracked ids:        %d\n", len(r.Untracked))
	}

	section(&b, fmt.Sprintf("New records (not in target): %d", len(r.New)))
	if len(r.New) == 0 {
		fmt.Fprintln(&b, "No new records: every source id has an active version.")
	}
	for _, n := range r.New {
		fmt.Fprintf(&b, "  %s\n", entity(n.ID, n.Label))
	}

	section(&b, fmt.Sprintf("Updated records (fingerprint mismatch): %d", len(r.Updated)))
	if len(r.Updated) == 0 {
		fmt.Fprintln(&b, "No updates: every active version matches its source row.")
	}
	for _, u := range r.Updated {
		fmt.Fprintf(&b, "  %s\n", entity(u.ID, u.Label))
		for _, d := range u.Diffs {
			fmt.Fprintf(&b, "    %s: %s -> %s\n", d.Column, d.Old, d.New)
		}
	}

	if len(r.Invalid) > 0 {
		section(&b, fmt.Sprintf("Invalid source rows (skipped by runs): %d", len(r.Invalid)))
		for _, s := range r.Invalid {
			fmt.Fprintf(&b, "  ID %d: %s: %s\n", s.ID, s.Column, s.Reason)
		}
	}

	section(&b, fmt.Sprintf("Synchronized records: %d", r.Synchronized))

	section(&b, "Recent changes")
	if len(r.Recent) == 0 {
		fmt.Fprintln(&b, "  No versions yet")
	}
	for _, c := range r.Recent {
		status := "HISTORICAL"
		if c.Active {
			status = "ACTIVE"
		}
		fmt.Fprintf(&b, "  %s %s (%s)\n", entity(c.ID, c.Label), status, plural(c.Versions, "version"))
		fmt.Fprintf(&b, "    started: %s\n", c.ValidFrom)
	}

	if len(r.WithHistory) > 0 {
		section(&b, fmt.Sprintf("Records with history: %d", len(r.WithHistory)))
		for i, vc := range r.WithHistory {
			if i == maxHistoryRows {
				break
			}
			fmt.Fprintf(&b, "  ID %d: %s\n", vc.ID, plural(vc.Versions, "version"))
		}
	}

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "ACTION SUMMARY")
	fmt.Fprintln(&b, rule)
	if r.NeedsAction == 0 {
		fmt.Fprintln(&b, "All records are synchronized. No action required.")
	} else {
		fmt.Fprintf(&b, "%d record(s) need processing:\n", r.NeedsAction)
		if len(r.New) > 0 {
			fmt.Fprintf(&b, "  - %d new record(s) to insert\n", len(r.New))
		}
		if len(r.Updated) > 0 {
			fmt.Fprintf(&b, "  - %d record(s) to update with a new version\n", len(r.Updated))
		}
		fmt.Fprintf(&b, "Run: scd2 run --dimension %s\n", r.Dimension)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// String renders the report as text.
func (r *Report) String() string {
	var b strings.Builder
	_ = r.WriteText(&b)
	return b.String()
}
