package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jredmond/openhouse/internal/enrollment"
	"github.com/jredmond/openhouse/internal/sequence"
	"github.com/jredmond/openhouse/internal/session"
	"github.com/jredmond/openhouse/internal/visitor"
)

// printJSON marshals v as indented JSON and writes it to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printSessionDetail prints a single session in text format.
func printSessionDetail(s *session.Session) {
	fmt.Printf("Session %s\n", s.ID)
	fmt.Printf("  Agent:     %s\n", s.AgentID)
	fmt.Printf("  Address:   %s\n", s.Address)
	fmt.Printf("  Status:    %s\n", s.Status)
	fmt.Printf("  Window:    %s - %s\n",
		s.ScheduledStart.Local().Format("2006-01-02 15:04"),
		s.ScheduledEnd.Local().Format("15:04"))
	if s.ActualStart != nil {
		fmt.Printf("  Started:   %s\n", s.ActualStart.Local().Format("2006-01-02 15:04"))
	}
	if s.ActualEnd != nil {
		fmt.Printf("  Ended:     %s\n", s.ActualEnd.Local().Format("2006-01-02 15:04"))
	}
	fmt.Printf("  Visitors:  %d (low %d / medium %d / high %d)\n",
		s.VisitorCount, s.InterestLow, s.InterestMedium, s.InterestHigh)
}

// printSessionTable prints a list of sessions as a formatted table.
func printSessionTable(sessions []*session.Session) error {
	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "ID\tADDRESS\tSTATUS\tSTART\tVISITORS"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(w, "--\t-------\t------\t-----\t--------"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	for _, s := range sessions {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			truncate(s.ID, 8), truncate(s.Address, 40), s.Status,
			s.ScheduledStart.Local().Format("2006-01-02 15:04"), s.VisitorCount); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	fmt.Printf("\nTotal: %d sessions\n", len(sessions))
	return nil
}

// printVisitorDetail prints a single visitor in text format.
func printVisitorDetail(v *visitor.Visitor) {
	fmt.Printf("Visitor %s\n", v.ID)
	fmt.Printf("  Session:   %s\n", v.SessionID)
	fmt.Printf("  Name:      %s\n", v.Name)
	fmt.Printf("  Email:     %s\n", v.Email)
	if v.Phone != "" {
		fmt.Printf("  Phone:     %s\n", v.Phone)
	}
	fmt.Printf("  Interest:  %s\n", v.InterestLevel)
	fmt.Printf("  Checked:   %s\n", v.CheckInTime.Local().Format("2006-01-02 15:04"))
	if v.Source != "" {
		fmt.Printf("  Source:    %s\n", v.Source)
	}
	if v.EnrollmentID != nil {
		fmt.Printf("  Enrolled:  %s\n", *v.EnrollmentID)
	}
	if v.FollowUpGenerated || v.FollowUpSent {
		fmt.Printf("  Follow-up: generated=%t sent=%t\n", v.FollowUpGenerated, v.FollowUpSent)
	}
	if v.Notes != "" {
		fmt.Printf("  Notes:\n    %s\n", v.Notes)
	}
}

// printVisitorTable prints a list of visitors as a formatted table.
func printVisitorTable(visitors []*visitor.Visitor) error {
	if len(visitors) == 0 {
		fmt.Println("No visitors found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "ID\tNAME\tEMAIL\tINTEREST\tCHECKED IN"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(w, "--\t----\t-----\t--------\t----------"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	for _, v := range visitors {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			truncate(v.ID, 8), truncate(v.Name, 30), truncate(v.Email, 30),
			v.InterestLevel, v.CheckInTime.Local().Format("15:04")); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	fmt.Printf("\nTotal: %d visitors\n", len(visitors))
	return nil
}

// printSequenceDetail prints a single sequence with its touchpoints.
func printSequenceDetail(sq *sequence.Sequence) {
	fmt.Printf("Sequence %s\n", sq.ID)
	fmt.Printf("  Agent:   %s\n", sq.AgentID)
	fmt.Printf("  Name:    %s\n", sq.Name)
	fmt.Printf("  Target:  %s\n", sq.Target)
	fmt.Printf("  Active:  %t\n", sq.Active)
	fmt.Printf("  Steps:\n")
	for _, tp := range sq.Touchpoints {
		line := fmt.Sprintf("    %d. after %s via %s", tp.Position+1, formatDelay(tp.DelayMinutes), tp.Channel)
		if tp.TemplatePrompt != "" {
			line += ": " + truncate(tp.TemplatePrompt, 60)
		}
		fmt.Println(line)
	}
}

// printSequenceTable prints a list of sequences as a formatted table.
func printSequenceTable(sequences []*sequence.Sequence) error {
	if len(sequences) == 0 {
		fmt.Println("No sequences found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "ID\tNAME\tTARGET\tACTIVE\tSTEPS"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(w, "--\t----\t------\t------\t-----"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	for _, sq := range sequences {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%d\n",
			truncate(sq.ID, 8), truncate(sq.Name, 30), sq.Target, sq.Active, len(sq.Touchpoints)); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	fmt.Printf("\nTotal: %d sequences\n", len(sequences))
	return nil
}

// printEnrollmentDetail prints a single enrollment in text format.
func printEnrollmentDetail(e *enrollment.Enrollment) {
	fmt.Printf("Enrollment %s\n", e.ID)
	fmt.Printf("  Visitor:   %s\n", e.VisitorID)
	fmt.Printf("  Sequence:  %s\n", e.SequenceID)
	fmt.Printf("  Session:   %s\n", e.SessionID)
	fmt.Printf("  Step:      %d\n", e.CurrentIndex)
	switch {
	case e.Completed():
		fmt.Printf("  Status:    completed %s\n", e.CompletedAt.Local().Format("2006-01-02 15:04"))
	case e.Paused:
		fmt.Printf("  Status:    paused\n")
	default:
		fmt.Printf("  Status:    active\n")
	}
	if e.NextTouchpointAt != nil {
		fmt.Printf("  Next:      %s\n", e.NextTouchpointAt.Local().Format("2006-01-02 15:04"))
	}
}

// printEnrollmentTable prints a list of enrollments as a formatted table.
func printEnrollmentTable(enrollments []*enrollment.Enrollment) error {
	if len(enrollments) == 0 {
		fmt.Println("No enrollments found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "ID\tVISITOR\tSEQUENCE\tSTEP\tSTATUS\tNEXT"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(w, "--\t-------\t--------\t----\t------\t----"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	for _, e := range enrollments {
		status := "active"
		if e.Paused {
			status = "paused"
		}
		if e.Completed() {
			status = "completed"
		}
		next := "-"
		if e.NextTouchpointAt != nil {
			next = e.NextTouchpointAt.Local().Format("2006-01-02 15:04")
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			truncate(e.ID, 8), truncate(e.VisitorID, 8), truncate(e.SequenceID, 8),
			e.CurrentIndex, status, next); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	fmt.Printf("\nTotal: %d enrollments\n", len(enrollments))
	return nil
}

// formatDelay renders a delay in minutes as a compact human string.
func formatDelay(minutes int) string {
	if minutes <= 0 {
		return "0m"
	}
	if minutes%1440 == 0 {
		return fmt.Sprintf("%dd", minutes/1440)
	}
	if minutes%60 == 0 {
		return fmt.Sprintf("%dh", minutes/60)
	}
	return fmt.Sprintf("%dm", minutes)
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
