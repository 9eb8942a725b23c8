package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jredmond/openhouse/internal/auth"
	"github.com/jredmond/openhouse/internal/session"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage open house sessions",
	}

	cmd.AddCommand(
		newSessionCreateCmd(),
		newSessionListCmd(),
		newSessionShowCmd(),
		newSessionStartCmd(),
		newSessionEndCmd(),
		newSessionCancelCmd(),
		newSessionDeleteCmd(),
		newSessionTokenCmd(),
	)

	return cmd
}

// parseWhen accepts RFC3339 or a local "2006-01-02 15:04" timestamp.
func parseWhen(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (want RFC3339 or \"2006-01-02 15:04\")", s)
	}
	return t, nil
}

func newSessionCreateCmd() *cobra.Command {
	var agent, address, startStr, endStr string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Schedule a new session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseWhen(startStr)
			if err != nil {
				return err
			}
			end, err := parseWhen(endStr)
			if err != nil {
				return err
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			if agent == "" {
				agent = a.cfg.AgentID
			}

			created, err := a.sessions.Create(session.CreateInput{
				AgentID:        agent,
				Address:        address,
				ScheduledStart: start,
				ScheduledEnd:   end,
			})
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(created)
			}

			printSessionDetail(created.Session)
			fmt.Printf("  Check-in: %s\n", created.QRPayload)
			return nil
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "agent ID (default: OH_AGENT_ID)")
	cmd.Flags().StringVar(&address, "address", "", "property address")
	cmd.Flags().StringVar(&startStr, "start", "", "scheduled start time")
	cmd.Flags().StringVar(&endStr, "end", "", "scheduled end time")
	mustMark(cmd, "address", "start", "end")

	return cmd
}

// mustMark marks flags required; the flag names are compile-time constants.
func mustMark(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}

func newSessionListCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := session.ListOptions{}
			if status != "" {
				if !session.ValidStatus(status) {
					return fmt.Errorf("invalid status %q", status)
				}
				opts.Status = session.Status(status)
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			sessions, err := a.sessions.List(opts)
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(sessions)
			}
			return printSessionTable(sessions)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (scheduled|active|completed|cancelled)")

	return cmd
}

func newSessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			sess, err := a.sessions.Get(args[0])
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(sess)
			}
			printSessionDetail(sess)
			return nil
		},
	}
}

func newSessionStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <id>",
		Short: "Start a session (early start included)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			sess, err := a.sessions.Start(args[0])
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(sess)
			}
			fmt.Printf("Session %s is now active.\n", sess.ID)
			return nil
		},
	}
}

func newSessionEndCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "end <id>",
		Short: "End an active session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			sess, minutes, err := a.sessions.End(args[0])
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(map[string]interface{}{
					"session":          sess,
					"duration_minutes": minutes,
				})
			}
			fmt.Printf("Session %s completed after %d minutes.\n", sess.ID, minutes)
			fmt.Printf("  Visitors: %d (low %d / medium %d / high %d)\n",
				sess.VisitorCount, sess.InterestLow, sess.InterestMedium, sess.InterestHigh)
			return nil
		},
	}
}

func newSessionCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			sess, err := a.sessions.Cancel(args[0])
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(sess)
			}
			fmt.Printf("Session %s cancelled.\n", sess.ID)
			return nil
		},
	}
}

func newSessionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session and its visitors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.sessions.Delete(args[0]); err != nil {
				return err
			}

			if isJSON() {
				return printJSON(map[string]string{"deleted": args[0]})
			}
			fmt.Printf("Session %s deleted.\n", args[0])
			return nil
		},
	}
}

func newSessionTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <id>",
		Short: "Show a session's check-in token and QR payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.sessions.Get(args[0]); err != nil {
				return err
			}
			token, err := a.tokens.TokenFor(args[0])
			if err != nil {
				return err
			}

			payload := auth.QRPayload(a.cfg.BaseURL, token)
			if isJSON() {
				return printJSON(map[string]string{
					"checkin_token": token,
					"qr_payload":    payload,
				})
			}
			fmt.Printf("Token:  %s\nQR URL: %s\n", token, payload)
			return nil
		},
	}
}
