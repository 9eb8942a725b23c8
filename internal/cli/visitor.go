package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jredmond/openhouse/internal/visitor"
)

func newVisitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "visitor",
		Short: "Manage session visitors",
	}

	cmd.AddCommand(
		newVisitorCheckinCmd(),
		newVisitorListCmd(),
		newVisitorShowCmd(),
		newVisitorUpdateCmd(),
		newVisitorNoteCmd(),
		newVisitorRemoveCmd(),
	)

	return cmd
}

func newVisitorCheckinCmd() *cobra.Command {
	var name, email, phone, interest, notes string

	cmd := &cobra.Command{
		Use:   "checkin <session-id>",
		Short: "Check a visitor into an active session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			v, err := a.visitors.CheckIn(args[0], visitor.CheckInInput{
				Name:          name,
				Email:         email,
				Phone:         phone,
				InterestLevel: interest,
				Notes:         notes,
				Source:        "manual",
			})
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(v)
			}
			fmt.Printf("Checked in %s (%s, %s interest).\n", v.Name, v.Email, v.InterestLevel)
			if v.EnrollmentID != nil {
				fmt.Printf("  Enrolled in follow-up: %s\n", *v.EnrollmentID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "visitor name")
	cmd.Flags().StringVar(&email, "email", "", "visitor email")
	cmd.Flags().StringVar(&phone, "phone", "", "visitor phone")
	cmd.Flags().StringVar(&interest, "interest", "", "interest level (low|medium|high)")
	cmd.Flags().StringVar(&notes, "notes", "", "initial notes")
	mustMark(cmd, "name", "email", "interest")

	return cmd
}

func newVisitorListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <session-id>",
		Short: "List a session's visitors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			visitors, err := a.visitors.ListBySession(args[0])
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(visitors)
			}
			return printVisitorTable(visitors)
		},
	}
}

func newVisitorShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a visitor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			v, err := a.visitors.Get(args[0])
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(v)
			}
			printVisitorDetail(v)
			return nil
		},
	}
}

func newVisitorUpdateCmd() *cobra.Command {
	var name, email, phone, interest string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update visitor fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := visitor.UpdateInput{}
			if cmd.Flags().Changed("name") {
				in.Name = &name
			}
			if cmd.Flags().Changed("email") {
				in.Email = &email
			}
			if cmd.Flags().Changed("phone") {
				in.Phone = &phone
			}
			if cmd.Flags().Changed("interest") {
				in.InterestLevel = &interest
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			v, err := a.visitors.Update(args[0], in)
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(v)
			}
			printVisitorDetail(v)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "visitor name")
	cmd.Flags().StringVar(&email, "email", "", "visitor email")
	cmd.Flags().StringVar(&phone, "phone", "", "visitor phone")
	cmd.Flags().StringVar(&interest, "interest", "", "interest level (low|medium|high)")

	return cmd
}

func newVisitorNoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "note <id> <text>",
		Short: "Append a timestamped note to a visitor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			v, err := a.visitors.AppendNotes(args[0], args[1])
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(v)
			}
			fmt.Println(v.Notes)
			return nil
		},
	}
}

func newVisitorRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a visitor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.visitors.Delete(args[0]); err != nil {
				return err
			}

			if isJSON() {
				return printJSON(map[string]string{"deleted": args[0]})
			}
			fmt.Printf("Visitor %s removed.\n", args[0])
			return nil
		},
	}
}
