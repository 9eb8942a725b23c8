package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newEnrollmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrollment",
		Short: "Manage follow-up enrollments and the scheduler",
	}

	cmd.AddCommand(
		newEnrollmentDueCmd(),
		newEnrollmentShowCmd(),
		newEnrollmentPauseCmd(true),
		newEnrollmentPauseCmd(false),
		newEnrollmentExecuteCmd(),
		newEnrollmentDispatchCmd(),
	)

	return cmd
}

func newEnrollmentDueCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "due",
		Short: "List enrollments with touchpoints ready to execute",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			due, err := a.enrollments.ListDue(time.Now().UTC(), limit)
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(due)
			}
			return printEnrollmentTable(due)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum enrollments to list (0 = all)")

	return cmd
}

func newEnrollmentShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an enrollment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			e, err := a.enrollments.Get(args[0])
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(e)
			}
			printEnrollmentDetail(e)
			return nil
		},
	}
}

func newEnrollmentPauseCmd(pause bool) *cobra.Command {
	use, short := "pause <id>", "Pause an enrollment (keeps its schedule)"
	if !pause {
		use, short = "resume <id>", "Resume a paused enrollment"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			fn := a.enrollments.Resume
			if pause {
				fn = a.enrollments.Pause
			}
			e, err := fn(args[0])
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(e)
			}
			printEnrollmentDetail(e)
			return nil
		},
	}
}

func newEnrollmentExecuteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "execute <id>",
		Short: "Execute an enrollment's current touchpoint now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.enrollments.Execute(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(res)
			}
			status := "generated, delivery failed"
			if res.Delivered {
				status = "delivered"
			}
			fmt.Printf("Touchpoint %d (%s): %s.\n", res.Touchpoint.Position, res.Touchpoint.Channel, status)
			if res.Completed {
				fmt.Println("Enrollment completed.")
			} else if res.Enrollment.NextTouchpointAt != nil {
				fmt.Printf("Next touchpoint at %s.\n", res.Enrollment.NextTouchpointAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newEnrollmentDispatchCmd() *cobra.Command {
	var interval time.Duration
	var limit int

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Execute all due touchpoints, once or on an interval",
		Long:  "Scan for due enrollments and execute their touchpoints. With --interval the scan repeats until interrupted; pick an interval no longer than the shortest touchpoint delay in use.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runOnce := func() error {
				executed, failed, err := a.enrollments.RunDue(ctx, limit)
				if err != nil {
					return err
				}
				if executed > 0 || failed > 0 || interval == 0 {
					fmt.Printf("executed %d, failed %d\n", executed, failed)
				}
				return nil
			}

			if err := runOnce(); err != nil {
				return err
			}
			if interval == 0 {
				return nil
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := runOnce(); err != nil {
						return err
					}
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (0 = run once and exit)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum enrollments per scan (0 = all)")

	return cmd
}
