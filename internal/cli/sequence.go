package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jredmond/openhouse/internal/sequence"
)

func newSequenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sequence",
		Short: "Manage follow-up sequences",
	}

	cmd.AddCommand(
		newSequenceCreateCmd(),
		newSequenceListCmd(),
		newSequenceShowCmd(),
		newSequenceActivateCmd(true),
		newSequenceActivateCmd(false),
		newSequenceRemoveCmd(),
	)

	return cmd
}

// parseStep parses one --step value of the form delay:channel:prompt, e.g.
// "60:email:thank them for visiting".
func parseStep(s string) (sequence.TouchpointInput, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 {
		return sequence.TouchpointInput{}, fmt.Errorf("invalid step %q (want delay:channel[:prompt])", s)
	}

	delay, err := strconv.Atoi(parts[0])
	if err != nil {
		return sequence.TouchpointInput{}, fmt.Errorf("invalid step delay %q", parts[0])
	}

	tp := sequence.TouchpointInput{
		DelayMinutes: delay,
		Channel:      parts[1],
	}
	if len(parts) == 3 {
		tp.TemplatePrompt = parts[2]
	}
	return tp, nil
}

func newSequenceCreateCmd() *cobra.Command {
	var agent, name, target string
	var steps []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a follow-up sequence",
		Long:  "Create a follow-up sequence. Each --step is delay-minutes:channel:prompt, in order.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var tps []sequence.TouchpointInput
			for _, s := range steps {
				tp, err := parseStep(s)
				if err != nil {
					return err
				}
				tps = append(tps, tp)
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			if agent == "" {
				agent = a.cfg.AgentID
			}

			seq, err := a.sequences.Create(sequence.Input{
				AgentID:     agent,
				Name:        name,
				Target:      target,
				Touchpoints: tps,
			})
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(seq)
			}
			printSequenceDetail(seq)
			return nil
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "agent ID (default: OH_AGENT_ID)")
	cmd.Flags().StringVar(&name, "name", "", "sequence name")
	cmd.Flags().StringVar(&target, "target", "all", "target interest (low|medium|high|all)")
	cmd.Flags().StringArrayVar(&steps, "step", nil, "touchpoint as delay:channel[:prompt] (repeatable)")
	mustMark(cmd, "name", "step")

	return cmd
}

func newSequenceListCmd() *cobra.Command {
	var agent string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an agent's sequences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			if agent == "" {
				agent = a.cfg.AgentID
			}

			sequences, err := a.sequences.List(agent)
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(sequences)
			}
			return printSequenceTable(sequences)
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "agent ID (default: OH_AGENT_ID)")

	return cmd
}

func newSequenceShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			seq, err := a.sequences.Get(args[0])
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(seq)
			}
			printSequenceDetail(seq)
			return nil
		},
	}
}

func newSequenceActivateCmd(active bool) *cobra.Command {
	use, short := "activate <id>", "Activate a sequence"
	if !active {
		use, short = "deactivate <id>", "Deactivate a sequence (stops new enrollments)"
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

			seq, err := a.sequences.SetActive(args[0], active)
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(seq)
			}
			state := "inactive"
			if seq.Active {
				state = "active"
			}
			fmt.Printf("Sequence %s is now %s.\n", seq.ID, state)
			return nil
		},
	}
}

func newSequenceRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.sequences.Delete(args[0]); err != nil {
				return err
			}

			if isJSON() {
				return printJSON(map[string]string{"deleted": args[0]})
			}
			fmt.Printf("Sequence %s removed.\n", args[0])
			return nil
		},
	}
}
