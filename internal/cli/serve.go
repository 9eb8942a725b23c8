package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jredmond/openhouse/internal/web"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			if port == 0 {
				port = a.cfg.Port
			}

			srv := web.NewServer(
				a.sessions, a.visitors, a.sequences, a.enrollments,
				a.tokens, a.apiKeys, a.cfg.AgentID, a.cfg.BaseURL,
			)

			fmt.Printf("Listening on http://localhost:%d\n", port)
			return srv.ListenAndServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (default: OH_PORT)")

	return cmd
}
