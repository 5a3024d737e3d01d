package cli

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"vizinsight/models"
	"vizinsight/service"
	"vizinsight/session"
	"vizinsight/surface"
)

func newQueryCommand(root *rootOptions) *cobra.Command {
	var (
		userID string
		email  string
	)

	cmd := &cobra.Command{
		Use:   "query <prompt>",
		Short: "Ask one question and print the result as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			sessions := session.StaticProvider{Session: session.Session{UserID: userID, Email: email}}
			orch := a.orchestrator(sessions, nil)
			s := surface.New(userID, a.newMounter())
			defer s.Close()

			result, err := orch.SubmitQuery(cmd.Context(), s, models.QueryRequest{
				Prompt: strings.Join(args, " "),
				UserID: userID,
			})
			if err != nil {
				f := service.NoticeFor(err, cfg.Links)
				return errors.Wrap(err, f.Code)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "cli", "user the question is counted against")
	cmd.Flags().StringVar(&email, "email", "", "email forwarded to the inference endpoint")
	return cmd
}
