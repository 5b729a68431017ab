package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/courierhq/courier/internal/domain"
)

func newListCmd(dsn *string, outputFn func() *Output) *cobra.Command {
	var state string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var filter domain.RequestState
			if state != "" {
				filter = domain.ParseState(state)
				if filter == "" {
					return fmt.Errorf("unknown state %q", state)
				}
			}

			requests, _, closeFn, err := openRepos(ctx, *dsn)
			if err != nil {
				return err
			}
			defer closeFn()

			list, err := requests.List(ctx, filter, limit)
			if err != nil {
				return err
			}

			rows := make([][]string, len(list))
			for i, r := range list {
				rows[i] = []string{
					fmt.Sprint(r.ID),
					string(r.State),
					fmt.Sprint(r.Priority),
					fmt.Sprint(r.RetryCount),
					r.Method,
					r.URL,
					r.StateChangedAt.Format(time.RFC3339),
				}
			}

			outputFn().Print(
				[]string{"ID", "STATE", "PRIORITY", "RETRIES", "METHOD", "URL", "CHANGED"},
				rows,
				list,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Filter by state (ready, pending, waiting, completed, failed, abandoned)")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of results")

	return cmd
}

func newShowCmd(dsn *string, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			requests, _, closeFn, err := openRepos(ctx, *dsn)
			if err != nil {
				return err
			}
			defer closeFn()

			req, err := requests.GetByID(ctx, id)
			if err != nil {
				return err
			}

			retryAt := ""
			if req.RetryAt != nil {
				retryAt = req.RetryAt.Format(time.RFC3339)
			}
			lockedAt := ""
			if req.LockedAt != nil {
				lockedAt = req.LockedAt.Format(time.RFC3339)
			}

			outputFn().Print(
				[]string{"ID", "STATE", "METHOD", "URL", "RETRIES", "RETRY_AT", "LOCKED_AT", "WALL_MS"},
				[][]string{{
					fmt.Sprint(req.ID),
					string(req.State),
					req.Method,
					req.URL,
					fmt.Sprint(req.RetryCount),
					retryAt,
					lockedAt,
					fmt.Sprintf("%.1f", req.TimingsWallMs),
				}},
				req,
			)
			return nil
		},
	}
}

func newLogsCmd(dsn *string, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "logs ID",
		Short: "Show delivery attempts of a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			_, logs, closeFn, err := openRepos(ctx, *dsn)
			if err != nil {
				return err
			}
			defer closeFn()

			list, err := logs.ListByRequestID(ctx, id)
			if err != nil {
				return err
			}

			rows := make([][]string, len(list))
			for i, l := range list {
				body := ""
				if l.ResponseBody != nil {
					body = truncate(*l.ResponseBody, 60)
				}
				rows[i] = []string{
					fmt.Sprint(i + 1),
					fmt.Sprint(l.ResponseCode),
					l.CreatedAt.Format(time.RFC3339),
					body,
				}
			}

			outputFn().Print(
				[]string{"ATTEMPT", "CODE", "AT", "BODY"},
				rows,
				list,
			)
			return nil
		},
	}
}

// truncate обрезает строку для табличного вывода.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
