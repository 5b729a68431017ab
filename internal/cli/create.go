package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/courierhq/courier/internal/domain"
)

func newCreateCmd(dsn *string, outputFn func() *Output) *cobra.Command {
	var method string
	var priority int
	var headers []string
	var payload string
	var retryFactor int
	var retryInconsistent bool

	cmd := &cobra.Command{
		Use:   "create URL",
		Short: "Create a request in state ready",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			requests, _, closeFn, err := openRepos(ctx, *dsn)
			if err != nil {
				return err
			}
			defer closeFn()

			req := &domain.Request{
				URL:               args[0],
				Method:            strings.ToUpper(method),
				Priority:          priority,
				Payload:           payload,
				RetryFactor:       retryFactor,
				RetryInconsistent: retryInconsistent,
			}

			if len(headers) > 0 {
				req.Headers = make(map[string]string, len(headers))
				for _, kv := range headers {
					parts := strings.SplitN(kv, ":", 2)
					if len(parts) != 2 {
						return fmt.Errorf("invalid header format %q, expected NAME:VALUE", kv)
					}
					req.Headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
				}
			}

			if err := requests.Create(ctx, req); err != nil {
				return err
			}

			out := outputFn()
			out.Print(
				[]string{"ID", "STATE", "METHOD", "URL"},
				[][]string{{fmt.Sprint(req.ID), string(req.State), req.Method, req.URL}},
				req,
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&method, "method", "X", "GET", "HTTP method")
	cmd.Flags().IntVar(&priority, "priority", 9999, "Priority (lower is processed earlier)")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Request header NAME:VALUE (repeatable)")
	cmd.Flags().StringVarP(&payload, "data", "d", "", "Request payload (JSON text)")
	cmd.Flags().IntVar(&retryFactor, "retry-factor", domain.DefaultRetryFactor, "Exponential backoff base")
	cmd.Flags().BoolVar(&retryInconsistent, "retry-inconsistent", false, "Retry inconsistent outcomes")

	return cmd
}
