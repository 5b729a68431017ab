package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAbandonCmd(dsn *string) *cobra.Command {
	return &cobra.Command{
		Use:   "abandon ID",
		Short: "Abandon a request (refuses terminal states)",
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

			if err := requests.Abandon(ctx, id); err != nil {
				return err
			}
			fmt.Printf("request %d abandoned\n", id)
			return nil
		},
	}
}

func newUnlockCmd(dsn *string) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock ID",
		Short: "Recover a stuck pending request back to ready",
		Long: `Unlock flips a pending request back to ready and clears its lock stamp.

Use only when the owning worker is known to be dead: unlocking a row
that a live worker still holds leads to double delivery.`,
		Args: cobra.ExactArgs(1),
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

			if err := requests.AdminUnlock(ctx, id); err != nil {
				return err
			}
			fmt.Printf("request %d unlocked\n", id)
			return nil
		},
	}
}

func newRetryCmd(dsn *string) *cobra.Command {
	return &cobra.Command{
		Use:   "retry ID",
		Short: "Promote a waiting request to ready immediately",
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

			if err := requests.RetryNow(ctx, id); err != nil {
				return err
			}
			fmt.Printf("request %d is ready\n", id)
			return nil
		},
	}
}
