package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/courierhq/courier/internal/repo"
	"github.com/courierhq/courier/internal/seal"
)

// NewRootCmd создаёт корневую команду courier.
func NewRootCmd(version string) *cobra.Command {
	var dsn string
	var jsonOutput bool

	root := &cobra.Command{
		Use:           "courier",
		Short:         "Courier CLI — durable HTTP delivery administration",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&dsn, "db", "", "database DSN (default $DB_URL)")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	outputFn := func() *Output { return NewOutput(jsonOutput) }

	root.AddCommand(
		newCreateCmd(&dsn, outputFn),
		newListCmd(&dsn, outputFn),
		newShowCmd(&dsn, outputFn),
		newLogsCmd(&dsn, outputFn),
		newAbandonCmd(&dsn),
		newUnlockCmd(&dsn),
		newRetryCmd(&dsn),
	)

	return root
}

// openRepos подключается к БД и возвращает репозитории + closer.
//
// CLI шифрует заголовки тем же ключом, что и воркер, иначе create
// положил бы секреты открытым текстом рядом с зашифрованными.
func openRepos(ctx context.Context, dsn string) (*repo.RequestRepo, *repo.LogRepo, func(), error) {
	pool, err := repo.NewPool(ctx, dsn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect: %w", err)
	}

	sealer, err := seal.New(os.Getenv("COURIER_SEAL_KEY"), nil)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	return repo.NewRequestRepo(pool, sealer), repo.NewLogRepo(pool), pool.Close, nil
}

// parseID парсит позиционный аргумент ID.
func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid request id %q", arg)
	}
	return id, nil
}
