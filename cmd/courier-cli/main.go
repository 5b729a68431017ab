// Courier CLI — администрирование очереди доставки.
//
// Использование:
//
//	courier [--db DSN] [--json] <command> [flags]
//
// Команды:
//
//	create    Создать request
//	list      Список requests
//	show      Показать request
//	logs      Журнал попыток доставки
//	abandon   Прекратить доставку
//	unlock    Восстановить застрявший pending
//	retry     Продвинуть waiting в ready немедленно
package main

import (
	"fmt"
	"os"

	"github.com/courierhq/courier/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	if err := cli.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
