// rpabot — запуск RPA-процесса с повтором шагов.
//
// Использование:
//
//	rpabot [--config FILE] [-o table|json] <command> [args]
//
// Команды:
//
//	run [start-step]  Выполнить процесс, начиная с шага (по умолчанию 1)
//	states            Таблица шагов
//	history           Локальная история запусков
//	events            События run из RabbitMQ
//	holidays          Обновить календарь праздников
//	stop              Запросить остановку работающего бота
package main

import (
	"fmt"
	"os"

	"github.com/shaiso/rpabot/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	root := cli.NewRootCmd(version)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}
