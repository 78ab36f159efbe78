// Scriptum CLI — операторская утилита контент-пайплайна.
//
// Использование:
//
//	scriptum [--json] <command> [flags]
//
// Команды:
//
//	run      Один прогон цикла обработки
//	check    Проверка схемы вкладок
//	status   Сводка по статусам строк
//	release  Ручное снятие блокировки строки
package main

import (
	"fmt"
	"os"

	"github.com/nkoval/scriptum/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
