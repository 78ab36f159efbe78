package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Output форматирует вывод CLI: таблицы по умолчанию, JSON по флагу.
type Output struct {
	jsonMode bool
	w        io.Writer
	errW     io.Writer
}

// NewOutput создаёт Output.
func NewOutput(jsonMode bool) *Output {
	return &Output{jsonMode: jsonMode, w: os.Stdout, errW: os.Stderr}
}

// Print выводит данные таблицей либо JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		enc := json.NewEncoder(o.w)
		enc.SetIndent("", "  ")
		enc.Encode(jsonData)
		return
	}

	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

// Success выводит сообщение в stderr, не смешиваясь с данными.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}
