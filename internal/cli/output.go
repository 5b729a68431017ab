package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
)

// Output печатает результаты команд таблицей или JSON.
type Output struct {
	json bool
}

// NewOutput создаёт Output.
func NewOutput(jsonOutput bool) *Output {
	return &Output{json: jsonOutput}
}

// Print выводит табличные данные либо raw-объект как JSON.
func (o *Output) Print(headers []string, rows [][]string, raw any) {
	if o.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(raw); err != nil {
			fmt.Fprintln(os.Stderr, "encode json:", err)
		}
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
}
