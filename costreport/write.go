package costreport

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// WriteCSV renders entries as CSV with a header row (stdlib
// encoding/csv; no CSV library appears anywhere in the example corpus,
// so this is the justified stdlib choice — see DESIGN.md).
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"period", "workflow", "run_count", "total_cost_usd", "input_tokens", "output_tokens"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		row := []string{
			e.Period,
			e.WorkflowName,
			strconv.Itoa(e.RunCount),
			strconv.FormatFloat(e.TotalCostUSD, 'f', 6, 64),
			strconv.FormatInt(e.InputTokens, 10),
			strconv.FormatInt(e.OutputTokens, 10),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON renders entries as a JSON array.
func WriteJSON(w io.Writer, entries []Entry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}
