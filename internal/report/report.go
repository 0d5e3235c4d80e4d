package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/goccy/go-yaml"

	"vecbench/internal/bench"
)

// Format represents the summary output format
type Format string

const (
	// FormatText renders a table for terminals
	FormatText Format = "text"
	// FormatJSON outputs as JSON
	FormatJSON Format = "json"
	// FormatYAML outputs as YAML
	FormatYAML Format = "yaml"
)

// Row is the serialized form of one outcome
type Row struct {
	Backend   string  `json:"backend" yaml:"backend"`
	Op        string  `json:"op" yaml:"op"`
	Status    string  `json:"status" yaml:"status"`
	Correct   int     `json:"correct" yaml:"correct"`
	Total     int     `json:"total" yaml:"total"`
	Percent   float64 `json:"percent" yaml:"percent"`
	Hits      int     `json:"hits,omitempty" yaml:"hits,omitempty"`
	ElapsedMS int64   `json:"elapsed_ms" yaml:"elapsed_ms"`
	Error     string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// Rows converts outcomes into report rows
func Rows(outcomes []bench.Outcome) []Row {
	rows := make([]Row, len(outcomes))
	for i, o := range outcomes {
		row := Row{
			Backend:   o.Backend,
			Op:        string(o.Op),
			Status:    "ok",
			Correct:   o.Accuracy.Correct,
			Total:     o.Accuracy.Total,
			Percent:   o.Accuracy.Percent(),
			Hits:      len(o.Hits),
			ElapsedMS: o.Elapsed.Milliseconds(),
		}
		if o.Err != nil {
			row.Status = "failed"
			row.Error = o.Err.Error()
		}
		rows[i] = row
	}
	return rows
}

// Render writes the outcomes to w in the given format
func Render(w io.Writer, outcomes []bench.Outcome, format Format) error {
	rows := Rows(outcomes)
	switch format {
	case FormatText, "":
		return renderText(w, rows)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case FormatYAML:
		data, err := yaml.Marshal(rows)
		if err != nil {
			return fmt.Errorf("failed to format report: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	failStyle   = cellStyle.Foreground(lipgloss.Color("#ff5f5f"))
)

func renderText(w io.Writer, rows []Row) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("BACKEND", "OP", "STATUS", "RESULT", "TIME").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row >= 0 && row < len(rows) && rows[row].Status != "ok" {
				return failStyle
			}
			return cellStyle
		})

	for _, r := range rows {
		t.Row(r.Backend, r.Op, r.Status, result(r), strconv.FormatInt(r.ElapsedMS, 10)+"ms")
	}

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func result(r Row) string {
	switch {
	case r.Status != "ok":
		return r.Error
	case r.Op == string(bench.OpQuick):
		return fmt.Sprintf("%d hits", r.Hits)
	default:
		return fmt.Sprintf("%d/%d (%.2f%%)", r.Correct, r.Total, r.Percent)
	}
}
