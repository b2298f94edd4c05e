package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/rendis/aivault/internal/secrets"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).PaddingRight(2)
	cellStyle    = lipgloss.NewStyle().PaddingRight(2)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)

// writeTable prints secret metadata as NAME / DESCRIPTION / TAGS columns
// with a rule under the header.
func writeTable(w io.Writer, list []secrets.SecretMetadata) {
	rows := make([][]string, 0, len(list))
	for _, m := range list {
		rows = append(rows, []string{m.Name, m.Description, strings.Join(m.Tags, ", ")})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderHeader(true).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("NAME", "DESCRIPTION", "TAGS").
		Rows(rows...)

	fmt.Fprintln(w, t.Render())
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// success prints a check-marked confirmation line.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, successStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// nonNil keeps JSON output an array when the vault is empty.
func nonNil(list []secrets.SecretMetadata) []secrets.SecretMetadata {
	if list == nil {
		return []secrets.SecretMetadata{}
	}
	return list
}
