package format

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableFormatter formats output as a table
type TableFormatter struct {
	writer io.Writer
}

// Format implements the Formatter interface for tables
func (f *TableFormatter) Format(data any) error {
	switch v := data.(type) {
	case *AccountList:
		return f.formatAccounts(v)
	case *ContractList:
		return f.formatContracts(v)
	default:
		return fmt.Errorf("table format not supported for type %T", data)
	}
}

func (f *TableFormatter) formatAccounts(list *AccountList) error {
	if len(list.Accounts) == 0 {
		return f.empty("No accounts")
	}

	withKeys, withBalances := false, false
	for _, a := range list.Accounts {
		withKeys = withKeys || a.PrivateKey != ""
		withBalances = withBalances || a.Balance != ""
	}

	columns := []table.Column{
		{Title: "INDEX", Width: 6},
		{Title: "ADDRESS", Width: 42},
	}
	if withBalances {
		columns = append(columns, table.Column{Title: "BALANCE", Width: 28})
	}
	if withKeys {
		columns = append(columns, table.Column{Title: "PRIVATE KEY", Width: 66})
	}

	var rows []table.Row
	for _, a := range list.Accounts {
		row := table.Row{strconv.Itoa(a.Index), a.Address}
		if withBalances {
			row = append(row, a.Balance)
		}
		if withKeys {
			row = append(row, a.PrivateKey)
		}
		rows = append(rows, row)
	}

	return f.render(columns, rows)
}

func (f *TableFormatter) formatContracts(list *ContractList) error {
	if len(list.Contracts) == 0 {
		return f.empty("No contracts")
	}

	var rows []table.Row
	for _, c := range list.Contracts {
		addr := c.Address
		if c.Error != "" {
			addr = c.Error
		}
		rows = append(rows, table.Row{c.Name, addr})
	}

	columns := []table.Column{
		{Title: "NAME", Width: 28},
		{Title: "ADDRESS", Width: 42},
	}
	return f.render(columns, rows)
}

func (f *TableFormatter) empty(msg string) error {
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)
	_, err := fmt.Fprintln(f.writer, style.Render(msg))
	return err
}

func (f *TableFormatter) render(columns []table.Column, rows []table.Row) error {
	width := 0
	for _, c := range columns {
		width += c.Width + 2
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(false),
		// the header and its border count towards the height
		table.WithHeight(len(rows)+2),
		table.WithWidth(width),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	// nothing is selected in a static table
	s.Selected = s.Cell
	t.SetStyles(s)

	view := t.View()
	if view == "" {
		return f.fallbackTextOutput(columns, rows)
	}
	_, err := fmt.Fprintln(f.writer, view)
	return err
}

// fallbackTextOutput provides a simple text output when table rendering fails
func (f *TableFormatter) fallbackTextOutput(columns []table.Column, rows []table.Row) error {
	for i, row := range rows {
		if i > 0 {
			_, _ = fmt.Fprintln(f.writer, "---")
		}
		for j, cell := range row {
			_, _ = fmt.Fprintf(f.writer, "%s: %s\n", columns[j].Title, cell)
		}
	}
	return nil
}
