package linemap

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

const reportRule = "========"

// WriteReport renders a plain text dump of the map: symbols, line entries
// and the name table. It is a diagnostic aid and scans linearly.
func WriteReport(w io.Writer, m *LineMap) error {
	symbols := m.SortedSymbols()

	if err := section(w, "SYMBOLS:"); err != nil {
		return err
	}
	table := newReportTable(w, "Token", "Address", "Symbol")
	for _, s := range symbols {
		table.Append([]string{hex(s.Token), strconv.FormatUint(s.Address, 10), s.Name})
	}
	table.Render()

	if err := section(w, "LINE NUMBERS:"); err != nil {
		return err
	}
	table = newReportTable(w, "Address", "Line number", "Token", "Symbol/FileName")
	for _, e := range m.AddressToLine {
		var (
			token uint64
			name  string
		)
		if s, ok := symbolAt(symbols, e.Address); ok {
			token = s.Token
			name = e.ObjectName + "." + s.Name
		}
		table.Append([]string{
			strconv.FormatUint(e.Address, 10),
			strconv.FormatUint(uint64(e.Line), 10),
			hex(token),
			name + " / " + m.File(e),
		})
	}
	table.Render()

	if err := section(w, "NAMES:"); err != nil {
		return err
	}
	table = newReportTable(w, "Index", "Name")
	for i, n := range m.Names.Names() {
		table.Append([]string{strconv.Itoa(i), n})
	}
	table.Render()
	return nil
}

// symbolAt finds the symbol starting exactly at addr.
func symbolAt(symbols []Symbol, addr uint64) (Symbol, bool) {
	for _, s := range symbols {
		if s.Address == addr {
			return s, true
		}
	}
	return Symbol{}, false
}

func section(w io.Writer, title string) error {
	_, err := fmt.Fprintf(w, "%s\n%s\n%s\n", reportRule, title, reportRule)
	return err
}

func newReportTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetColumnSeparator("")
	table.SetHeaderLine(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func hex(v uint64) string {
	return fmt.Sprintf("%X", v)
}
