package excel

// RawRowData represents a row of raw spreadsheet data as string key-value pairs
type RawRowData map[string]string

// ExcelData represents the complete dataset as read from disk
type ExcelData struct {
	Headers []string     // Column headers, whitespace-trimmed
	Rows    []RawRowData // Data rows
	Source  string       // File the data was read from
}

// HasColumn reports whether the header row contains name.
func (d *ExcelData) HasColumn(name string) bool {
	for _, h := range d.Headers {
		if h == name {
			return true
		}
	}
	return false
}
