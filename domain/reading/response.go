package reading

import "sort"

// Response variable names.
const (
	ResponseWhole        = "logRT_whole"
	ResponseCritical     = "logRT"
	ResponseConstruction = "VAC_RT"
)

// ResponseRow is one (subject, item) row of an aggregated response table.
type ResponseRow struct {
	Subject      string  `json:"subject"`
	Item         string  `json:"item"`
	VAC          VACType `json:"vac_type"`
	EIT          float64 `json:"eit_score"`
	StrengthCode float64 `json:"strength_code"`
	Response     float64 `json:"response"`
	// Regions is how many regions contributed to Response.
	Regions int `json:"regions"`
}

// ResponseTable is the read-only input of one modeling pipeline.
type ResponseTable struct {
	response string
	rows     []ResponseRow
}

// NewResponseTable copies rows into a table named after its response variable.
func NewResponseTable(response string, rows []ResponseRow) *ResponseTable {
	cp := make([]ResponseRow, len(rows))
	copy(cp, rows)
	return &ResponseTable{response: response, rows: cp}
}

// Response is the name of the response variable.
func (t *ResponseTable) Response() string { return t.response }

func (t *ResponseTable) Len() int { return len(t.rows) }

func (t *ResponseTable) Row(i int) ResponseRow { return t.rows[i] }

// Rows returns a copy of the rows.
func (t *ResponseTable) Rows() []ResponseRow {
	cp := make([]ResponseRow, len(t.rows))
	copy(cp, t.rows)
	return cp
}

// Levels returns the sorted distinct subjects and items.
func (t *ResponseTable) Levels() (subjects, items []string) {
	return distinct(t.rows, func(r ResponseRow) string { return r.Subject }),
		distinct(t.rows, func(r ResponseRow) string { return r.Item })
}

func distinct(rows []ResponseRow, key func(ResponseRow) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range rows {
		k := key(r)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
