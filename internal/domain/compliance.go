package domain

// ComplianceStatus is the outcome recorded against a compliance item.
type ComplianceStatus string

const (
	ComplianceOK      ComplianceStatus = "OK"
	ComplianceWarning ComplianceStatus = "Warning"
)

// Glyph returns the symbol shown beside the item on the dashboard.
func (s ComplianceStatus) Glyph() string {
	if s == ComplianceWarning {
		return "⚠"
	}
	return "✅"
}

// ComplianceItem is one checked requirement within a standard.
type ComplianceItem struct {
	Name        string           `json:"name"`
	Status      ComplianceStatus `json:"status"`
	Description string           `json:"description"`
	Value       float64          `json:"value"`
	Unit        string           `json:"unit"`
}

// ComplianceStandard is a regulatory or industry framework and the recorded
// compliance against it. Percentage is recorded per standard and is not
// computed from Items.
type ComplianceStandard struct {
	Name       string           `json:"name"`
	Percentage float64          `json:"percentage"`
	Items      []ComplianceItem `json:"items"`
}

// WarningCount returns how many items are flagged with a warning.
func (s *ComplianceStandard) WarningCount() int {
	n := 0
	for _, item := range s.Items {
		if item.Status == ComplianceWarning {
			n++
		}
	}
	return n
}
