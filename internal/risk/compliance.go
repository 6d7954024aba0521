package risk

import "github.com/DukeRupert/tsfwatch/internal/domain"

// Standards returns the compliance record for each tracked framework. The
// percentages are recorded values, not derived from the items.
func Standards() []domain.ComplianceStandard {
	out := make([]domain.ComplianceStandard, len(standards))
	for i, s := range standards {
		items := make([]domain.ComplianceItem, len(s.Items))
		copy(items, s.Items)
		s.Items = items
		out[i] = s
	}
	return out
}

// Standard looks up a framework by name.
func Standard(name string) (domain.ComplianceStandard, bool) {
	for _, s := range Standards() {
		if s.Name == name {
			return s, true
		}
	}
	return domain.ComplianceStandard{}, false
}

// ItemAverage returns the mean of the items measured in percent. The second
// return is false when the standard has no percentage items.
func ItemAverage(s domain.ComplianceStandard) (float64, bool) {
	var sum float64
	var n int
	for _, item := range s.Items {
		if item.Unit == "%" {
			sum += item.Value
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// OverallCompliance is the mean of the recorded standard percentages.
func OverallCompliance(standards []domain.ComplianceStandard) float64 {
	if len(standards) == 0 {
		return 0
	}
	var sum float64
	for _, s := range standards {
		sum += s.Percentage
	}
	return sum / float64(len(standards))
}

func ok(name, desc string, value float64, unit string) domain.ComplianceItem {
	return domain.ComplianceItem{Name: name, Status: domain.ComplianceOK, Description: desc, Value: value, Unit: unit}
}

func warn(name, desc string, value float64, unit string) domain.ComplianceItem {
	return domain.ComplianceItem{Name: name, Status: domain.ComplianceWarning, Description: desc, Value: value, Unit: unit}
}

var standards = []domain.ComplianceStandard{
	{
		Name:       "ZEMA",
		Percentage: 96,
		Items: []domain.ComplianceItem{
			ok("Water Quality", "pH, turbidity within limits", 7.2, "pH"),
			ok("Groundwater Monitoring", "All wells operational", 98, "%"),
			ok("Buffer Zones", "500m buffer maintained", 500, "m"),
		},
	},
	{
		Name:       "EIA",
		Percentage: 94,
		Items: []domain.ComplianceItem{
			ok("Mitigation Measures", "All measures implemented", 100, "%"),
			warn("Buffer Conditions", "Minor vegetation loss", 88, "%"),
			ok("Rehabilitation Plans", "Plans updated quarterly", 95, "%"),
		},
	},
	{
		Name:       "GISTM",
		Percentage: 96,
		Items: []domain.ComplianceItem{
			ok("Risk Governance", "Board oversight active", 100, "%"),
			ok("Monitoring Systems", "Real-time IoT sensors", 97, "%"),
			ok("Emergency Readiness", "Drills conducted monthly", 92, "%"),
		},
	},
	{
		Name:       "ICOLD",
		Percentage: 98,
		Items: []domain.ComplianceItem{
			ok("Structural Integrity", "No deformation detected", 99, "%"),
			ok("Seepage Control", "Flow rates normal", 0.5, "L/s"),
			ok("Deformation Monitoring", "Inclinometers stable", 2.1, "mm"),
		},
	},
	{
		Name:       "IFC EHS",
		Percentage: 97,
		Items: []domain.ComplianceItem{
			ok("Discharge Quality", "TSS below 50 mg/L", 32, "mg/L"),
			ok("Dust Suppression", "PM10 within limits", 45, "μg/m³"),
			ok("Waste Handling", "Zero spills this month", 100, "%"),
		},
	},
	{
		Name:       "ISO",
		Percentage: 96,
		Items: []domain.ComplianceItem{
			ok("ISO 14001 (Environmental)", "Certified and audited", 95, "%"),
			ok("ISO 45001 (Safety)", "Zero LTI this quarter", 100, "%"),
			ok("ISO 31000 (Risk)", "Risk register updated", 93, "%"),
		},
	},
	{
		Name:       "Mine Safety (ZM)",
		Percentage: 99,
		Items: []domain.ComplianceItem{
			ok("Restricted Zones", "Signage and barriers intact", 100, "%"),
			ok("Emergency Systems", "Alarms tested weekly", 98, "%"),
			ok("Safety Training", "All staff certified", 100, "%"),
			ok("Incident Reporting", "24hr reporting active", 100, "%"),
		},
	},
}
