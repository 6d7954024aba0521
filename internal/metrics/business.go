package metrics

import (
	"time"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

// RefreshCompleted records a successful refresh run
func RefreshCompleted(coordinator string, duration time.Duration) {
	RefreshRunsTotal.WithLabelValues(coordinator, "completed").Inc()
	RefreshDuration.WithLabelValues(coordinator).Observe(duration.Seconds())
}

// RefreshFailed records a failed refresh run
func RefreshFailed(coordinator string, duration time.Duration) {
	RefreshRunsTotal.WithLabelValues(coordinator, "failed").Inc()
	RefreshDuration.WithLabelValues(coordinator).Observe(duration.Seconds())
}

// RefreshSkipped records a tick dropped because the previous run was still going
func RefreshSkipped(coordinator string) {
	RefreshSkippedTotal.WithLabelValues(coordinator).Inc()
}

// AnalysisRecorded publishes the latest analysis to the gauges
func AnalysisRecorded(result *domain.AnalysisResult) {
	OverallRisk.Set(riskValue(result.OverallRisk))
	StabilityFactor.Set(result.StabilityFactor)
}

// ExportGenerated records one generated export file
func ExportGenerated(format domain.ExportFormat) {
	ExportsGenerated.WithLabelValues(format.String()).Inc()
}

// LoginAttempt records a login outcome ("success", "invalid", "type_mismatch")
func LoginAttempt(outcome string) {
	LoginAttempts.WithLabelValues(outcome).Inc()
}

// CollaboratorFallback records an external call that degraded to simulation
func CollaboratorFallback(collaborator string) {
	CollaboratorFallbacks.WithLabelValues(collaborator).Inc()
}

// StationReading records a live reading by source ("mqtt", "mapserver")
func StationReading(source string) {
	StationReadings.WithLabelValues(source).Inc()
}

func riskValue(level domain.RiskLevel) float64 {
	switch level {
	case domain.RiskLevelMedium:
		return 1
	case domain.RiskLevelHigh:
		return 2
	case domain.RiskLevelCritical:
		return 3
	default:
		return 0
	}
}
