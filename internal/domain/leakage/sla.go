package leakage

import "time"

// DefaultAtRiskFraction is the share of the SLA window below which a case is at risk
const DefaultAtRiskFraction = 0.2

// ComputeSLAStatus derives the SLA status of a case at now.
// A case is breached once now is past due, at risk when the time left is
// under atRiskFraction of the original window, and on track otherwise.
func ComputeSLAStatus(createdAt, dueDate, now time.Time, atRiskFraction float64) SLAStatus {
	if now.After(dueDate) {
		return SLAStatusBreached
	}
	window := dueDate.Sub(createdAt)
	if window <= 0 {
		return SLAStatusAtRisk
	}
	remaining := dueDate.Sub(now)
	if float64(remaining) < float64(window)*atRiskFraction {
		return SLAStatusAtRisk
	}
	return SLAStatusOnTrack
}

// SLAStatusAt returns the SLA status the case should carry at now
func (c *LeakageCase) SLAStatusAt(now time.Time, atRiskFraction float64) SLAStatus {
	return ComputeSLAStatus(c.CreatedAt, c.DueDate, now, atRiskFraction)
}
