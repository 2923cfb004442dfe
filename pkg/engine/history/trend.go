package history

import (
	"fmt"
	"time"
)

// Momentum is the derived movement between recorded runs.
type Momentum struct {
	CurrentCost  float64 // latest recorded total spend
	Velocity     float64 // spend change per hour
	Acceleration float64 // velocity change per hour

	Projected24h   float64 // spend projected 24h out
	TimeToBudget   time.Duration
	BudgetTracking bool

	Alerts []string
}

// Alert thresholds.
const (
	velocityAlertPerHour     = 1000.0
	accelerationAlertPerHour = 500.0
)

// Trend derives spend momentum from the last few ledger entries. A budget of
// zero disables exhaustion tracking.
func Trend(entries []Entry, budget float64) Momentum {
	if len(entries) < 2 {
		var cost float64
		if len(entries) == 1 {
			cost = entries[0].TotalCost
		}
		return Momentum{CurrentCost: cost}
	}

	curr := entries[len(entries)-1]
	prev := entries[len(entries)-2]

	hours := float64(curr.Timestamp-prev.Timestamp) / 3600.0
	if hours == 0 {
		return Momentum{CurrentCost: curr.TotalCost}
	}
	velocity := (curr.TotalCost - prev.TotalCost) / hours

	var acceleration float64
	if len(entries) >= 3 {
		prev2 := entries[len(entries)-3]
		prevHours := float64(prev.Timestamp-prev2.Timestamp) / 3600.0
		if prevHours > 0 {
			prevVelocity := (prev.TotalCost - prev2.TotalCost) / prevHours
			acceleration = (velocity - prevVelocity) / hours
		}
	}

	projected := curr.TotalCost + velocity*24 + 0.5*acceleration*24*24

	m := Momentum{
		CurrentCost:  curr.TotalCost,
		Velocity:     velocity,
		Acceleration: acceleration,
		Projected24h: projected,
	}

	if budget > 0 && velocity > 0 {
		m.BudgetTracking = true
		headroom := budget - curr.TotalCost
		if headroom > 0 {
			m.TimeToBudget = time.Duration(headroom / velocity * float64(time.Hour))
		}
	}

	if velocity > velocityAlertPerHour {
		m.Alerts = append(m.Alerts, fmt.Sprintf("spend velocity +$%.0f/hr", velocity))
	}
	if acceleration > accelerationAlertPerHour {
		m.Alerts = append(m.Alerts, fmt.Sprintf("spend accelerating +$%.0f/hr2", acceleration))
	}
	if m.BudgetTracking && m.TimeToBudget > 0 && m.TimeToBudget < 24*time.Hour {
		m.Alerts = append(m.Alerts, fmt.Sprintf("budget exhaustion predicted in %s", m.TimeToBudget.Round(time.Minute)))
	}

	return m
}
