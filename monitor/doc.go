// Package monitor drives the periodic health cycle and turns status
// changes into alerts.
//
// A [Tracker] compares each OverallHealth with the previous one and emits
// [Intent]s: a transition alert, a single escalation when the service has
// been Unhealthy for the threshold number of consecutive cycles, and one
// warning per Unhealthy component. A [Monitor] runs the cycle on a ticker
// and passes intents to an alert dispatcher, which applies the cooldown.
package monitor
