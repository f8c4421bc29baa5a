// Package alert dispatches alerts to notification channels.
//
// A [Dispatcher] suppresses an alert when another alert with the same key
// (source and title) was delivered less than the cooldown ago, records
// every alert it lets through in a bounded history, and delivers it to all
// configured [Channel]s concurrently. One channel failing never stops the
// others; Send reports success when at least one channel accepted the
// alert, and only a success starts the cooldown.
//
// Channel implementations live in the notify package.
package alert
