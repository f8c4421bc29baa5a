// Package notify implements alert.Channel for email, Slack incoming
// webhooks and generic JSON webhooks. Use Build to construct the channels
// enabled by configuration.
package notify
