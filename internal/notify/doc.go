// Package notify delivers a run summary to Slack, Teams or a generic HTTP
// endpoint when any drive reaches notify.min_class. Webhook URLs are read
// from the environment variable each target names.
package notify
