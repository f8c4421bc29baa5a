// Package secret resolves credential references in configuration values.
//
// A value of the form "secretref:<provider>:<ref>" is replaced by what the
// named Provider returns for ref; references may also appear inline, as in
// "Bearer secretref:env:MODEL_API_TOKEN". "${VAR}" expansion is strict: a
// missing variable is an error rather than an empty string.
//
// Built-in providers:
//   - env:  secretref:env:SLACK_WEBHOOK_URL
//   - file: secretref:file:/run/secrets/smtp_password
package secret
