// Package config loads sentimentd settings.
//
// Values come from, in increasing precedence: built-in defaults, an
// optional YAML file, and environment variables (HOST, PORT, MODEL_NAME,
// ALERT_COOLDOWN and so on; see [EnvNames]). Credential fields may hold
// ${VAR} expansions or secretref:env:NAME and secretref:file:/path
// references, which are resolved before validation.
//
// [Watch] reloads the YAML file on change for the settings that can be
// applied at runtime.
package config
