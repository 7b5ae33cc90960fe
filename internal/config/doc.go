// Package config provides configuration loading and validation for the
// translation service. Settings come from a YAML file layered over Default();
// Google credentials are resolved from GOOGLE_CREDENTIALS_PATH.
package config
