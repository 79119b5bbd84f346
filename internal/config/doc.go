// Package config loads taskbatch settings from defaults, a YAML file and
// TASKBATCH_* environment variables, validates them and converts the batch
// section into a core.Config.
package config
