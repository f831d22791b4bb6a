// Package config provides centralized configuration management for the
// AgentLink daemon: logger, bus driver, archive backend, chain access and the
// demo agent pair are all described by a single JSON file with sensible
// defaults applied on load.
package config
