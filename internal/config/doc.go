// Package config loads, normalizes, and validates aspace-jpc-av configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and fills repository credentials from dotenv files and the
// ASPACE_* environment variables. The Config type centralizes every knob the
// import, validation, and stamping commands need.
//
// Offline commands only require Validate; anything that talks to the
// repository must also pass ValidateRepository.
package config
