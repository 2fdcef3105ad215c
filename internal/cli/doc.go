// Package cli provides command-line interface setup and configuration
// for the bn2en application. It handles flag parsing, command creation,
// and configuration management using cobra, viper and .env files.
package cli
