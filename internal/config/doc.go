// Package config builds the immutable run configuration for events-watch.
//
// Settings come from the process environment, optionally seeded from a .env file.
// They are read once at startup into a Config value that is passed explicitly to
// every component; nothing else in the module reads the environment.
package config
