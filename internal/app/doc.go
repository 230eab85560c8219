// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the two pipeline stages, generate and
// pack, decoupled from any specific entrypoint like a CLI.
package app
