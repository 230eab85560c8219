// Package cli is responsible for parsing command-line arguments, validating
// user input, and handling process-level concerns like exit codes. It
// layers CLI flags over the pipeline configuration and produces the
// application's internal configuration.
package cli
