// Package logging provides file-based logging with rotation for Neo Alexandria.
// Setup writes JSON logs to a rotating file (DefaultLogPath, under
// ~/.neo-alexandria/logs/) and can also copy them to stderr.
//
// The neoalexandria CLI always logs to that file: at info level by default,
// and at debug level, copied to stderr as well, when --debug is set.
package logging
