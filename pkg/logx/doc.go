// Package logx is the daemon's structured logging on top of zerolog.
//
// Components take a Logger tagged with a "comp" field. Console output is
// human-readable with a short file:line caller; the optional log file gets
// JSON lines.
package logx
