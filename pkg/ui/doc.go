// Package ui holds the terminal output of mediamirror: the periodic
// progress line, styled messages and the end-of-run summary.
package ui
