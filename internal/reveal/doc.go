// Package reveal shows a converted file in the operating system's file
// manager.
package reveal
