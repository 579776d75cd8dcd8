// Package main is cplist, the command line front end of the commentary
// player list editor.
//
// It drives the same session controller as the web editor: a file is
// loaded with a preset, filtered, sorted and paged for display, or edited
// and written back. Tables go to stdout and logs go to stderr.
package main
