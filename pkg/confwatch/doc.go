// Package confwatch reloads a config file when it changes on disk.
//
// Watch is shared by the server and agent config packages. Each passes its
// own Load function; confwatch only knows about files and fsnotify events.
package confwatch
