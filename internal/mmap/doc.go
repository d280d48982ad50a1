// Package mmap provides read-only memory mapping of files.
//
// A Mapping exposes the file's bytes directly from the page cache, so
// multi-megabyte embedding tables are never copied into the process heap
// and pages are loaded lazily on first touch.
package mmap
