// Package sheets reads the application response sheet. The source is a CSV
// export, fetched over HTTP or read from a local file, and is always consumed
// whole: the first record is the header row and everything after is response
// rows in submission order.
package sheets
