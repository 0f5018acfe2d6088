// Package staging holds scraped records that have not been merged into the
// durable store yet.
//
// The staging area is a single human-readable CSV file. It is precious but not
// critical: losing it drops at most one transfer cycle of observations. The
// producer rewrites the whole file on every save (load, append, save), and
// publishes it with a rename so a concurrent reader either sees the previous
// complete file or the new complete file, never a partial write.
//
// # File format
//
//	line,actual_datetime,delay_minutes,stop_id
//	2,2019-02-04 12:15:03,4,686
//
// Fields are separated by commas and quoted with "|" only when they contain a
// comma, a "|" or a line break; a literal "|" inside a quoted field is
// doubled. Rows end with "\n". The derived record ID is never written.
package staging
