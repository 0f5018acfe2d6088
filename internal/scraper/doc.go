// Package scraper reads live arrival estimates from the transit authority's
// stop pages and appends them to the staging file.
//
// A stop page lists one table row per upcoming bus: the line in the first
// cell and the minutes until arrival in the last. Buses too far away show a
// "+" instead of a number and are recorded with record.UnknownDelay.
package scraper
