// Package scraper reads each compute worker's /metrics endpoint after a
// session and reduces it to a WorkerStats summary for the run report.
//
// The exposition is parsed with the Prometheus text parser; counters are
// summed across label sets. A scrape failure is recorded on the result
// rather than returned, so one unreachable worker does not hide the others.
// Scraping is reporting only and never influences endpoint selection.
package scraper
