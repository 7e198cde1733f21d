// Package scraper reads the latest chapter number from a user-configured web
// page.
//
// Each tracked series may carry a watchlist.ScraperConfig naming a page, a CSS
// selector, and a read-link template. Fetch retrieves the page, Parse (a pure
// function over the HTML) selects the first matching element with goquery and
// extracts the first decimal number in its text, and Latest combines both with
// the template into a Result. Every failure is wrapped in
// services.ErrSourceUnavailable; callers treat it as "no scraper result".
package scraper
