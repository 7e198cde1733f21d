// Package reconcile decides, once per cycle and per tracked series, whether a
// newer chapter exists and records it.
//
// For each series the catalog is asked for its latest chapter and, when the
// series has a scraper configured, the scraper page is read as well. The
// winner is the numerically largest chapter strictly above the stored one;
// when both sources report the same new number the catalog wins because it
// carries a chapter ID and title. A winning chapter is written through the
// watch list before the Update is reported, so the stored number only ever
// moves forward and a series yields at most one Update per cycle.
//
// A catalog outage skips the series for the cycle without touching it. A
// scraper failure only removes the scraper from consideration. Neither stops
// the remaining series.
package reconcile
