package reconcile

import "mangawatch/internal/chapter"

// candidate is one source's view of the latest chapter.
type candidate struct {
	source  Source
	number  chapter.Number
	id      string
	title   string
	readURL string
}

// decide returns the candidate that advances past last, if any. Absent
// candidates and absent numbers never win. The scraper must be strictly
// greater than the catalog result to take precedence.
func decide(last chapter.Number, catalog, scraped *candidate) (candidate, bool) {
	best := last
	var winner *candidate
	for _, c := range []*candidate{catalog, scraped} {
		if c == nil || !c.number.Valid() {
			continue
		}
		if c.number.After(best) {
			best = c.number
			winner = c
		}
	}
	if winner == nil {
		return candidate{}, false
	}
	return *winner, true
}
