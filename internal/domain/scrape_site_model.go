package domain

// Source is one configured proxy list. Sources are loaded once per run and
// never change while it is in progress.
type Source struct {
	Type ProxyType
	URL  string
}

// CandidateSet maps a source URL to the distinct normalized addresses it
// returned during the current run.
type CandidateSet map[string]map[string]struct{}

func (c CandidateSet) Total() int {
	total := 0
	for _, proxies := range c {
		total += len(proxies)
	}
	return total
}

// Add records proxies under url, merging with anything already stored.
func (c CandidateSet) Add(url string, proxies map[string]struct{}) {
	existing, ok := c[url]
	if !ok {
		existing = make(map[string]struct{}, len(proxies))
		c[url] = existing
	}
	for proxy := range proxies {
		existing[proxy] = struct{}{}
	}
}
