package chat

import (
	"regexp"
	"strconv"
	"strings"

	"breederchat/internal/core/record"
	"breederchat/internal/core/scrape"
)

type Intent string

const (
	IntentInitial   Intent = "initial"
	IntentNextPage  Intent = "next_page"
	IntentPageRange Intent = "page_range"
	IntentFilter    Intent = "filter"
	IntentPlainChat Intent = "plain_chat"
)

// Classification is the tagged result of reading one chat message.
type Classification struct {
	Intent   Intent
	URL      string
	Range    *scrape.PageRange
	Criteria record.Criteria
}

// IsScrape reports whether the message asks for data from the directory.
func (c Classification) IsScrape() bool {
	return c.Intent == IntentInitial || c.Intent == IntentNextPage || c.Intent == IntentPageRange
}

// ScrapeRequest builds the orchestrator request for a scrape intent.
func (c Classification) ScrapeRequest(sessionID string) scrape.Request {
	req := scrape.Request{URL: c.URL, SessionID: sessionID}
	switch c.Intent {
	case IntentNextPage:
		req.Pagination = true
	case IntentPageRange:
		req.PageRange = c.Range
	}
	return req
}

var (
	urlRe   = regexp.MustCompile(`https?://[^\s<>"'` + "`" + `]+`)
	rangeRe = regexp.MustCompile(`(?i)\bpages?\s+(\d+)\s*(?:-|–|to|through|thru|and)\s*(?:page\s+)?(\d+)\b`)
	firstRe = regexp.MustCompile(`(?i)\bfirst\s+(\d+)\s+pages\b`)
	nextRe  = regexp.MustCompile(`(?i)\b(?:next\s+(?:page|one|results|batch)|more\s+(?:results|breeders|pages)|show\s+more|load\s+more|keep\s+going|continue)\b|^\s*(?:next|more)\s*[.!?]*\s*$`)

	nameRe     = regexp.MustCompile(`(?i)\b(?:named|called)\s+["']?([^"'?!,]+?)["']?\s*(?:$|[?!,]|\s+(?:in|from|with|and)\b)`)
	phoneRe    = regexp.MustCompile(`(?i)\b(?:phone|number|area\s+code)\s+(?:(?:starting|beginning)\s+with|containing|with|of|is)?\s*(\d[\d\-() ]*\d|\d)`)
	locationRe = regexp.MustCompile(`(?i)\b(?:located\s+in|based\s+in|in|from|near)\s+([a-z][a-z .,'-]*[a-z])`)
	cutRe      = regexp.MustCompile(`(?i)\s+(?:with|and|that|who|whose|named|called|having)\b.*$`)
	trailingRe = regexp.MustCompile(`[\s.,]+$`)
)

// Words that follow "in" without naming a place.
var notPlaces = map[string]bool{
	"it": true, "this": true, "that": true, "there": true, "them": true, "here": true,
	"the list": true, "the results": true, "the table": true, "total": true, "general": true,
	"stock": true, "detail": true, "details": true, "order": true, "particular": true,
}

// Classify reads a free-text chat message into a tagged intent. A URL starts
// a new search, optionally over a page range; a range alone or a request for
// more works on the session's last URL; field criteria make a filter; anything
// else is plain chat.
func Classify(message string) Classification {
	c := Classification{Intent: IntentPlainChat}
	if u := urlRe.FindString(message); u != "" {
		c.URL = trailingRe.ReplaceAllString(strings.TrimRight(u, ").,;!?"), "")
	}
	c.Range = parseRange(message)

	switch {
	case c.Range != nil:
		c.Intent = IntentPageRange
		return c
	case c.URL != "":
		c.Intent = IntentInitial
		return c
	case nextRe.MatchString(message):
		c.Intent = IntentNextPage
		return c
	}

	c.Criteria = ParseCriteria(message)
	if !c.Criteria.IsEmpty() {
		c.Intent = IntentFilter
	}
	return c
}

func parseRange(message string) *scrape.PageRange {
	if m := rangeRe.FindStringSubmatch(message); m != nil {
		start, _ := strconv.Atoi(m[1])
		end, _ := strconv.Atoi(m[2])
		return &scrape.PageRange{Start: start, End: end}
	}
	if m := firstRe.FindStringSubmatch(message); m != nil {
		n, _ := strconv.Atoi(m[1])
		return &scrape.PageRange{Start: 1, End: n}
	}
	return nil
}

// ParseCriteria pulls name, phone and location constraints out of a message.
func ParseCriteria(message string) record.Criteria {
	var c record.Criteria
	if m := nameRe.FindStringSubmatch(message); m != nil {
		c.Name = strings.TrimSpace(m[1])
	}
	if m := phoneRe.FindStringSubmatch(message); m != nil {
		c.Phone = strings.TrimSpace(m[1])
	}
	for _, m := range locationRe.FindAllStringSubmatch(message, -1) {
		loc := cutRe.ReplaceAllString(m[1], "")
		loc = trailingRe.ReplaceAllString(loc, "")
		if notPlaces[strings.ToLower(loc)] || strings.HasPrefix(strings.ToLower(loc), "the ") {
			continue
		}
		c.Location = loc
		break
	}
	return c
}
