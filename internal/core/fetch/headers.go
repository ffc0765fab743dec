package fetch

import (
	"fmt"
	"math/rand"
)

// HeaderProfile is a consistent set of request headers for one browser.
type HeaderProfile struct {
	UserAgent       string
	Accept          string
	AcceptLanguage  string
	SecFetchDest    string
	SecFetchMode    string
	SecFetchSite    string
	SecChUa         string
	SecChUaMobile   string
	SecChUaPlatform string
}

type HeaderStrategy string

const (
	StrategyDesktop HeaderStrategy = "desktop"
	StrategyMobile  HeaderStrategy = "mobile"
	StrategyBot     HeaderStrategy = "bot"
)

// ParseHeaderStrategy maps a FETCH_HEADER_PROFILE value to a strategy. The
// empty string means desktop.
func ParseHeaderStrategy(s string) (HeaderStrategy, error) {
	switch HeaderStrategy(s) {
	case "", StrategyDesktop:
		return StrategyDesktop, nil
	case StrategyMobile, StrategyBot:
		return HeaderStrategy(s), nil
	default:
		return "", fmt.Errorf("unknown header profile %q", s)
	}
}

const htmlAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

var desktopProfiles = []HeaderProfile{
	{
		UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		Accept:          htmlAccept,
		AcceptLanguage:  "en-US,en;q=0.9",
		SecFetchDest:    "document",
		SecFetchMode:    "navigate",
		SecFetchSite:    "none",
		SecChUa:         `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`,
		SecChUaMobile:   "?0",
		SecChUaPlatform: `"macOS"`,
	},
	{
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		Accept:          htmlAccept,
		AcceptLanguage:  "en-US,en;q=0.9",
		SecFetchDest:    "document",
		SecFetchMode:    "navigate",
		SecFetchSite:    "none",
		SecChUa:         `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`,
		SecChUaMobile:   "?0",
		SecChUaPlatform: `"Windows"`,
	},
}

var mobileProfiles = []HeaderProfile{
	{
		UserAgent:      "Mozilla/5.0 (iPhone; CPU iPhone OS 18_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.2 Mobile/15E148 Safari/604.1",
		Accept:         htmlAccept,
		AcceptLanguage: "en-US,en;q=0.9",
		SecFetchDest:   "document",
		SecFetchMode:   "navigate",
		SecFetchSite:   "none",
	},
}

var botProfiles = []HeaderProfile{
	{
		UserAgent:      "Mozilla/5.0 (compatible; BreederChatBot/1.0)",
		Accept:         htmlAccept,
		AcceptLanguage: "en-US,en;q=0.9",
	},
}

// Profile picks a random profile for the strategy. Unknown strategies get
// the first desktop profile.
func Profile(strategy HeaderStrategy) HeaderProfile {
	switch strategy {
	case StrategyDesktop:
		return desktopProfiles[rand.Intn(len(desktopProfiles))]
	case StrategyMobile:
		return mobileProfiles[rand.Intn(len(mobileProfiles))]
	case StrategyBot:
		return botProfiles[rand.Intn(len(botProfiles))]
	default:
		return desktopProfiles[0]
	}
}

// Headers flattens the profile, omitting empty values.
func (p HeaderProfile) Headers() map[string]string {
	h := map[string]string{
		"User-Agent":      p.UserAgent,
		"Accept":          p.Accept,
		"Accept-Language": p.AcceptLanguage,
	}
	if p.SecFetchDest != "" {
		h["Sec-Fetch-Dest"] = p.SecFetchDest
		h["Sec-Fetch-Mode"] = p.SecFetchMode
		h["Sec-Fetch-Site"] = p.SecFetchSite
	}
	if p.SecChUa != "" {
		h["Sec-Ch-Ua"] = p.SecChUa
		h["Sec-Ch-Ua-Mobile"] = p.SecChUaMobile
		h["Sec-Ch-Ua-Platform"] = p.SecChUaPlatform
	}
	return h
}
