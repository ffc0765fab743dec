package extract

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

var (
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
	imageLineRe  = regexp.MustCompile(`^!\[[^\]]*\]\([^\)]+\)$`)
)

var boilerplateKeywords = []string{
	"cookie", "consent", "banner", "navbar", "nav-", "menu-",
	"share", "signup", "signin", "login", "advert", "promo",
	"modal", "popup", "breadcrumb", "sidebar",
}

// Preview renders the main content of a page as markdown, truncated to
// limit runes. It is attached to NotFound errors so a caller can see what
// the page held instead of a table.
func Preview(html string, limit int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	var content *goquery.Selection
	for _, sel := range []string{"main", `[role="main"]`, "#content", "#main"} {
		if s := doc.Find(sel); s.Length() > 0 {
			content = s.First()
			break
		}
	}
	if content == nil {
		content = doc.Find("body")
	}

	content.Find("script, style, noscript, nav, header, footer, aside, form, iframe, svg, button, input").Remove()
	content.Find("[class], [id]").Each(func(_ int, sel *goquery.Selection) {
		class, _ := sel.Attr("class")
		id, _ := sel.Attr("id")
		lower := strings.ToLower(class + " " + id)
		for _, kw := range boilerplateKeywords {
			if strings.Contains(lower, kw) {
				sel.Remove()
				return
			}
		}
	})

	body, err := content.Html()
	if err != nil {
		return ""
	}
	out, err := md.NewConverter("", true, nil).ConvertString(body)
	if err != nil {
		return ""
	}

	lines := strings.Split(out, "\n")
	kept := lines[:0]
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if imageLineRe.MatchString(l) {
			continue
		}
		kept = append(kept, l)
	}
	out = blankLinesRe.ReplaceAllString(strings.Join(kept, "\n"), "\n\n")
	out = strings.TrimSpace(out)

	if limit > 0 {
		r := []rune(out)
		if len(r) > limit {
			out = string(r[:limit]) + "..."
		}
	}
	return out
}
