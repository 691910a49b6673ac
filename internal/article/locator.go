// Package article locates the newest weekly tracker article on the news
// site's index page.
package article

import (
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrNotFound is returned when the index page contains no tracker article.
var ErrNotFound = eris.New("article: no tracker article found")

// Locator scans raw index HTML for article URLs carrying a date segment
// and the tracker keyword in their slug.
type Locator struct {
	keyword string
	re      *regexp.Regexp
}

// NewLocator builds a Locator for the given slug keyword.
func NewLocator(keyword string) *Locator {
	pattern := `https?://[a-zA-Z0-9.\-]+(?::\d+)?(?:/[a-zA-Z0-9.\-]+)*/\d{4}/\d{2}/\d{2}/[a-zA-Z0-9\-]*` +
		regexp.QuoteMeta(keyword) + `[a-zA-Z0-9\-]*/?`
	return &Locator{
		keyword: keyword,
		re:      regexp.MustCompile(pattern),
	}
}

// FindLatest returns the newest tracker article URL in the index HTML.
// The date segment sits at a fixed depth in every article path, so plain
// descending string order is also reverse-chronological order.
func (l *Locator) FindLatest(indexHTML string) (string, error) {
	matches := l.re.FindAllString(indexHTML, -1)
	if len(matches) == 0 {
		return "", ErrNotFound
	}

	seen := make(map[string]struct{}, len(matches))
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		u := strings.TrimRight(m, "/")
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(urls)))

	zap.L().Debug("article: tracker candidates",
		zap.Int("count", len(urls)),
		zap.String("newest", urls[0]),
	)
	return urls[0], nil
}
