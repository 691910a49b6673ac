// Package schedule turns a weekly tracker article into structured trucks,
// appearances, and venue locations.
package schedule

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jrklein8/ILMFoodNBrew/internal/model"
)

const (
	defaultScheduleMarker = "weekly schedule"
	defaultLocationMarker = "find a location"
)

// Result is the parsed content of one tracker article.
type Result struct {
	DateRange string
	Locations map[string]*model.LocationInfo
	Trucks    []*model.FoodTruck
}

// Extractor walks tracker article HTML in document order. The truck pass
// activates at a heading containing the schedule marker and halts at one
// containing the location marker; the location pass reads the list that
// follows the location marker heading.
type Extractor struct {
	scheduleMarker string
	locationMarker string
	manual         []ManualLocation
}

// NewExtractor creates an Extractor. Empty markers fall back to the
// article's long-standing section titles.
func NewExtractor(scheduleMarker, locationMarker string, manual []ManualLocation) *Extractor {
	if scheduleMarker == "" {
		scheduleMarker = defaultScheduleMarker
	}
	if locationMarker == "" {
		locationMarker = defaultLocationMarker
	}
	return &Extractor{
		scheduleMarker: strings.ToLower(scheduleMarker),
		locationMarker: strings.ToLower(locationMarker),
		manual:         manual,
	}
}

// Parse extracts the weekly schedule from article HTML. A page without
// the expected sections yields an empty result, not an error; now supplies
// the year when the date-range label carries none.
func (e *Extractor) Parse(htmlStr string, now time.Time) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return nil, eris.Wrap(err, "schedule: parse html")
	}

	dateRange := extractDateRange(doc)
	year := extractYear(dateRange, now.Year())

	locations := e.parseLocations(doc)
	e.applyManual(locations)

	trucks := e.parseTrucks(doc, year)

	zap.L().Info("schedule: article parsed",
		zap.String("date_range", dateRange),
		zap.Int("locations", len(locations)),
		zap.Int("trucks", len(trucks)),
	)

	return &Result{
		DateRange: dateRange,
		Locations: locations,
		Trucks:    trucks,
	}, nil
}

// extractDateRange pulls the human-readable week label from the article
// title: the part after the first colon of the h1, or the whole h1.
func extractDateRange(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if i := strings.Index(title, ":"); i >= 0 {
		return strings.TrimSpace(title[i+1:])
	}
	return title
}

var yearRe = regexp.MustCompile(`\b20\d{2}\b`)

// extractYear finds a 4-digit year in the date-range label, else fallback.
func extractYear(label string, fallback int) int {
	if m := yearRe.FindString(label); m != "" {
		if y, err := strconv.Atoi(m); err == nil {
			return y
		}
	}
	return fallback
}

func (e *Extractor) parseLocations(doc *goquery.Document) map[string]*model.LocationInfo {
	locations := make(map[string]*model.LocationInfo)

	heading := findHeading(doc, e.locationMarker)
	if heading == nil {
		zap.L().Debug("schedule: no location section heading")
		return locations
	}

	list := heading.NextAllFiltered("ul, ol").First()
	if list.Length() == 0 {
		zap.L().Debug("schedule: location heading without list")
		return locations
	}

	list.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		name, address, ok := splitDash(li.Text())
		if !ok {
			zap.L().Debug("schedule: location item without dash", zap.String("text", snippet(li.Text())))
			return
		}
		key := model.NormalizeName(name)
		if key == "" {
			return
		}
		locations[key] = &model.LocationInfo{Name: name, Address: address}
	})

	return locations
}

// applyManual merges the curated venue set over the scraped locations.
// Scraped coordinates are never downgraded.
func (e *Extractor) applyManual(locations map[string]*model.LocationInfo) {
	for _, m := range e.manual {
		key := model.NormalizeName(m.Name)
		if key == "" {
			continue
		}
		lat, lon := m.Latitude, m.Longitude

		existing, ok := locations[key]
		if !ok {
			locations[key] = &model.LocationInfo{
				Name:      m.Name,
				Address:   m.Address,
				Latitude:  &lat,
				Longitude: &lon,
			}
			continue
		}
		if !existing.HasCoordinates() {
			existing.Latitude = &lat
			existing.Longitude = &lon
			if existing.Address == "" {
				existing.Address = m.Address
			}
		}
	}
}

func (e *Extractor) parseTrucks(doc *goquery.Document, year int) []*model.FoodTruck {
	var trucks []*model.FoodTruck
	var current *model.FoodTruck
	active := false

	doc.Find("h1, h2, h3, h4, h5, h6, p, ul, ol").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		switch goquery.NodeName(s) {
		case "p":
			if !active {
				return true
			}
			em := s.Find("em, i").First()
			name := strings.TrimSpace(em.Text())
			if name == "" {
				// A plain paragraph ends the previous truck's list run.
				current = nil
				return true
			}
			link, _ := s.Find("a[href]").First().Attr("href")
			current = &model.FoodTruck{
				Name:        name,
				Link:        link,
				Description: descriptionAfter(s.Text(), name),
			}
			trucks = append(trucks, current)

		case "ul", "ol":
			if !active || current == nil {
				return true
			}
			s.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
				entries := ParseScheduleEntry(li.Text(), year)
				for i := range entries {
					entries[i].TruckName = current.Name
					entries[i].Description = current.Description
					entries[i].Link = current.Link
				}
				current.Appearances = append(current.Appearances, entries...)
			})

		default:
			text := strings.ToLower(s.Text())
			if !active && strings.Contains(text, e.scheduleMarker) {
				active = true
			} else if active && strings.Contains(text, e.locationMarker) {
				return false
			}
		}
		return true
	})

	return trucks
}

// findHeading returns the first h1-h6 whose text contains marker
// (case-insensitive), or nil.
func findHeading(doc *goquery.Document, marker string) *goquery.Selection {
	sel := doc.Find("h1, h2, h3, h4, h5, h6").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(strings.ToLower(s.Text()), marker)
	}).First()
	if sel.Length() == 0 {
		return nil
	}
	return sel
}

// splitDash splits s on its first em-dash, falling back to an en-dash.
func splitDash(s string) (left, right string, ok bool) {
	for _, dash := range []string{"—", "–"} {
		if i := strings.Index(s, dash); i >= 0 {
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+len(dash):]), true
		}
	}
	return "", "", false
}

// descriptionAfter returns the paragraph text following the truck name,
// with leading separators stripped.
func descriptionAfter(full, name string) string {
	idx := strings.Index(full, name)
	if idx < 0 {
		return ""
	}
	rest := full[idx+len(name):]
	rest = strings.TrimLeft(rest, " \t\n—–-:;,.")
	return strings.TrimSpace(rest)
}

// snippet truncates text for debug logs.
func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:57] + "..."
	}
	return s
}
