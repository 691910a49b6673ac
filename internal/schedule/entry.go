package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jrklein8/ILMFoodNBrew/internal/model"
)

// stopRe matches "location, start - end" where a time token is an hour,
// hour:minute, optional meridiem with or without periods, or noon/midnight.
var stopRe = regexp.MustCompile(
	`(?i)^(.+?),\s*` +
		`(noon|midnight|\d{1,2}(?::\d{2})?\s*(?:[ap]\.?\s?m\.?)?)` +
		`\s*[-–—]\s*` +
		`(noon|midnight|\d{1,2}(?::\d{2})?\s*(?:[ap]\.?\s?m\.?)?)` +
		`\s*\.?\s*$`,
)

// dateLayouts are tried in order, each first with ", year" appended and
// then against the raw date text.
var dateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"Jan. 2, 2006",
	"Monday, January 2, 2006",
	"Monday, Jan 2, 2006",
	"Monday, Jan. 2, 2006",
	"January 2 2006",
}

// ParseScheduleEntry parses one schedule line ("date — stop; stop; ...")
// into appearances. It never fails: a line whose date cannot be parsed is
// dropped, and a stop that doesn't match the time pattern is kept with
// the whole stop text as the location name and empty times.
func ParseScheduleEntry(line string, year int) []model.TruckAppearance {
	dateText, stopsText, ok := splitDash(line)
	if !ok {
		zap.L().Debug("schedule: line without date separator", zap.String("line", snippet(line)))
		return nil
	}

	date, ok := parseEntryDate(dateText, year)
	if !ok {
		zap.L().Debug("schedule: unparsable date, dropping line", zap.String("date", snippet(dateText)))
		return nil
	}

	var out []model.TruckAppearance
	for _, stop := range strings.Split(stopsText, ";") {
		stop = strings.TrimSpace(stop)
		if stop == "" {
			continue
		}

		app := model.TruckAppearance{Date: date}
		if m := stopRe.FindStringSubmatch(stop); m != nil {
			app.LocationName = strings.TrimSpace(m[1])
			app.StartTime, app.EndTime = normalizeTimes(m[2], m[3])
		} else {
			app.LocationName = stop
		}
		out = append(out, app)
	}
	return out
}

// parseEntryDate parses a month-day date, taking the year from the
// date-range label when the text carries none.
func parseEntryDate(text string, year int) (model.Date, bool) {
	text = strings.TrimSpace(text)
	withYear := fmt.Sprintf("%s, %d", text, year)

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, withYear); err == nil {
			return model.NewDate(t), true
		}
		if t, err := time.Parse(layout, text); err == nil {
			return model.NewDate(t), true
		}
	}
	return model.Date{}, false
}

// normalizeTimes renders both tokens as "H:MM AM/PM". A token missing its
// meridiem inherits the other's; if neither has one, evening is assumed.
func normalizeTimes(startRaw, endRaw string) (string, string) {
	start, startOK := parseTimeToken(startRaw)
	end, endOK := parseTimeToken(endRaw)
	if !startOK || !endOK {
		return "", ""
	}

	if start.meridiem == "" {
		start.meridiem = end.meridiem
	}
	if end.meridiem == "" {
		end.meridiem = start.meridiem
	}
	if start.meridiem == "" {
		start.meridiem, end.meridiem = "pm", "pm"
	}

	return start.format(), end.format()
}

type clockTime struct {
	hour     int
	minute   int
	meridiem string
}

func (c clockTime) format() string {
	return fmt.Sprintf("%d:%02d %s", c.hour, c.minute, strings.ToUpper(c.meridiem))
}

var meridiemRe = regexp.MustCompile(`(?i)([ap])\.?\s?m\.?$`)

// parseTimeToken parses one time token from a matched stop. The stop
// pattern guarantees the shape; range checks guard the rest.
func parseTimeToken(raw string) (clockTime, bool) {
	tok := strings.ToLower(strings.TrimSpace(raw))

	switch tok {
	case "noon":
		return clockTime{hour: 12, meridiem: "pm"}, true
	case "midnight":
		return clockTime{hour: 12, meridiem: "am"}, true
	}

	var mer string
	if m := meridiemRe.FindStringSubmatch(tok); m != nil {
		if strings.EqualFold(m[1], "a") {
			mer = "am"
		} else {
			mer = "pm"
		}
		tok = strings.TrimSpace(tok[:len(tok)-len(m[0])])
	}

	hourText, minText, hasMin := strings.Cut(tok, ":")
	hour, err := strconv.Atoi(hourText)
	if err != nil {
		return clockTime{}, false
	}
	minute := 0
	if hasMin {
		minute, err = strconv.Atoi(minText)
		if err != nil {
			return clockTime{}, false
		}
	}

	// Accept 24-hour style hours when no meridiem was written.
	if hour > 12 && mer == "" && hour <= 23 {
		hour -= 12
		mer = "pm"
	}
	if hour < 1 || hour > 12 || minute < 0 || minute > 59 {
		return clockTime{}, false
	}

	return clockTime{hour: hour, minute: minute, meridiem: mer}, true
}
