// Package feed turns public-holiday ICS subscriptions into Holiday records.
//
// National holiday calendars are commonly published as ICS feeds whose
// events carry DATE-valued DTSTART/DTEND and often a yearly RRULE. This
// package parses the VEVENTs and expands recurrences into concrete
// per-year holidays for a requested window.
package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"deskcal/internal/httpcache"
	appLog "deskcal/internal/log"
	"deskcal/internal/model"
)

// Source is a single holiday ICS subscription.
type Source struct {
	ID   string
	Name string
	URL  string
}

// FetchAll fetches and parses every source, expanding recurrences within
// [rangeStart, rangeEnd]. Errors for individual sources are logged and
// collected; healthy sources still contribute.
func FetchAll(ctx context.Context, fetcher *httpcache.Fetcher, sources []Source, rangeStart, rangeEnd time.Time) ([]model.Holiday, []error) {
	holidays := make([]model.Holiday, 0)
	errs := make([]error, 0)

	for _, src := range sources {
		res, err := fetcher.Fetch(ctx, src.URL, nil)
		if err != nil {
			errs = append(errs, err)
			appLog.Error("feed fetch failed", err, "id", src.ID, "url", httpcache.RedactURL(src.URL))
			continue
		}
		hs, err := Parse(src, res.Body, rangeStart, rangeEnd)
		if err != nil {
			errs = append(errs, err)
			appLog.Error("feed parse failed", err, "id", src.ID, "url", httpcache.RedactURL(src.URL))
			continue
		}
		holidays = append(holidays, hs...)
	}

	return holidays, errs
}

// Parse parses one ICS payload into Holiday records, expanding yearly (or
// any other) RRULEs into one record per occurrence within the window.
// Individual broken VEVENTs are skipped, not fatal.
func Parse(src Source, body []byte, rangeStart, rangeEnd time.Time) ([]model.Holiday, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if rangeEnd.Before(rangeStart) {
		return nil, errors.New("feed: range end is before range start")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	holidays := make([]model.Holiday, 0)
	for _, ve := range cal.Events() {
		hs, perr := parseVEvent(src, ve, rangeStart, rangeEnd)
		if perr != nil {
			appLog.Error("feed vevent parse failed", perr, "id", src.ID)
			continue
		}
		holidays = append(holidays, hs...)
	}

	appLog.Info("feed parse completed", "id", src.ID, "holiday_count", len(holidays))
	return holidays, nil
}

func parseVEvent(src Source, ve *ical.VEvent, rangeStart, rangeEnd time.Time) ([]model.Holiday, error) {
	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return nil, errors.New("missing UID")
	}
	uid := uidProp.Value

	name := ""
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		name = p.Value
	}

	dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStartProp == nil || dtStartProp.Value == "" {
		return nil, errors.New("missing DTSTART")
	}
	start, err := parseICSTime(dtStartProp.Value)
	if err != nil {
		return nil, err
	}

	// DTEND on DATE-valued events is exclusive; a one-day holiday has
	// DTEND = DTSTART + 1d. Convert to the inclusive end day.
	end := start
	if dtEndProp := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEndProp != nil && dtEndProp.Value != "" {
		if e, eerr := parseICSTime(dtEndProp.Value); eerr == nil {
			end = e
			if isDateValue(dtEndProp) && end.After(start) {
				end = end.AddDate(0, 0, -1)
			}
		}
	}
	duration := end.Sub(start)

	rawRRule := ""
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		rawRRule = p.Value
	}

	if rawRRule == "" {
		if end.Before(rangeStart) || start.After(rangeEnd) {
			return nil, nil
		}
		return []model.Holiday{{
			ID:        uid,
			Name:      name,
			StartDate: start,
			EndDate:   end,
			Type:      model.HolidayTypePublic,
		}}, nil
	}

	// Recurring holiday (typically FREQ=YEARLY).
	r, err := rrule.StrToRRule(rawRRule)
	if err != nil {
		return nil, err
	}
	r.DTStart(start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range exDates(ve) {
		set.ExDate(ex.In(start.Location()))
	}

	occStarts := set.Between(rangeStart.In(start.Location()), rangeEnd.In(start.Location()), true)

	out := make([]model.Holiday, 0, len(occStarts))
	for _, occ := range occStarts {
		out = append(out, model.Holiday{
			// Distinct record id per occurrence so expanded item ids stay
			// unique across years.
			ID:        fmt.Sprintf("%s-%d", uid, occ.Year()),
			Name:      name,
			StartDate: occ,
			EndDate:   occ.Add(duration),
			Type:      model.HolidayTypePublic,
		})
	}
	return out, nil
}

func exDates(ve *ical.VEvent) []time.Time {
	var out []time.Time
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part); err == nil {
				out = append(out, t)
			}
		}
	}
	return out
}

// isDateValue reports whether the property is DATE-valued (all-day), either
// via an explicit VALUE=DATE parameter or a value without a time part.
func isDateValue(p *ical.IANAProperty) bool {
	if p.ICalParameters != nil {
		if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			return true
		}
	}
	return !strings.Contains(p.Value, "T")
}

// parseICSTime parses the basic ICS date/date-time forms used by holiday
// feeds.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}

	// Floating date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, time.UTC)
	}

	// Date-only (all-day), e.g., 20250101
	return time.ParseInLocation("20060102", v, time.UTC)
}
