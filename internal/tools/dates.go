package tools

import "time"

const dateLayout = "2006-01-02"

// resolveDate resolves an optional date parameter: given a value it passes
// through untouched, otherwise today in the local timezone, evaluated now.
func (s *Service) resolveDate(date string) string {
	if date != "" {
		return date
	}
	return s.now().Format(dateLayout)
}

// parseDate parses a YYYY-MM-DD string, failing with a validation error
// that names the bad input.
func parseDate(value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, invalidf("Invalid date format: %q (use YYYY-MM-DD)", value)
	}
	return t, nil
}

// cycleDates expands the inclusive day-by-day sequence from start through
// end. Both bounds are included; start == end yields one date.
func cycleDates(start, end time.Time) []string {
	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(dateLayout))
	}
	return dates
}
