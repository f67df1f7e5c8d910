package cli

import (
	"strings"
	"time"

	"github.com/rttune/rttune/pkg/types"
)

func buildEventQuery(thread, rule, typesCSV, since, until string, limit, offset int, order string) (types.EventQuery, error) {
	var q types.EventQuery
	q.Thread = thread
	q.Rule = rule
	if typesCSV != "" {
		q.Types = strings.Split(typesCSV, ",")
	}
	if since != "" {
		t, err := parseTimeOrAgo(since)
		if err != nil {
			return q, err
		}
		q.Since = &t
	}
	if until != "" {
		t, err := parseTimeOrAgo(until)
		if err != nil {
			return q, err
		}
		q.Until = &t
	}
	q.Limit = limit
	q.Offset = offset
	q.Asc = strings.EqualFold(order, "asc")
	return q, nil
}

func parseTimeOrAgo(s string) (time.Time, error) {
	if strings.ContainsAny(s, "smhdw") && !strings.Contains(s, "T") {
		d, err := time.ParseDuration(s)
		if err != nil {
			return time.Time{}, err
		}
		return time.Now().UTC().Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
