package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Service) addHydration(ctx context.Context, req mcp.CallToolRequest) (map[string]any, error) {
	amountML, err := req.RequireFloat("amount_ml")
	if err != nil {
		return nil, invalidf("%s", err)
	}

	client, err := s.sessions.Session(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := client.AddHydration(ctx, amountML)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"logged_ml": amountML,
		"message":   fmt.Sprintf("Logged %vml of water", amountML),
		"data":      raw,
	}, nil
}

// updateMenstrualCycle validates the range before anything else: a bad
// input must not cost a session acquisition or a remote round-trip.
func (s *Service) updateMenstrualCycle(ctx context.Context, req mcp.CallToolRequest) (map[string]any, error) {
	startStr, err := req.RequireString("start_date")
	if err != nil {
		return nil, invalidf("%s", err)
	}
	endStr, err := req.RequireString("end_date")
	if err != nil {
		return nil, invalidf("%s", err)
	}

	start, err := parseDate(startStr)
	if err != nil {
		return nil, err
	}
	end, err := parseDate(endStr)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, invalidf("end_date must be on or after start_date")
	}
	dates := cycleDates(start, end)

	client, err := s.sessions.Session(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	payload := map[string]any{
		"userProfilePk":     s.profilePK,
		"todayCalendarDate": now.Format(dateLayout),
		"startDate":         startStr,
		"endDate":           endStr,
		"futureEditsByFE":   true,
		"reportTimestamp":   now.Format("2006-01-02T15:04:05.000"),
		"cycleDatesLists":   [][]string{dates},
	}
	if _, err := client.UpdateMenstrualCycle(ctx, payload); err != nil {
		return nil, err
	}

	return map[string]any{
		"message": fmt.Sprintf("Period logged: %s to %s (%d days)", startStr, endStr, len(dates)),
		"dates":   dates,
	}, nil
}
