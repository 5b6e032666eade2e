package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/SolanceLab/garmin-mcp/internal/garmin"
)

// passthrough is the common read shape: resolve the date, fetch a single
// payload, return it unmodified.
func (s *Service) passthrough(ctx context.Context, req mcp.CallToolRequest, fetch func(context.Context, *garmin.Client, string) (json.RawMessage, error)) (map[string]any, error) {
	date := s.resolveDate(req.GetString("date", ""))
	client, err := s.sessions.Session(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := fetch(ctx, client, date)
	if err != nil {
		return nil, err
	}
	return map[string]any{"date": date, "data": raw}, nil
}

func (s *Service) getDailySummary(ctx context.Context, req mcp.CallToolRequest) (map[string]any, error) {
	return s.passthrough(ctx, req, func(ctx context.Context, c *garmin.Client, date string) (json.RawMessage, error) {
		return c.UserSummary(ctx, date)
	})
}

// getBodyBattery merges two remote reads, the continuous charge levels and
// the discrete events, into one envelope. Either call failing fails the
// whole invocation; no partial result.
func (s *Service) getBodyBattery(ctx context.Context, req mcp.CallToolRequest) (map[string]any, error) {
	date := s.resolveDate(req.GetString("date", ""))
	client, err := s.sessions.Session(ctx)
	if err != nil {
		return nil, err
	}
	battery, err := client.BodyBattery(ctx, date)
	if err != nil {
		return nil, err
	}
	events, err := client.BodyBatteryEvents(ctx, date)
	if err != nil {
		return nil, err
	}
	return map[string]any{"date": date, "battery": battery, "events": events}, nil
}

func (s *Service) getSleepData(ctx context.Context, req mcp.CallToolRequest) (map[string]any, error) {
	date := s.resolveDate(req.GetString("date", ""))
	client, err := s.sessions.Session(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := client.SleepData(ctx, date)
	if err != nil {
		return nil, err
	}
	summary, err := sleepSummary(raw)
	if err != nil {
		return nil, err
	}
	return map[string]any{"date": date, "data": summary}, nil
}

func (s *Service) getSleepDetail(ctx context.Context, req mcp.CallToolRequest) (map[string]any, error) {
	date := s.resolveDate(req.GetString("date", ""))
	client, err := s.sessions.Session(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := client.SleepData(ctx, date)
	if err != nil {
		return nil, err
	}
	detail, err := sleepDetail(raw)
	if err != nil {
		return nil, err
	}
	return map[string]any{"date": date, "data": detail}, nil
}

func (s *Service) getHeartRate(ctx context.Context, req mcp.CallToolRequest) (map[string]any, error) {
	return s.passthrough(ctx, req, func(ctx context.Context, c *garmin.Client, date string) (json.RawMessage, error) {
		return c.HeartRate(ctx, date)
	})
}

func (s *Service) getRestingHeartRate(ctx context.Context, req mcp.CallToolRequest) (map[string]any, error) {
	return s.passthrough(ctx, req, func(ctx context.Context, c *garmin.Client, date string) (json.RawMessage, error) {
		return c.RestingHeartRate(ctx, date)
	})
}

func (s *Service) getStress(ctx context.Context, req mcp.CallToolRequest) (map[string]any, error) {
	return s.passthrough(ctx, req, func(ctx context.Context, c *garmin.Client, date string) (json.RawMessage, error) {
		return c.Stress(ctx, date)
	})
}

func (s *Service) getSteps(ctx context.Context, req mcp.CallToolRequest) (map[string]any, error) {
	return s.passthrough(ctx, req, func(ctx context.Context, c *garmin.Client, date string) (json.RawMessage, error) {
		return c.Steps(ctx, date)
	})
}

func (s *Service) getRespiration(ctx context.Context, req mcp.CallToolRequest) (map[string]any, error) {
	return s.passthrough(ctx, req, func(ctx context.Context, c *garmin.Client, date string) (json.RawMessage, error) {
		return c.Respiration(ctx, date)
	})
}

func (s *Service) getSpO2(ctx context.Context, req mcp.CallToolRequest) (map[string]any, error) {
	return s.passthrough(ctx, req, func(ctx context.Context, c *garmin.Client, date string) (json.RawMessage, error) {
		return c.SpO2(ctx, date)
	})
}

func (s *Service) getMenstrualCycle(ctx context.Context, req mcp.CallToolRequest) (map[string]any, error) {
	return s.passthrough(ctx, req, func(ctx context.Context, c *garmin.Client, date string) (json.RawMessage, error) {
		return c.MenstrualDayView(ctx, date)
	})
}

func (s *Service) getHRV(ctx context.Context, req mcp.CallToolRequest) (map[string]any, error) {
	return s.passthrough(ctx, req, func(ctx context.Context, c *garmin.Client, date string) (json.RawMessage, error) {
		return c.HRV(ctx, date)
	})
}

func (s *Service) getHydration(ctx context.Context, req mcp.CallToolRequest) (map[string]any, error) {
	return s.passthrough(ctx, req, func(ctx context.Context, c *garmin.Client, date string) (json.RawMessage, error) {
		return c.Hydration(ctx, date)
	})
}

func (s *Service) getActivities(ctx context.Context, req mcp.CallToolRequest) (map[string]any, error) {
	limit := req.GetInt("limit", 5)
	client, err := s.sessions.Session(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := client.Activities(ctx, 0, limit)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decoding activities payload: %w", err)
	}
	return map[string]any{"count": len(items), "data": items}, nil
}
