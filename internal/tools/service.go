// Package tools exposes Garmin Connect health data as MCP tools: sixteen
// operations sharing one session source, one result envelope, and one
// instrumentation boundary. Handlers return plain field maps; the envelope
// wrapper owns success/error shaping, so no error or panic ever crosses the
// tool boundary as a protocol failure.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/SolanceLab/garmin-mcp/internal/garmin"
)

// Sessions yields the shared authenticated client. Implemented by
// session.Manager.
type Sessions interface {
	Session(ctx context.Context) (*garmin.Client, error)
}

// Invocation describes one completed tool call, success or not.
type Invocation struct {
	ID       string
	Time     time.Time
	Tool     string
	Date     string // the date parameter as given, empty when absent
	Outcome  string // "success" or a failure Kind
	Error    string // empty on success
	Duration time.Duration
}

// Observer receives every completed invocation. Implementations must not
// block; they run on the request path.
type Observer interface {
	ObserveInvocation(inv Invocation)
}

// handlerFunc is the inner handler shape: return the envelope's data fields
// on success, an error for the wrapper to classify otherwise.
type handlerFunc func(ctx context.Context, req mcp.CallToolRequest) (map[string]any, error)

// Service wires the tool handlers to their shared dependencies.
type Service struct {
	sessions  Sessions
	logger    *slog.Logger
	tracer    trace.Tracer
	observers []Observer
	profilePK int64
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithTracer sets the tracer used for per-invocation spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithObserver appends an invocation observer.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observers = append(s.observers, o) }
}

// WithProfilePK sets the numeric user profile identifier required by
// menstrual calendar writes. Zero when unconfigured.
func WithProfilePK(pk int64) Option {
	return func(s *Service) { s.profilePK = pk }
}

// WithClock overrides the clock used for date resolution and write
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs a Service around the given session source.
func New(sessions Sessions, opts ...Option) *Service {
	s := &Service{
		sessions: sessions,
		logger:   slog.Default(),
		tracer:   otel.Tracer("garmin-mcp/tools"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const dateParamDoc = "Date in YYYY-MM-DD format. Defaults to today."

// Register adds all sixteen tools to the MCP server.
func (s *Service) Register(srv *server.MCPServer) {
	srv.AddTool(mcp.NewTool("get_daily_summary",
		mcp.WithDescription("Get the daily health summary for a date: steps, calories, distance, floors, intensity minutes, stress and body battery overview."),
		mcp.WithString("date", mcp.Description(dateParamDoc)),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.instrument("get_daily_summary", s.getDailySummary))

	srv.AddTool(mcp.NewTool("get_body_battery",
		mcp.WithDescription("Get Body Battery charge levels and the discrete charge/drain events for a date."),
		mcp.WithString("date", mcp.Description(dateParamDoc)),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.instrument("get_body_battery", s.getBodyBattery))

	srv.AddTool(mcp.NewTool("get_sleep_data",
		mcp.WithDescription("Get a compact sleep summary for a date: score, quality, stage durations, SpO2 and respiration averages, overnight HRV, body battery change and the stage level sequence."),
		mcp.WithString("date", mcp.Description(dateParamDoc)),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.instrument("get_sleep_data", s.getSleepData))

	srv.AddTool(mcp.NewTool("get_sleep_detail",
		mcp.WithDescription("Get the full per-epoch sleep time series for a date: movement, heart rate, stress, body battery, HRV, SpO2, respiration and restless moments. Large payload; prefer get_sleep_data unless the series are needed."),
		mcp.WithString("date", mcp.Description(dateParamDoc)),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.instrument("get_sleep_detail", s.getSleepDetail))

	srv.AddTool(mcp.NewTool("get_heart_rate",
		mcp.WithDescription("Get heart rate readings through the day plus min, max and resting values for a date."),
		mcp.WithString("date", mcp.Description(dateParamDoc)),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.instrument("get_heart_rate", s.getHeartRate))

	srv.AddTool(mcp.NewTool("get_resting_heart_rate",
		mcp.WithDescription("Get the resting heart rate for a date."),
		mcp.WithString("date", mcp.Description(dateParamDoc)),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.instrument("get_resting_heart_rate", s.getRestingHeartRate))

	srv.AddTool(mcp.NewTool("get_stress",
		mcp.WithDescription("Get stress level readings and the overall stress score for a date."),
		mcp.WithString("date", mcp.Description(dateParamDoc)),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.instrument("get_stress", s.getStress))

	srv.AddTool(mcp.NewTool("get_steps",
		mcp.WithDescription("Get step counts through the day in 15-minute buckets for a date."),
		mcp.WithString("date", mcp.Description(dateParamDoc)),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.instrument("get_steps", s.getSteps))

	srv.AddTool(mcp.NewTool("get_respiration",
		mcp.WithDescription("Get respiration rate readings for a date."),
		mcp.WithString("date", mcp.Description(dateParamDoc)),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.instrument("get_respiration", s.getRespiration))

	srv.AddTool(mcp.NewTool("get_spo2",
		mcp.WithDescription("Get pulse ox (blood oxygen saturation) readings for a date."),
		mcp.WithString("date", mcp.Description(dateParamDoc)),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.instrument("get_spo2", s.getSpO2))

	srv.AddTool(mcp.NewTool("get_menstrual_cycle",
		mcp.WithDescription("Get menstrual cycle phase and period information for a date."),
		mcp.WithString("date", mcp.Description(dateParamDoc)),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.instrument("get_menstrual_cycle", s.getMenstrualCycle))

	srv.AddTool(mcp.NewTool("get_hrv",
		mcp.WithDescription("Get heart rate variability readings and HRV status for a date."),
		mcp.WithString("date", mcp.Description(dateParamDoc)),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.instrument("get_hrv", s.getHRV))

	srv.AddTool(mcp.NewTool("get_hydration",
		mcp.WithDescription("Get hydration intake and goal for a date."),
		mcp.WithString("date", mcp.Description(dateParamDoc)),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.instrument("get_hydration", s.getHydration))

	srv.AddTool(mcp.NewTool("get_activities",
		mcp.WithDescription("List recent activities (workouts), most recent first."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of activities to return."),
			mcp.DefaultNumber(5),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.instrument("get_activities", s.getActivities))

	srv.AddTool(mcp.NewTool("add_hydration",
		mcp.WithDescription("Log a water intake amount in milliliters for today."),
		mcp.WithNumber("amount_ml",
			mcp.Description("Amount of water in milliliters."),
			mcp.Required(),
		),
		mcp.WithDestructiveHintAnnotation(false),
	), s.instrument("add_hydration", s.addHydration))

	srv.AddTool(mcp.NewTool("update_menstrual_cycle",
		mcp.WithDescription("Record a menstrual period covering an inclusive start to end date range."),
		mcp.WithString("start_date",
			mcp.Description("First day of the period, YYYY-MM-DD."),
			mcp.Required(),
		),
		mcp.WithString("end_date",
			mcp.Description("Last day of the period, YYYY-MM-DD."),
			mcp.Required(),
		),
		mcp.WithDestructiveHintAnnotation(false),
	), s.instrument("update_menstrual_cycle", s.updateMenstrualCycle))
}

// instrument wraps a handler into the single envelope boundary: it runs the
// handler, classifies any failure, shapes the uniform result, records the
// span and fans the invocation out to observers. The returned handler never
// yields a protocol-level error.
func (s *Service) instrument(tool string, h handlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		ctx, span := s.tracer.Start(ctx, tool,
			trace.WithAttributes(attribute.String("tool.name", tool)))
		defer span.End()

		fields, err := s.safeCall(ctx, tool, h, req)

		envelope := map[string]any{"success": err == nil}
		outcome := "success"
		errMsg := ""
		if err != nil {
			kind, msg := Classify(err)
			outcome, errMsg = string(kind), msg
			envelope["error"] = msg
			span.RecordError(err)
			span.SetStatus(codes.Error, msg)
			s.logger.Warn("tool invocation failed", "tool", tool, "kind", outcome, "error", msg)
		} else {
			for k, v := range fields {
				envelope[k] = v
			}
		}
		span.SetAttributes(attribute.String("tool.outcome", outcome))

		inv := Invocation{
			ID:       uuid.NewString(),
			Time:     start,
			Tool:     tool,
			Date:     req.GetString("date", ""),
			Outcome:  outcome,
			Error:    errMsg,
			Duration: time.Since(start),
		}
		for _, o := range s.observers {
			o.ObserveInvocation(inv)
		}

		body, merr := json.Marshal(envelope)
		if merr != nil {
			s.logger.Error("encoding tool result failed", "tool", tool, "error", merr)
			return mcp.NewToolResultText(`{"success":false,"error":"internal: result encoding failed"}`), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

// safeCall runs the handler, converting a panic into a plain error so the
// envelope boundary holds even for bugs.
func (s *Service) safeCall(ctx context.Context, tool string, h handlerFunc, req mcp.CallToolRequest) (fields map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tool handler panicked", "tool", tool, "panic", r)
			err = fmt.Errorf("panic in %s: %v", tool, r)
		}
	}()
	return h(ctx, req)
}
