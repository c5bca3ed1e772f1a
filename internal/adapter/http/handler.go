package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/celsiusify/internal/app"
	"github.com/neomorfeo/celsiusify/internal/domain"
)

// --- Convert ---

type ConvertInput struct {
	Fahrenheit float64 `query:"fahrenheit" required:"true" doc:"Temperature in degrees Fahrenheit" example:"100"`
}

// ConvertResponse is the API representation of one conversion.
type ConvertResponse struct {
	Celsius       string `json:"celsius" doc:"Temperature in degrees Celsius, six decimal places" example:"37.777778"`
	AppIdentifier string `json:"app_identifier" doc:"Identifier of the process that served the request" example:"aB3dE6gH-12345678-ZZZZZZZZ-a1b2c3d4"`
}

type ConvertOutput struct {
	Body ConvertResponse
}

// --- Health ---

// HealthResponse reports the lifecycle state of the serving process.
type HealthResponse struct {
	Status        string `json:"status" enum:"starting,ready,draining" doc:"Lifecycle state"`
	AppIdentifier string `json:"app_identifier" doc:"Identifier of the process"`
}

type HealthOutput struct {
	Body HealthResponse
}

// --- Stats ---

// StatsResponse summarizes the conversions this process has served.
type StatsResponse struct {
	AppIdentifier string   `json:"app_identifier" doc:"Identifier of the process"`
	Count         int64    `json:"count" doc:"Conversions recorded"`
	MinFahrenheit *float64 `json:"min_fahrenheit,omitempty" doc:"Lowest Fahrenheit input"`
	MaxFahrenheit *float64 `json:"max_fahrenheit,omitempty" doc:"Highest Fahrenheit input"`
	FirstAt       string   `json:"first_at,omitempty" doc:"First recorded conversion (RFC 3339)"`
	LastAt        string   `json:"last_at,omitempty" doc:"Last recorded conversion (RFC 3339)"`
}

type StatsOutput struct {
	Body StatsResponse
}

func toStatsResponse(s domain.LedgerStats) StatsResponse {
	resp := StatsResponse{
		AppIdentifier: s.AppIdentifier.String(),
		Count:         s.Count,
	}
	if s.Count > 0 {
		minF, maxF := s.MinFahrenheit, s.MaxFahrenheit
		resp.MinFahrenheit = &minF
		resp.MaxFahrenheit = &maxF
		resp.FirstAt = s.FirstAt.Format(time.RFC3339Nano)
		resp.LastAt = s.LastAt.Format(time.RFC3339Nano)
	}
	return resp
}

// Register adds the conversion API routes to the Huma API. Every route but
// the health check answers 503 until lc is ready.
func Register(api huma.API, svc *app.ConversionService, lc *app.Lifecycle) {
	gated := huma.Middlewares{readyGate(api, lc)}

	convert := func(ctx context.Context, input *ConvertInput) (*ConvertOutput, error) {
		c := svc.Convert(ctx, input.Fahrenheit)
		return &ConvertOutput{Body: ConvertResponse{
			Celsius:       domain.FormatCelsius(c.Celsius),
			AppIdentifier: c.AppIdentifier.String(),
		}}, nil
	}

	huma.Register(api, huma.Operation{
		OperationID: "convert-temperature",
		Method:      http.MethodGet,
		Path:        "/convert/",
		Summary:     "Convert Fahrenheit to Celsius",
		Description: "Computes (fahrenheit - 32) × 5/9 and tags the answer with the serving process identifier.",
		Tags:        []string{"Conversion"},
		Middlewares: gated,
	}, convert)

	huma.Register(api, huma.Operation{
		OperationID: "convert-temperature-noslash",
		Method:      http.MethodGet,
		Path:        "/convert",
		Summary:     "Convert Fahrenheit to Celsius",
		Tags:        []string{"Conversion"},
		Hidden:      true,
		Middlewares: gated,
	}, convert)

	huma.Register(api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/healthz",
		Summary:     "Report readiness",
		Tags:        []string{"Operations"},
	}, func(_ context.Context, _ *struct{}) (*HealthOutput, error) {
		if !lc.Ready() {
			return nil, huma.Error503ServiceUnavailable("service is " + string(lc.Status()))
		}
		return &HealthOutput{Body: HealthResponse{
			Status:        string(lc.Status()),
			AppIdentifier: svc.Identifier().String(),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-stats",
		Method:      http.MethodGet,
		Path:        "/stats/",
		Summary:     "Summarize conversions served by this process",
		Tags:        []string{"Operations"},
		Middlewares: gated,
	}, func(ctx context.Context, _ *struct{}) (*StatsOutput, error) {
		stats, err := svc.Stats(ctx)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &StatsOutput{Body: toStatsResponse(stats)}, nil
	})
}

// readyGate rejects requests with 503 while the process is starting or draining.
func readyGate(api huma.API, lc *app.Lifecycle) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if !lc.Ready() {
			_ = huma.WriteErr(api, ctx, http.StatusServiceUnavailable, domain.ErrNotReady.Error())
			return
		}
		next(ctx)
	}
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrLedgerDisabled) || errors.Is(err, domain.ErrNotReady) {
		return huma.Error503ServiceUnavailable(err.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
