// Package telemetry holds the OpenTelemetry instruments the services emit.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/tidehall/gatekeeper"

// Metrics bundles the counters the OAuth2 flows increment. The zero value is
// unusable; call New, which falls back to the global (noop by default) meter
// provider when none is configured.
type Metrics struct {
	CodesIssued        metric.Int64Counter
	CodesExchanged     metric.Int64Counter
	CodeReplays        metric.Int64Counter
	TokensIssued       metric.Int64Counter
	TokensRevoked      metric.Int64Counter
	TokensIntrospected metric.Int64Counter
	RefreshRotations   metric.Int64Counter
}

// New builds the instrument set from the global meter provider.
func New() (*Metrics, error) {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}
	var err error

	if m.CodesIssued, err = meter.Int64Counter("auth.codes.issued",
		metric.WithDescription("Authorization codes issued")); err != nil {
		return nil, err
	}
	if m.CodesExchanged, err = meter.Int64Counter("auth.codes.exchanged",
		metric.WithDescription("Authorization codes exchanged for tokens")); err != nil {
		return nil, err
	}
	if m.CodeReplays, err = meter.Int64Counter("auth.codes.replays",
		metric.WithDescription("Authorization code replay attempts detected")); err != nil {
		return nil, err
	}
	if m.TokensIssued, err = meter.Int64Counter("auth.tokens.issued",
		metric.WithDescription("Access tokens issued")); err != nil {
		return nil, err
	}
	if m.TokensRevoked, err = meter.Int64Counter("auth.tokens.revoked",
		metric.WithDescription("Tokens revoked")); err != nil {
		return nil, err
	}
	if m.TokensIntrospected, err = meter.Int64Counter("auth.tokens.introspected",
		metric.WithDescription("Introspection requests served")); err != nil {
		return nil, err
	}
	if m.RefreshRotations, err = meter.Int64Counter("auth.refresh.rotations",
		metric.WithDescription("Refresh tokens rotated")); err != nil {
		return nil, err
	}
	return m, nil
}

// MustNew is New for wiring paths where instrument creation cannot fail in
// practice (the noop provider never errors).
func MustNew() *Metrics {
	m, err := New()
	if err != nil {
		panic(err)
	}
	return m
}

// Add increments c with a grant_type attribute. Nil-safe so services can run
// without metrics in tests.
func Add(ctx context.Context, c metric.Int64Counter, grantType string) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attribute.String("grant_type", grantType)))
}
