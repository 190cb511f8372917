package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/oroscan/oroauth"
	"github.com/oroscan/oroauth/metrics/export/internaldefs"
)

// Instrument names. Dimensions travel as attributes rather than in the name.
const (
	LoginAttemptsName     = "oroauth.login.attempts"
	SessionChecksName     = "oroauth.session.checks"
	SessionRevokedName    = "oroauth.session.revoked"
	GuardRedirectsName    = "oroauth.guard.redirects"
	LogoutsName           = "oroauth.logouts"
	PasswordUpgradedName  = "oroauth.password.upgraded"
	RevocationErrorsName  = "oroauth.revocation.errors"
	AuditDroppedName      = "oroauth.audit.dropped"
	LatencyBucketSuffix   = ".latency.bucket"
	AttrOutcome           = "outcome"
	AttrResult            = "result"
	AttrScope             = "scope"
	AttrOperation         = "operation"
	AttrUpperBound        = "le"
	operationValidate     = "validate"
	operationAuthenticate = "authenticate"
)

// Constructor errors.
var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() oroauth.MetricsSnapshot
	AuditDropped() uint64
}

// labeled is a counter family sharing one instrument, one attribute set per
// engine counter.
type labeled struct {
	instrument metric.Int64ObservableCounter
	ids        []oroauth.MetricID
	attrs      []metric.ObserveOption
}

func newLabeled(meter metric.Meter, name, help, key string, defs []internaldefs.LabeledDef) (labeled, error) {
	ins, err := meter.Int64ObservableCounter(name, metric.WithDescription(help))
	if err != nil {
		return labeled{}, fmt.Errorf("create %s: %w", name, err)
	}
	l := labeled{instrument: ins}
	for _, def := range defs {
		l.ids = append(l.ids, def.ID)
		l.attrs = append(l.attrs, metric.WithAttributes(attribute.String(key, def.Value)))
	}
	return l, nil
}

func (l labeled) observe(o metric.Observer, s oroauth.MetricsSnapshot) {
	for i, id := range l.ids {
		o.ObserveInt64(l.instrument, int64(s.Counters[id]), l.attrs[i])
	}
}

type single struct {
	instrument metric.Int64ObservableCounter
	id         oroauth.MetricID
}

// Exporter publishes engine counters as OTel observable instruments:
// login attempts by outcome, session checks by result, logouts by scope,
// and cumulative latency buckets keyed by operation and upper bound.
type Exporter struct {
	source       metricsSource
	registration metric.Registration

	logins   labeled
	sessions labeled
	logouts  labeled
	singles  []single
	latency  metric.Int64ObservableGauge
	dropped  metric.Int64ObservableCounter
}

// NewExporter registers observable instruments on meter that read from engine.
func NewExporter(meter metric.Meter, engine *oroauth.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource is NewExporter for any snapshot source.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var err error

	if e.logins, err = newLabeled(meter, LoginAttemptsName, "Authentication attempts by outcome.", AttrOutcome, internaldefs.LoginOutcomeDefs); err != nil {
		return nil, err
	}
	if e.sessions, err = newLabeled(meter, SessionChecksName, "Session token validations by result.", AttrResult, internaldefs.SessionResultDefs); err != nil {
		return nil, err
	}
	if e.logouts, err = newLabeled(meter, LogoutsName, "Logouts by scope.", AttrScope, internaldefs.LogoutScopeDefs); err != nil {
		return nil, err
	}

	for _, s := range []struct {
		name, help string
		id         oroauth.MetricID
	}{
		{SessionRevokedName, "Session tokens rejected because they were revoked.", oroauth.MetricSessionRevoked},
		{GuardRedirectsName, "Guarded requests redirected to the login path.", oroauth.MetricGuardRedirect},
		{PasswordUpgradedName, "Password hashes rewritten with current parameters on login.", oroauth.MetricPasswordUpgraded},
		{RevocationErrorsName, "Revocation list lookups that failed.", oroauth.MetricRevocationUnavailable},
	} {
		ins, err := meter.Int64ObservableCounter(s.name, metric.WithDescription(s.help))
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", s.name, err)
		}
		e.singles = append(e.singles, single{instrument: ins, id: s.id})
	}

	e.latency, err = meter.Int64ObservableGauge("oroauth"+LatencyBucketSuffix,
		metric.WithDescription("Cumulative latency bucket counts by operation and upper bound in seconds."))
	if err != nil {
		return nil, fmt.Errorf("create latency gauge: %w", err)
	}
	e.dropped, err = meter.Int64ObservableCounter(AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}

	observables := []metric.Observable{e.logins.instrument, e.sessions.instrument, e.logouts.instrument, e.latency, e.dropped}
	for _, s := range e.singles {
		observables = append(observables, s.instrument)
	}

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	e.logins.observe(o, snapshot)
	e.sessions.observe(o, snapshot)
	e.logouts.observe(o, snapshot)
	for _, s := range e.singles {
		o.ObserveInt64(s.instrument, int64(snapshot.Counters[s.id]))
	}

	for _, h := range []struct {
		id oroauth.MetricID
		op string
	}{
		{oroauth.MetricValidateLatency, operationValidate},
		{oroauth.MetricAuthenticateLatency, operationAuthenticate},
	} {
		raw, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i, count := range cumulative {
			o.ObserveInt64(e.latency, int64(count), metric.WithAttributes(
				attribute.String(AttrOperation, h.op),
				attribute.String(AttrUpperBound, internaldefs.HistogramBoundSuffix[i]),
			))
		}
	}

	o.ObserveInt64(e.dropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the callback. Instruments stay registered on the meter.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
