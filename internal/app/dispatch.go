package app

import (
	"time"

	"stripe-webhook-router/internal/circuitbreaker"
	"stripe-webhook-router/internal/common/cache"
	"stripe-webhook-router/internal/common/logging"
	"stripe-webhook-router/internal/dispatch"
	"stripe-webhook-router/internal/event"
	"stripe-webhook-router/internal/events"
	"stripe-webhook-router/internal/resolver"
	"stripe-webhook-router/internal/signature"
)

func (app *App) initializeDispatch() error {
	cfg := app.Config

	verifier, err := signature.NewVerifier(signature.Config{
		Header:    cfg.SignatureHeader,
		Scheme:    cfg.SignatureScheme,
		Tolerance: cfg.SignatureTolerance,
	})
	if err != nil {
		return err
	}
	app.Verifier = verifier

	opts := []resolver.Option{
		resolver.WithBreaker(circuitbreaker.New("stripe-events-api", circuitbreaker.UpstreamAPIConfig, app.Logger)),
	}
	if cfg.ResolveCacheTTL > 0 {
		if app.RedisClient != nil {
			opts = append(opts, resolver.WithCache(cache.NewTwoTierCache(time.Minute, app.RedisClient.Raw(), "stripe:event:")))
		} else {
			opts = append(opts, resolver.WithCache(cache.NewLocalCache(cfg.ResolveCacheTTL, 2*cfg.ResolveCacheTTL)))
		}
	}

	res := resolver.NewThinEventResolver(
		verifier,
		resolver.NewStripeEventsClient(cfg.StripeAPIBase, cfg.StripeAPIVersion, cfg.ResolveTimeout),
		resolver.Config{Timeout: cfg.ResolveTimeout, CacheTTL: cfg.ResolveCacheTTL},
		opts...,
	)

	app.Dispatcher = dispatch.New(verifier, res,
		dispatch.WithClassifier(&event.PrefixClassifier{Prefix: cfg.ThinTypePrefix}),
		dispatch.WithCredentials(dispatch.DefaultCredentials(cfg.StripeAPIKey)),
		dispatch.WithChannels(cfg.TypeChannelTable()),
	)
	app.Registry = events.DefaultRegistry(verifier, dispatch.ChannelSnapshotEvents, dispatch.ChannelThinEvents)

	app.Logger.Info("Dispatcher ready",
		logging.String("header_name", cfg.SignatureHeader),
		logging.Duration("tolerance", cfg.SignatureTolerance),
		logging.Strings("channels", app.Dispatcher.Channels().Names()),
		logging.Strings("handlers", app.Registry.Channels()),
		logging.Bool("provider_key", cfg.StripeAPIKey != ""),
	)
	return nil
}

// initializeRunner wires the handler runner to the broker when one is configured
func (app *App) initializeRunner() {
	var sink events.Sink
	if app.Forwarder != nil {
		sink = app.Forwarder
	}
	app.Runner = events.NewRunner(app.Registry, sink)
}
