package app

import (
	"stripe-webhook-router/internal/locks"
	"stripe-webhook-router/internal/subscription"
)

func (app *App) initializeRefresher() error {
	var locker locks.Locker = locks.NewLocalLocker()
	if app.RedisClient != nil {
		redsyncLocker, err := locks.NewRedsyncLocker(app.RedisClient)
		if err != nil {
			return err
		}
		locker = redsyncLocker
	}

	refresher, err := subscription.NewRefresher(app.Subscriptions, locker, subscription.RefresherConfig{
		Schedule: app.Config.SubscriptionRefreshSchedule,
		Window:   app.Config.SubscriptionRefreshWindow,
	})
	if err != nil {
		return err
	}
	app.Refresher = refresher
	return nil
}
