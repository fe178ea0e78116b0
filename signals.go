package stok

import (
	"context"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/effxhq/go-stok/logging"
)

// notify subscribes to the configured signals. Every delivery is logged and triggers Shutdown, which
// makes repeated signals harmless.
func (app *Application) notify() {
	if len(app.signals) == 0 {
		return
	}

	app.signal = make(chan os.Signal, 1)
	app.stop = make(chan struct{})

	signal.Notify(app.signal, app.signals...)

	go func() {
		defer signal.Stop(app.signal)

		for {
			select {
			case sig := <-app.signal:
				app.logger.Info("Received signal: "+sig.String(),
					logging.Tags("shutdown"), zap.String("signal", sig.String()))

				// the outcome is logged by the registry
				go func() { _ = app.Shutdown(context.Background()) }()

			case <-app.stop:
				return
			}
		}
	}()
}
