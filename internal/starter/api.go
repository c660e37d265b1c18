package starter

import (
	"context"

	"moff.io/moff-connector/internal/config"
	"moff.io/moff-connector/pkg/log"
)

type Startable interface {
	Start(ctx context.Context)
}

type Configurable interface {
	Apply(*config.Configuration)
}

// Start applies the global configuration to configurable elements and starts them in order.
func Start(ctx context.Context, elems ...Startable) {
	for _, ele := range elems {
		if configurable, ok := ele.(Configurable); ok {
			configurable.Apply(config.Global)
		}
		ele.Start(ctx)
	}
}

type Stopable interface {
	Stop()
}

// Stop stops elems in reverse order.
func Stop(elems ...Stopable) {
	for i := len(elems) - 1; i >= 0; i-- {
		log.Debugf("stopping %T", elems[i])
		elems[i].Stop()
	}
}
