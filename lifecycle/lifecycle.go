package lifecycle

import (
	"context"

	"go.uber.org/fx"
)

type Starter interface {
	Start(ctx context.Context) error
}

type Stopper interface {
	Stop(ctx context.Context) error
}

// Append binds whichever of Start and Stop the component implements to lc.
func Append(lc fx.Lifecycle, component any) {
	var hook fx.Hook
	if s, ok := component.(Starter); ok {
		hook.OnStart = s.Start
	}
	if s, ok := component.(Stopper); ok {
		hook.OnStop = s.Stop
	}
	if hook.OnStart == nil && hook.OnStop == nil {
		return
	}
	lc.Append(hook)
}
