package distribution

import "go.uber.org/fx"

var Module = fx.Options(
	fx.Provide(NewWorkflow),
	fx.Provide(NewBulk),
	fx.Provide(NewExecutor),
	fx.Invoke(Register),
)
