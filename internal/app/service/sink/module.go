package sink

import "go.uber.org/fx"

var Module = fx.Options(
	fx.Provide(NewShopifyClient),
	fx.Provide(func(c *ShopifyClient) Sink { return c }),
)
