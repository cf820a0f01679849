package metrics

import "github.com/google/wire"

// ProviderSet is the Wire provider set for metrics.
var ProviderSet = wire.NewSet(New)
