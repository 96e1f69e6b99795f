// Package behaviors provides ready-made pipeline behaviors for the
// message processor: logging, metrics, correlation, validation, timeouts,
// retries, circuit breaking, filtering, short-circuiting and result
// caching.
//
// Behaviors are plain messaging.Behavior values and are registered like any
// other. ChainBuilder assigns ascending processing priorities so the first
// behavior added is the outermost:
//
//	chain := behaviors.NewChainBuilder(logger).
//	    WithCorrelation().
//	    WithLogging().
//	    WithMetrics(collector).
//	    WithValidation(validator).
//	    WithTimeout(5 * time.Second)
//
//	registry, err := chain.Register(messaging.NewRegistryBuilder()).
//	    AddHandler(messaging.HandleFunc(placeOrder)).
//	    Build()
//
// Short-circuiting behaviors such as CachingBehavior return a result
// without calling next; the handlers and inner behaviors do not run.
package behaviors
