// Package messaging implements in-process message dispatch.
//
// A MessageProcessor receives a message, resolves its name, asks the
// registered HandlerSelectors (in priority order) which one owns it, and
// runs the selected handlers inside the applicable Behaviors:
//   - EventSelector fans events out to every subscriber
//   - DefaultSelector resolves exactly one handler using override priority
//   - Behaviors wrap handlers like middleware; the first is the outermost
//
// Ranking uses Priority values where lower means earlier or stronger.
// Selectors rank by override then processing priority, behaviors by
// processing then override priority, and registration order breaks ties.
//
// Example usage:
//
//	registry, err := messaging.NewRegistryBuilder().
//		AddHandler(messaging.HandleFunc(func(ctx context.Context, cmd *PlaceOrder, _ *messaging.MessagingContext) (*OrderPlaced, error) {
//			return &OrderPlaced{OrderID: cmd.OrderID}, nil
//		})).
//		AddBehavior(messaging.Use(behaviors.NewLoggingBehavior(logger))).
//		Build()
//	if err != nil {
//		return err
//	}
//
//	processor := messaging.NewMessageProcessor(registry, messaging.WithLogger(logger))
//	placed, err := messaging.Process[*OrderPlaced](ctx, processor, &PlaceOrder{OrderID: "42"})
package messaging
