// Package cloudevent bridges CloudEvents and the message processor.
//
// Incoming events are converted with FromEvent and dispatched like any
// other message; ContextOptions copies the event attributes into the
// messaging context:
//
//	msg, err := cloudevent.FromEvent(&event, types)
//	if err != nil {
//	    return err
//	}
//	result, err := processor.Process(ctx, msg, cloudevent.ContextOptions(&event)...)
//
// ToEvent turns a result back into an event.
package cloudevent
