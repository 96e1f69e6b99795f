// Package contracts provides the message types and capability interfaces
// understood by the dispatch pipeline.
//
// Message shapes:
//   - Message: Base interface for all messages
//   - Command: An action to be performed by exactly one handler
//   - Event: Something that happened; any number of handlers may observe it
//   - Query: A request for information
//   - Reply: A response to a request
//   - MessageEnvelope: A message wrapping another message
//   - MessageAdapter: A foreign payload bridged into a message
//
// Classify and ClassifyType report the shape of a value or type, and TypeOf
// returns the type used as the handler resolution key.
package contracts
