package messaging

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/glimte/mmate-dispatch/contracts"
)

// Plan describes how a message would be dispatched without running it
type Plan struct {
	MessageType string   `json:"messageType" yaml:"messageType"`
	MessageName string   `json:"messageName" yaml:"messageName"`
	Shape       string   `json:"shape" yaml:"shape"`
	Selector    string   `json:"selector" yaml:"selector"`
	FanOut      bool     `json:"fanOut" yaml:"fanOut"`
	Handlers    []string `json:"handlers" yaml:"handlers"`
	Behaviors   []string `json:"behaviors" yaml:"behaviors"`
	Error       string   `json:"error,omitempty" yaml:"error,omitempty"`
}

func (p Plan) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s, %s) -> %s", p.MessageName, p.MessageType, p.Shape, p.Selector)
	if len(p.Behaviors) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(p.Behaviors, " > "))
	}
	if len(p.Handlers) > 0 {
		fmt.Fprintf(&b, " => %s", strings.Join(p.Handlers, ", "))
	}
	if p.Error != "" {
		fmt.Fprintf(&b, " !! %s", p.Error)
	}
	return b.String()
}

// Plan resolves how msg would be dispatched. Resolution failures are
// reported in Plan.Error and returned; handlers are not constructed.
func (p *MessageProcessor) Plan(msg contracts.Message, opts ...ContextOption) (Plan, error) {
	if msg == nil {
		return Plan{}, ErrNilMessage
	}
	mctx := NewMessagingContext(msg, p.resolver, p.logger, opts...)
	messageType := contracts.TypeOf(msg)
	return p.plan(messageType, mctx.MessageName(), contracts.Classify(msg))
}

// PlanFor resolves the dispatch plan for a message type and name
func (p *MessageProcessor) PlanFor(messageType reflect.Type, messageName string) (Plan, error) {
	messageType = contracts.Indirect(messageType)
	if messageName == "" && messageType != nil {
		messageName = p.resolver.NameFor(messageType)
	}
	return p.plan(messageType, messageName, contracts.ClassifyType(messageType))
}

func (p *MessageProcessor) plan(messageType reflect.Type, messageName string, shape contracts.Shape) (Plan, error) {
	plan := Plan{
		MessageType: typeName(messageType),
		MessageName: messageName,
		Shape:       shape.String(),
		Handlers:    []string{},
		Behaviors:   []string{},
	}

	for _, reg := range p.behaviorsFor(messageType, messageName) {
		plan.Behaviors = append(plan.Behaviors, reg.Name)
	}

	selected := p.selectorFor(messageType, messageName)
	if selected == nil {
		err := &ConfigurationError{Op: "select handlers", MessageType: messageType, MessageName: messageName, Err: ErrNoSelector}
		plan.Error = err.Error()
		return plan, err
	}
	plan.Selector = selected.Name
	if f, ok := selected.Selector.(FanOutSelector); ok {
		plan.FanOut = f.FanOut()
	}

	inspector, ok := selected.Selector.(Inspector)
	if !ok {
		return plan, nil
	}
	regs, err := inspector.Resolve(messageType, messageName)
	if err != nil {
		plan.Error = err.Error()
		return plan, err
	}
	for _, reg := range regs {
		plan.Handlers = append(plan.Handlers, reg.Name)
	}
	return plan, nil
}

// Routes returns the plan of every registered handler target, one per
// distinct (type, name) pair in registration order.
func (p *MessageProcessor) Routes() []Plan {
	targets := p.targets()
	plans := make([]Plan, 0, len(targets))
	for _, key := range targets {
		plan, _ := p.plan(key.messageType, key.messageName, contracts.ClassifyType(key.messageType))
		plans = append(plans, plan)
	}
	return plans
}

// Validate resolves every registered handler target up front so that
// ambiguous or unroutable registrations fail at startup instead of on
// first dispatch.
func (p *MessageProcessor) Validate() error {
	var errs []error
	for _, key := range p.targets() {
		if _, err := p.plan(key.messageType, key.messageName, contracts.ClassifyType(key.messageType)); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &ConfigurationError{Op: "validate registry", Err: errors.Join(errs...)}
	}
	return nil
}

func (p *MessageProcessor) targets() []dispatchKey {
	var keys []dispatchKey
	seen := make(map[dispatchKey]bool)
	for _, reg := range p.registry.handlers {
		key := p.targetOf(reg)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}

func (p *MessageProcessor) targetOf(reg HandlerRegistration) dispatchKey {
	name := reg.MessageName
	if name == "" && reg.MessageType != nil {
		name = p.resolver.NameFor(reg.MessageType)
	}
	return dispatchKey{messageType: reg.MessageType, messageName: name}
}
