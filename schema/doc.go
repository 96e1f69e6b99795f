// Package schema validates messages against JSON schemas.
//
// Schemas are registered per message name, either as documents or
// generated from Go types. The Validator satisfies the validation
// behavior's MessageValidator interface.
//
// Basic usage:
//
//	validator := schema.NewValidator(schema.WithResolver(resolver))
//	if _, err := validator.RegisterType(PlaceOrder{}); err != nil {
//	    return err
//	}
//
//	err := validator.Validate(ctx, &PlaceOrder{})
package schema
