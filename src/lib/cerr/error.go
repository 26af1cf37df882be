package cerr

import "fmt"

// Errors carry a message chain plus structured fields that cerr.Log can hand
// to the logger. Fields of a wrapped ContextualError propagate outward and
// never overwrite the outer layer's fields.

var _ error = ContextualError{}
var _ interface{ Unwrap() error } = ContextualError{}

type ErrorContext struct {
	ContextFields map[string]interface{}
}

type ContextualError struct {
	Context ErrorContext
	Message string
	Cause   error
}

func (c ContextualError) Error() string {
	if c.Cause == nil {
		return c.Message
	}

	return fmt.Sprintf("%s: %s", c.Message, c.Cause.Error())
}

func (c ContextualError) Unwrap() error {
	return c.Cause
}

// Builder accumulates fields and a cause before the final Error call.
type Builder struct {
	fields map[string]interface{}
	cause  error
}

func Field(key string, value interface{}) Builder {
	return Builder{}.Field(key, value)
}

func Wrap(cause error) Builder {
	return Builder{}.Wrap(cause)
}

func Error(message string) error {
	return Builder{}.Error(message)
}

func (b Builder) Field(key string, value interface{}) Builder {
	fields := map[string]interface{}{}
	for k, v := range b.fields {
		fields[k] = v
	}
	fields[key] = value

	return Builder{
		fields: fields,
		cause:  b.cause,
	}
}

func (b Builder) Wrap(cause error) Builder {
	return Builder{
		fields: b.fields,
		cause:  cause,
	}
}

func (b Builder) Error(message string) error {
	fields := b.fields
	if fields == nil {
		fields = map[string]interface{}{}
	}

	if ctxErr, ok := b.cause.(ContextualError); ok {
		for k, v := range ctxErr.Context.ContextFields {
			if _, taken := fields[k]; !taken {
				fields[k] = v
			}
		}
	}

	return ContextualError{
		Context: ErrorContext{ContextFields: fields},
		Message: message,
		Cause:   b.cause,
	}
}
