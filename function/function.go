package function

import (
	"strings"

	"go.uber.org/zap/zapcore"

	internalzap "github.com/serverless/function-gateway/internal/zap"
)

// Application is a deployment unit grouping functions owned by a single user.
type Application struct {
	Name      string        `json:"name" mapstructure:"name" validate:"required"`
	UserID    string        `json:"userId" mapstructure:"userId" validate:"required"`
	Functions []*Definition `json:"functions" mapstructure:"functions" validate:"dive"`
}

// Applications is an array of applications.
type Applications []*Application

// Definition describes a deployed function and the triggers allowed to invoke it.
type Definition struct {
	FunctionName  string      `json:"functionName" mapstructure:"functionName" validate:"required,nowhitespace"`
	UserID        string      `json:"userId" mapstructure:"userId" validate:"required"`
	Runtime       RuntimeType `json:"runtime" mapstructure:"runtime"`
	BaseDirectory string      `json:"baseDirectory" mapstructure:"baseDirectory"`
	EntryFile     string      `json:"entryFile" mapstructure:"entryFile" validate:"required"`
	Triggers      []*Trigger  `json:"triggers" mapstructure:"triggers" validate:"dive"`
}

// Is reports whether the definition belongs to the user and carries the name, ignoring case.
func (d *Definition) Is(userID, functionName string) bool {
	return strings.EqualFold(d.UserID, userID) && strings.EqualFold(d.FunctionName, functionName)
}

// MarshalLogObject is a part of zapcore.ObjectMarshaler interface.
func (d Definition) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("userId", d.UserID)
	enc.AddString("functionName", d.FunctionName)
	enc.AddString("runtime", string(d.Runtime))
	enc.AddString("baseDirectory", d.BaseDirectory)
	enc.AddString("entryFile", d.EntryFile)
	enc.AddInt("triggers", len(d.Triggers))
	return nil
}

// Trigger is a set of predicates an inbound HTTP request has to satisfy.
type Trigger struct {
	Methods  []string     `json:"methods" mapstructure:"methods" validate:"required,min=1"`
	Required Requirements `json:"required" mapstructure:"required"`
}

// Requirements lists what has to be present on a request beyond the method.
type Requirements struct {
	QuerystringEntries []string `json:"querystringEntries,omitempty" mapstructure:"querystringEntries"`
	Headers            []string `json:"headers,omitempty" mapstructure:"headers"`
	RequestBody        bool     `json:"requestBody" mapstructure:"requestBody"`
	RequireSsl         bool     `json:"requireSsl" mapstructure:"requireSsl"`
}

// AllowsMethod checks if the HTTP method is one of the trigger's methods. Comparison is case-insensitive.
func (t *Trigger) AllowsMethod(method string) bool {
	for _, m := range t.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// MarshalLogObject is a part of zapcore.ObjectMarshaler interface.
func (t Trigger) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddArray("methods", internalzap.Strings(t.Methods))
	enc.AddArray("headers", internalzap.Strings(t.Required.Headers))
	enc.AddArray("querystringEntries", internalzap.Strings(t.Required.QuerystringEntries))
	enc.AddBool("requestBody", t.Required.RequestBody)
	enc.AddBool("requireSsl", t.Required.RequireSsl)
	return nil
}
