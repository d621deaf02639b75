package registry

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
	validator "gopkg.in/go-playground/validator.v9"

	"github.com/serverless/function-gateway/function"
)

// Registry holds loaded applications. It's read-only after New returns and safe for concurrent use.
type Registry struct {
	applications function.Applications
	definitions  []*function.Definition
}

// New validates the applications and builds a registry out of them. Definitions without
// a user inherit the user of their application. Definitions sharing user and function
// name are kept; the first one loaded is the one requests match against.
func New(applications function.Applications, log *zap.Logger) (*Registry, error) {
	if applications == nil {
		applications = function.Applications{}
	}

	definitions := []*function.Definition{}
	for _, app := range applications {
		if err := validate(app); err != nil {
			return nil, err
		}

		for _, def := range app.Functions {
			for _, loaded := range definitions {
				if loaded.Is(def.UserID, def.FunctionName) {
					log.Warn("Duplicate function definition, the first one loaded takes precedence.",
						zap.String("application", app.Name), zap.Object("function", def))
					break
				}
			}
			definitions = append(definitions, def)
		}
	}

	return &Registry{applications: applications, definitions: definitions}, nil
}

// Applications returns loaded applications in load order.
func (r *Registry) Applications() function.Applications {
	return r.applications
}

// Definitions returns definitions of all applications flattened in load order.
func (r *Registry) Definitions() []*function.Definition {
	return r.definitions
}

// Lookup returns all definitions of the user and function name, ignoring case.
func (r *Registry) Lookup(userID, functionName string) []*function.Definition {
	defs := []*function.Definition{}
	for _, def := range r.definitions {
		if def.Is(userID, functionName) {
			defs = append(defs, def)
		}
	}
	return defs
}

func validate(app *function.Application) error {
	if app == nil {
		return &function.ErrFunctionValidation{Message: "application is empty"}
	}
	for _, def := range app.Functions {
		if def == nil {
			return &function.ErrFunctionValidation{Message: "application " + app.Name + " contains an empty function"}
		}
		if def.UserID == "" {
			def.UserID = app.UserID
		}
	}

	validate := validator.New()
	validate.RegisterValidation("nowhitespace", noWhitespaceValidator)
	err := validate.Struct(app)
	if err != nil {
		return &function.ErrFunctionValidation{Message: err.Error()}
	}
	return nil
}

// noWhitespaceValidator validates that field doesn't contain any whitespace.
func noWhitespaceValidator(fl validator.FieldLevel) bool {
	return strings.IndexFunc(fl.Field().String(), unicode.IsSpace) == -1
}
