package router

import (
	"strings"

	"github.com/serverless/function-gateway/function"
)

// ResultKind tells how matching a request ended.
type ResultKind int

const (
	// NotFound means there is no definition for the user and function name.
	NotFound ResultKind = iota
	// NoMatch means definitions exist but none of their triggers accepts the request.
	NoMatch
	// Found means a trigger accepted the request.
	Found
)

func (k ResultKind) String() string {
	switch k {
	case Found:
		return "found"
	case NoMatch:
		return "no-match"
	default:
		return "not-found"
	}
}

// Candidate is the part of an inbound request triggers are evaluated against.
type Candidate struct {
	UserID       string
	FunctionName string
	Method       string
	Headers      []string
	QueryKeys    []string
	IsTLS        bool
	HasBody      bool
}

// Result of matching a candidate. Definition and Trigger are set only for Found.
type Result struct {
	Kind       ResultKind
	Definition *function.Definition
	Trigger    *function.Trigger

	userID       string
	functionName string
}

// Err returns typed error for NotFound and NoMatch results, nil for Found.
func (r Result) Err() error {
	switch r.Kind {
	case Found:
		return nil
	case NoMatch:
		return &function.ErrNoMatch{UserID: r.userID, FunctionName: r.functionName}
	default:
		return &function.ErrFunctionNotFound{UserID: r.userID, FunctionName: r.functionName}
	}
}

// Matcher decides which definition and trigger handle a request. It never modifies
// the definitions it was created with so it's safe for concurrent use.
type Matcher struct {
	definitions []*function.Definition
}

// NewMatcher creates Matcher over definitions. Their order defines precedence.
func NewMatcher(definitions []*function.Definition) *Matcher {
	return &Matcher{definitions: definitions}
}

// Match returns the first trigger, of the first candidate definition, satisfied by the request.
func (m *Matcher) Match(c Candidate) Result {
	result := Result{Kind: NotFound, userID: c.UserID, functionName: c.FunctionName}

	candidates := []*function.Definition{}
	for _, def := range m.definitions {
		if def.Is(c.UserID, c.FunctionName) {
			candidates = append(candidates, def)
		}
	}
	if len(candidates) == 0 {
		return result
	}

	result.Kind = NoMatch
	headers := toSet(c.Headers, strings.ToLower)
	queryKeys := toSet(c.QueryKeys, nil)

	for _, def := range candidates {
		for _, trigger := range def.Triggers {
			if trigger == nil || !accepts(trigger, c, headers, queryKeys) {
				continue
			}

			result.Kind = Found
			result.Definition = def
			result.Trigger = trigger
			return result
		}
	}

	return result
}

func accepts(trigger *function.Trigger, c Candidate, headers, queryKeys map[string]struct{}) bool {
	if !trigger.AllowsMethod(c.Method) {
		return false
	}
	if trigger.Required.RequestBody && !c.HasBody {
		return false
	}
	if trigger.Required.RequireSsl && !c.IsTLS {
		return false
	}
	for _, header := range trigger.Required.Headers {
		if _, ok := headers[strings.ToLower(header)]; !ok {
			return false
		}
	}
	for _, key := range trigger.Required.QuerystringEntries {
		if _, ok := queryKeys[key]; !ok {
			return false
		}
	}
	return true
}

func toSet(values []string, normalize func(string) string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		if normalize != nil {
			value = normalize(value)
		}
		set[value] = struct{}{}
	}
	return set
}
