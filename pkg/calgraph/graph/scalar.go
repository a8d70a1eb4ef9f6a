package graph

import (
	"encoding/json"

	cerrors "github.com/randalmurphal/calgraph/pkg/calgraph/errors"
	"github.com/randalmurphal/calgraph/pkg/calgraph/model"
)

// NaiveDateTime is the GraphQL scalar for model.LocalTime.
type NaiveDateTime struct {
	Value model.LocalTime
}

// ImplementsGraphQLType maps the Go type to the schema scalar.
func (NaiveDateTime) ImplementsGraphQLType(name string) bool {
	return name == "NaiveDateTime"
}

// UnmarshalGraphQL parses "YYYY-MM-DDTHH:MM:SS".
func (t *NaiveDateTime) UnmarshalGraphQL(input any) error {
	s, ok := input.(string)
	if !ok {
		return cerrors.Invalid("datetime", "expected string, got %T", input)
	}
	lt, err := model.ParseLocalTime(s)
	if err != nil {
		return cerrors.Invalid("datetime", "%q does not match %s", s, model.LocalTimeLayout)
	}
	t.Value = lt
	return nil
}

// MarshalJSON writes the timestamp in model.LocalTimeLayout.
func (t NaiveDateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Value.String())
}
