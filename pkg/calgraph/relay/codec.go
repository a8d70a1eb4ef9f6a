package relay

import (
	"encoding/json"
	"fmt"
	"strconv"

	cerrors "github.com/randalmurphal/calgraph/pkg/calgraph/errors"
	"github.com/randalmurphal/calgraph/pkg/calgraph/model"
)

// payload is the wire form of a notification. The id travels as a string,
// the same form GraphQL clients see.
type payload struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Location    string `json:"location,omitempty"`
}

// Encode serializes the notification for e.
func Encode(e model.Event) ([]byte, error) {
	b, err := json.Marshal(payload{
		ID:          e.Key(),
		Summary:     e.Summary,
		Description: e.Description,
		Location:    e.Location,
	})
	if err != nil {
		return nil, &cerrors.DecodeError{Err: err}
	}
	return b, nil
}

// Decode parses a notification. Malformed JSON or a non-numeric id yields a
// *errors.DecodeError.
func Decode(b []byte) (model.Event, error) {
	var p payload
	if err := json.Unmarshal(b, &p); err != nil {
		return model.Event{}, &cerrors.DecodeError{Payload: b, Err: err}
	}
	id, err := strconv.ParseInt(p.ID, 10, 64)
	if err != nil {
		return model.Event{}, &cerrors.DecodeError{Payload: b, Err: fmt.Errorf("id %q: %w", p.ID, err)}
	}
	return model.Event{
		ID:          id,
		Summary:     p.Summary,
		Description: p.Description,
		Location:    p.Location,
	}, nil
}
