package client

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is one item from a dashboard results list, kept verbatim as field
// name to value. Values may be null, string or numeric; no normalization is
// performed here.
type Record map[string]any

// envelope is the pagination wrapper every dashboard list response carries:
// {count, next, previous, results}.
type envelope struct {
	// Count is the total number of items matching the query.
	Count int64

	// Next is the URL of the next page, empty when the server reported null
	// and the query is exhausted.
	Next string

	// Previous is the URL of the previous page. Informational only.
	Previous string

	// Results holds this page's records in server-delivered order.
	Results []Record
}

var envelopeFields = []string{"count", "next", "previous", "results"}

var jsonNull = []byte("null")

// decodeEnvelope parses a response body into an envelope. All four fields
// must be present; next and previous may be null, count and results may not.
func decodeEnvelope(body []byte) (*envelope, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &Error{
			Class:   ErrorClassProtocol,
			Message: "response is not a JSON object",
			Err:     err,
		}
	}

	for _, field := range envelopeFields {
		if _, ok := raw[field]; !ok {
			return nil, &Error{
				Class:   ErrorClassProtocol,
				Message: fmt.Sprintf("envelope is missing the %q field", field),
			}
		}
	}

	env := &envelope{}

	if bytes.Equal(bytes.TrimSpace(raw["count"]), jsonNull) {
		return nil, &Error{
			Class:   ErrorClassProtocol,
			Message: "envelope count must not be null",
		}
	}
	if err := json.Unmarshal(raw["count"], &env.Count); err != nil {
		return nil, &Error{
			Class:   ErrorClassProtocol,
			Message: "envelope count is not an integer",
			Err:     err,
		}
	}

	if err := decodeNullableString(raw["next"], &env.Next); err != nil {
		return nil, &Error{
			Class:   ErrorClassProtocol,
			Message: "envelope next is neither a string nor null",
			Err:     err,
		}
	}
	if err := decodeNullableString(raw["previous"], &env.Previous); err != nil {
		return nil, &Error{
			Class:   ErrorClassProtocol,
			Message: "envelope previous is neither a string nor null",
			Err:     err,
		}
	}

	if bytes.Equal(bytes.TrimSpace(raw["results"]), jsonNull) {
		return nil, &Error{
			Class:   ErrorClassProtocol,
			Message: "envelope results must be a list",
		}
	}
	if err := json.Unmarshal(raw["results"], &env.Results); err != nil {
		return nil, &Error{
			Class:   ErrorClassProtocol,
			Message: "envelope results is not a list of objects",
			Err:     err,
		}
	}

	return env, nil
}

// decodeNullableString unmarshals a string-or-null JSON value, mapping null
// to the empty string.
func decodeNullableString(raw json.RawMessage, dst *string) error {
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	if s != nil {
		*dst = *s
	}
	return nil
}
