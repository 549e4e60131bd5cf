package client

import (
	"fmt"
	"strings"
)

// Endpoint identifies one dataset on the UKHSA data dashboard. The six path
// segments select theme, sub-theme, topic, geography type, geography and
// metric; together with the access point they form the base resource URL.
// An Endpoint is immutable for the lifetime of a client instance.
type Endpoint struct {
	Theme         string
	SubTheme      string
	Topic         string
	GeographyType string
	Geography     string
	Metric        string
}

// segmentUnsafe lists characters that would change the meaning of the
// request path if embedded verbatim.
const segmentUnsafe = "/?#%"

// Validate checks that every segment is non-empty and URL-segment-safe.
func (e Endpoint) Validate() error {
	segments := []struct {
		name  string
		value string
	}{
		{"theme", e.Theme},
		{"sub_theme", e.SubTheme},
		{"topic", e.Topic},
		{"geography_type", e.GeographyType},
		{"geography", e.Geography},
		{"metric", e.Metric},
	}

	for _, s := range segments {
		if s.value == "" {
			return &Error{
				Class:   ErrorClassInvalidArgument,
				Message: fmt.Sprintf("%s must not be empty", s.name),
			}
		}
		if strings.ContainsAny(s.value, segmentUnsafe) || strings.ContainsAny(s.value, " \t\r\n") {
			return &Error{
				Class:   ErrorClassInvalidArgument,
				Message: fmt.Sprintf("%s %q is not a valid URL path segment", s.name, s.value),
			}
		}
	}

	return nil
}

// URL builds the base resource URL for this endpoint under the given access
// point.
func (e Endpoint) URL(accessPoint string) string {
	return strings.TrimRight(accessPoint, "/") +
		"/themes/" + e.Theme +
		"/sub_themes/" + e.SubTheme +
		"/topics/" + e.Topic +
		"/geography_types/" + e.GeographyType +
		"/geographies/" + e.Geography +
		"/metrics/" + e.Metric
}

// String returns the endpoint path relative to the access point.
func (e Endpoint) String() string {
	return e.URL("")
}
