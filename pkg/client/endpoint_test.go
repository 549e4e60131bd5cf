package client

import (
	"strings"
	"testing"
)

func TestEndpoint_URL(t *testing.T) {
	got := testEndpoint.URL("https://api.ukhsa-dashboard.data.gov.uk")
	want := "https://api.ukhsa-dashboard.data.gov.uk" +
		"/themes/infectious_disease" +
		"/sub_themes/respiratory" +
		"/topics/COVID-19" +
		"/geography_types/Nation" +
		"/geographies/England" +
		"/metrics/COVID-19_deaths_ONSByDay"

	if got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}

func TestEndpoint_URLTrimsTrailingSlash(t *testing.T) {
	withSlash := testEndpoint.URL("https://example.com/")
	without := testEndpoint.URL("https://example.com")

	if withSlash != without {
		t.Errorf("URL with trailing slash = %q, without = %q; want equal", withSlash, without)
	}
	if strings.Contains(withSlash, "//themes") {
		t.Errorf("URL() = %q contains a double slash", withSlash)
	}
}

func TestEndpoint_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(e *Endpoint)
		expectError bool
	}{
		{
			name:        "valid",
			mutate:      func(e *Endpoint) {},
			expectError: false,
		},
		{
			name:        "empty theme",
			mutate:      func(e *Endpoint) { e.Theme = "" },
			expectError: true,
		},
		{
			name:        "empty metric",
			mutate:      func(e *Endpoint) { e.Metric = "" },
			expectError: true,
		},
		{
			name:        "slash in segment",
			mutate:      func(e *Endpoint) { e.Geography = "Eng/land" },
			expectError: true,
		},
		{
			name:        "query separator in segment",
			mutate:      func(e *Endpoint) { e.Metric = "deaths?x=1" },
			expectError: true,
		},
		{
			name:        "space in segment",
			mutate:      func(e *Endpoint) { e.GeographyType = "Lower Tier" },
			expectError: true,
		},
		{
			name:        "hyphen and underscore are fine",
			mutate:      func(e *Endpoint) { e.Metric = "COVID-19_testing_PCRcountByDay" },
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			endpoint := testEndpoint
			tt.mutate(&endpoint)

			err := endpoint.Validate()
			if tt.expectError && err == nil {
				t.Error("Expected error but got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}
