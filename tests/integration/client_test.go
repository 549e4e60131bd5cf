package integration

import (
	"context"
	"testing"
	"time"

	"github.com/fsmeraldi/diy-covid19dash/internal/testutil"
	"github.com/fsmeraldi/diy-covid19dash/pkg/client"
	"github.com/fsmeraldi/diy-covid19dash/pkg/ratelimit"
	"github.com/rs/zerolog"
)

var testEndpoint = client.Endpoint{
	Theme:         "infectious_disease",
	SubTheme:      "respiratory",
	Topic:         "COVID-19",
	GeographyType: "Nation",
	Geography:     "England",
	Metric:        "COVID-19_deaths_ONSByDay",
}

// newPacedClient creates a client against the mock with a real rate gate so
// integration tests exercise actual pacing.
func newPacedClient(t *testing.T, mock *testutil.MockDashboard, interval time.Duration) *client.Client {
	t.Helper()

	cfg := client.DefaultConfig("covidash-integration/1.0")
	cfg.AccessPoint = mock.URL()
	cfg.Gate = ratelimit.NewMemoryGate(interval, zerolog.Nop())

	c, err := client.New(testEndpoint, cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

// TestFullDownloadFlow tests the complete flow: rate gate, page walk,
// envelope decode and concatenation.
func TestFullDownloadFlow(t *testing.T) {
	mock := testutil.NewMockDashboard(testutil.GenerateRecords(12))
	defer mock.Close()

	interval := 20 * time.Millisecond
	c := newPacedClient(t, mock, interval)

	ctx := context.Background()

	t.Log("Downloading the whole dataset in pages of 5")
	start := time.Now()
	records, err := c.FetchAll(ctx, client.PageOptions{PageSize: 5})
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	elapsed := time.Since(start)

	if len(records) != 12 {
		t.Errorf("Records = %d, want 12", len(records))
	}
	if got := mock.RequestCount(); got != 3 {
		t.Errorf("Requests = %d, want 3", got)
	}

	// Three requests means two waits behind the first one
	if minimum := 2 * interval; elapsed < minimum {
		t.Errorf("Download took %v, want at least %v under the rate gate", elapsed, minimum)
	}

	// Records arrive in server order
	for i, record := range records {
		if got := record["metric_value"]; got != float64(i*10) {
			t.Errorf("records[%d][metric_value] = %v, want %v", i, got, float64(i*10))
			break
		}
	}

	if total, ok := c.TotalCount(); !ok || total != 12 {
		t.Errorf("TotalCount() = %d, %v, want 12, true", total, ok)
	}
}

// TestPageWalkToExhaustion tests repeated FetchPage calls walking the cursor
// to the end of a filtered dataset.
func TestPageWalkToExhaustion(t *testing.T) {
	records := testutil.GenerateRecords(7)
	records[3]["sex"] = "female"
	mock := testutil.NewMockDashboard(records)
	defer mock.Close()

	c := newPacedClient(t, mock, 0)

	ctx := context.Background()
	opts := client.PageOptions{
		Filters:  map[string]string{"sex": "all"},
		PageSize: 3,
	}

	var delivered int
	for !c.Exhausted() {
		page, err := c.FetchPage(ctx, opts)
		if err != nil {
			t.Fatalf("FetchPage failed: %v", err)
		}
		delivered += len(page)
	}

	// 6 of the 7 records match the filter
	if delivered != 6 {
		t.Errorf("Delivered = %d, want 6", delivered)
	}
	if got := mock.RequestCount(); got != 2 {
		t.Errorf("Requests = %d, want 2", got)
	}

	t.Log("Further calls after exhaustion must not hit the server")
	page, err := c.FetchPage(ctx, opts)
	if err != nil {
		t.Fatalf("FetchPage after exhaustion failed: %v", err)
	}
	if len(page) != 0 {
		t.Errorf("Page after exhaustion = %d records, want 0", len(page))
	}
	if got := mock.RequestCount(); got != 2 {
		t.Errorf("Requests after exhaustion = %d, want still 2", got)
	}
}

// TestSharedGatePacesTwoClients tests that two clients on one gate share a
// single request budget.
func TestSharedGatePacesTwoClients(t *testing.T) {
	mock := testutil.NewMockDashboard(testutil.GenerateRecords(4))
	defer mock.Close()

	interval := 20 * time.Millisecond
	gate := ratelimit.NewMemoryGate(interval, zerolog.Nop())

	cfg := client.DefaultConfig("covidash-integration/1.0")
	cfg.AccessPoint = mock.URL()
	cfg.Gate = gate

	deaths, err := client.New(testEndpoint, cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	admissions := testEndpoint
	admissions.Metric = "COVID-19_healthcare_admissionByDay"
	other, err := client.New(admissions, cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	ctx := context.Background()

	start := time.Now()
	if _, err := deaths.FetchPage(ctx, client.PageOptions{}); err != nil {
		t.Fatalf("First client failed: %v", err)
	}
	if _, err := other.FetchPage(ctx, client.PageOptions{}); err != nil {
		t.Fatalf("Second client failed: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < interval {
		t.Errorf("Two clients took %v, want at least %v on a shared gate", elapsed, interval)
	}
}

// TestParameterChangeMidWalk tests that changing filters mid-walk restarts
// from the first page instead of resuming the old cursor.
func TestParameterChangeMidWalk(t *testing.T) {
	records := testutil.GenerateRecords(10)
	mock := testutil.NewMockDashboard(records)
	defer mock.Close()

	c := newPacedClient(t, mock, 0)

	ctx := context.Background()

	if _, err := c.FetchPage(ctx, client.PageOptions{PageSize: 3}); err != nil {
		t.Fatalf("First page failed: %v", err)
	}
	if _, err := c.FetchPage(ctx, client.PageOptions{PageSize: 3}); err != nil {
		t.Fatalf("Second page failed: %v", err)
	}

	t.Log("Changing the filter set resets the walk")
	if _, err := c.FetchPage(ctx, client.PageOptions{
		Filters:  map[string]string{"sex": "all"},
		PageSize: 3,
	}); err != nil {
		t.Fatalf("Page after filter change failed: %v", err)
	}

	urls := mock.RequestURLs()
	if len(urls) != 3 {
		t.Fatalf("Requests = %d, want 3", len(urls))
	}
	last := mock.LastQuery()
	if got := last.Get("page"); got != "" && got != "1" {
		t.Errorf("Last request page = %q, want first page after parameter change", got)
	}
	if got := last.Get("sex"); got != "all" {
		t.Errorf("Last request sex = %q, want %q", got, "all")
	}
}
