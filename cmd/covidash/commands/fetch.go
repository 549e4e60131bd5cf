package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fsmeraldi/diy-covid19dash/pkg/client"
	"github.com/fsmeraldi/diy-covid19dash/pkg/logging"
	"github.com/fsmeraldi/diy-covid19dash/pkg/ratelimit"
	"github.com/fsmeraldi/diy-covid19dash/pkg/series"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// NewFetchCommand creates the fetch command.
func NewFetchCommand() *cobra.Command {
	var (
		filters     []string
		pageSize    int
		allPages    bool
		savePath    string
		dateField   string
		valueFields []string
	)

	cmd := &cobra.Command{
		Use:   "fetch <theme> <sub_theme> <topic> <geography_type> <geography> <metric>",
		Short: "Fetch a dataset from the dashboard",
		Long: `Fetch records for one endpoint identity, either a single page or the
whole dataset, and render them in the selected output format.`,
		Args: cobra.ExactArgs(6),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(args, &fetchOptions{
				filters:     filters,
				pageSize:    pageSize,
				allPages:    allPages,
				savePath:    savePath,
				dateField:   dateField,
				valueFields: valueFields,
			})
		},
	}

	cmd.Flags().StringSliceVar(&filters, "filter", nil, "filter as name=value (repeatable)")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "records per page (max 365)")
	cmd.Flags().BoolVar(&allPages, "all", false, "fetch all pages")
	cmd.Flags().StringVar(&savePath, "save", "", "save a canned time series to this JSON file")
	cmd.Flags().StringVar(&dateField, "date-field", series.DefaultDateField, "record field holding the date (for --save)")
	cmd.Flags().StringSliceVar(&valueFields, "columns", []string{"metric_value"}, "record fields kept as series columns (for --save)")

	return cmd
}

type fetchOptions struct {
	filters     []string
	pageSize    int
	allPages    bool
	savePath    string
	dateField   string
	valueFields []string
}

func runFetch(args []string, opts *fetchOptions) error {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(viper.GetString("log-level")),
		Pretty: viper.GetBool("pretty"),
		Output: os.Stderr,
	})

	endpoint := client.Endpoint{
		Theme:         args[0],
		SubTheme:      args[1],
		Topic:         args[2],
		GeographyType: args[3],
		Geography:     args[4],
		Metric:        args[5],
	}

	filters, err := ParseFilters(opts.filters)
	if err != nil {
		return err
	}

	cfg := client.DefaultConfig(viper.GetString("user-agent"))
	if accessPoint := viper.GetString("access-point"); accessPoint != "" {
		cfg.AccessPoint = accessPoint
	}
	if timeout := viper.GetDuration("timeout"); timeout > 0 {
		cfg.Timeout = timeout
	}
	if interval := viper.GetDuration("rate-interval"); interval > 0 {
		cfg.Gate = ratelimit.NewMemoryGate(interval, logging.NewLogger("rate-gate"))
	}

	c, err := client.New(endpoint, cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pageOpts := client.PageOptions{Filters: filters, PageSize: opts.pageSize}

	var records []client.Record
	if opts.allPages {
		records, err = c.FetchAll(ctx, pageOpts)
	} else {
		records, err = c.FetchPage(ctx, pageOpts)
	}
	if err != nil {
		return fmt.Errorf("fetch %s: %w", endpoint.Metric, err)
	}

	logger.Info().
		Str("metric", endpoint.Metric).
		Int("records", len(records)).
		Msg("Fetch complete")

	if opts.savePath != "" {
		ts, err := series.FromRecords(records, opts.dateField, opts.valueFields)
		if err != nil {
			return fmt.Errorf("wrangle records: %w", err)
		}
		if err := ts.SaveJSON(opts.savePath); err != nil {
			return err
		}
		logger.Info().
			Str("path", opts.savePath).
			Int("dates", ts.Len()).
			Msg("Saved canned time series")
	}

	return outputRecords(records, viper.GetString("output"))
}

// ParseFilters turns name=value pairs into a filter map.
func ParseFilters(pairs []string) (map[string]string, error) {
	filters := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, found := strings.Cut(pair, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("invalid filter %q, expected name=value", pair)
		}
		filters[name] = value
	}
	return filters, nil
}

func outputRecords(records []client.Record, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(records)
	case "yaml":
		encoder := yaml.NewEncoder(os.Stdout)
		defer encoder.Close()
		return encoder.Encode(records)
	default:
		return renderRecordsTable(records)
	}
}

func renderRecordsTable(records []client.Record) error {
	columns := recordColumns(records)

	table := tablewriter.NewWriter(os.Stdout)
	header := make([]any, len(columns))
	for i, column := range columns {
		header[i] = column
	}
	table.Header(header...)

	for _, record := range records {
		row := make([]any, len(columns))
		for i, column := range columns {
			if value, ok := record[column]; ok && value != nil {
				row[i] = fmt.Sprint(value)
			} else {
				row[i] = ""
			}
		}
		_ = table.Append(row...)
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}

// recordColumns returns the union of field names across records, sorted, with
// the date field first when present.
func recordColumns(records []client.Record) []string {
	seen := make(map[string]bool)
	for _, record := range records {
		for name := range record {
			seen[name] = true
		}
	}

	columns := make([]string, 0, len(seen))
	for name := range seen {
		if name != series.DefaultDateField {
			columns = append(columns, name)
		}
	}
	sort.Strings(columns)

	if seen[series.DefaultDateField] {
		columns = append([]string{series.DefaultDateField}, columns...)
	}
	return columns
}
