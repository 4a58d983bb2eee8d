package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fooddiscovery/backend/internal/domain"
)

type searchOptions struct {
	Query    string
	Location string
	Lat      float64
	Lon      float64
	Limit    int
	Output   string
}

func newSearchCommand(rc *RootConfig) *cobra.Command {
	opts := searchOptions{}
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run one aggregation request and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSearch(cmd.Context(), cmd, rc, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "What to search for")
	cmd.Flags().StringVar(&opts.Location, "location", "", "Free-text location, e.g. \"Brooklyn, NY\"")
	cmd.Flags().Float64Var(&opts.Lat, "lat", 0, "Latitude (use with --lon instead of --location)")
	cmd.Flags().Float64Var(&opts.Lon, "lon", 0, "Longitude")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of results (0 uses aggregation.result_limit)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "json", "Output format: json or yaml")
	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, rc *RootConfig, opts searchOptions) error {
	request, err := searchRequestFromFlags(cmd, opts)
	if err != nil {
		return err
	}

	service, cleanup, err := buildService(rc.cfg)
	defer cleanup()
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	result, err := service.Aggregate(ctx, request)
	if err != nil {
		return err
	}

	return writeResult(cmd.OutOrStdout(), opts.Output, result)
}

func searchRequestFromFlags(cmd *cobra.Command, opts searchOptions) (*domain.SearchRequest, error) {
	switch opts.Output {
	case "json", "yaml":
	default:
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported output format %q (want json or yaml)", opts.Output))
	}

	request := &domain.SearchRequest{
		Query:    opts.Query,
		Location: opts.Location,
		Limit:    opts.Limit,
	}

	latSet, lonSet := flagChanged(cmd, "lat"), flagChanged(cmd, "lon")
	if latSet != lonSet {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("--lat and --lon must be given together")
	}
	if latSet {
		lat, lon := opts.Lat, opts.Lon
		request.Lat = &lat
		request.Lon = &lon
	}

	if !request.Validate() {
		return nil, fmt.Errorf("%w: --query and either --location or --lat/--lon are required", domain.ErrInvalidRequest)
	}
	return request, nil
}

func writeResult(w io.Writer, format string, result *domain.AggregationResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode result").
			WithCause(err)
	}

	if format == "yaml" {
		// Go through the JSON encoding so field names and order match the API
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to convert result to yaml").
				WithCause(err)
		}
		clearStyle(&node)
		data, err = yaml.Marshal(&node)
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to encode result as yaml").
				WithCause(err)
		}
	} else {
		data = append(data, '\n')
	}

	_, err = w.Write(data)
	return err
}

// clearStyle switches a node tree parsed from JSON to block style
func clearStyle(node *yaml.Node) {
	node.Style = 0
	for _, child := range node.Content {
		clearStyle(child)
	}
}
