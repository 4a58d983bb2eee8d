package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fooddiscovery/backend/config"
	"github.com/fooddiscovery/backend/internal/infrastructure/connector"
)

func newConnectorsCommand(rc *RootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "connectors",
		Short: "List known connectors and how they are configured",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeConnectors(cmd.OutOrStdout(), rc.cfg)
		},
	}
}

func writeConnectors(out io.Writer, cfg *config.Config) error {
	configured := make(map[string]config.ConnectorConfig, len(cfg.Connectors))
	order := make(map[string]int, len(cfg.Connectors))
	for i, c := range cfg.Connectors {
		configured[c.Name] = c
		order[c.Name] = i + 1
	}

	keys := map[string]string{
		"geoapify":     cfg.Providers.Geoapify.APIKey,
		"serpapi":      cfg.Providers.SerpApi.APIKey,
		"googleplaces": cfg.Providers.GooglePlaces.APIKey,
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSUPPORTS\tENABLED\tPRECEDENCE\tTIMEOUT\tRETRIES\tAPI KEY")
	for _, name := range connector.Known() {
		search, enrich, _ := connector.Capabilities(name)

		var supports, enabled []string
		if search {
			supports = append(supports, "search")
		}
		if enrich {
			supports = append(supports, "enrich")
		}

		precedence, timeout, retries := "-", "-", "-"
		if c, ok := configured[name]; ok {
			if c.Search {
				enabled = append(enabled, "search")
			}
			if c.Enrich {
				enabled = append(enabled, "enrich")
			}
			precedence = fmt.Sprint(order[name])
			timeout = c.Timeout.String()
			retries = fmt.Sprint(c.Retries)
		}
		if len(enabled) == 0 {
			enabled = append(enabled, "-")
		}

		key := "missing"
		if strings.TrimSpace(keys[name]) != "" {
			key = "set"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			name,
			strings.Join(supports, ","),
			strings.Join(enabled, ","),
			precedence,
			timeout,
			retries,
			key,
		)
	}
	return w.Flush()
}
