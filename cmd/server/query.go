package main

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ag3dash/server/internal/catalog"
	"github.com/ag3dash/server/internal/query"
	"github.com/ag3dash/server/internal/session"
)

func getQueryCmd() *cobra.Command {
	var countries, taxa, years []string
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Compile a sample query and count the matching samples",
		Long: `Compile a sample query from country, taxon and year filters, print the
snippet to paste into an analysis and the number of matching samples.

Example:
    ag3dash query --country Kenya --year 2012 --year 2010`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), cmd.OutOrStdout(), countries, taxa, years)
		},
	}
	cmd.Flags().StringSliceVar(&countries, "country", nil, "country to include (repeatable)")
	cmd.Flags().StringSliceVar(&taxa, "taxon", nil, "taxon to include (repeatable)")
	cmd.Flags().StringSliceVar(&years, "year", nil, "year to include (repeatable)")
	return cmd
}

func runQuery(ctx context.Context, out io.Writer, countries, taxa, years []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	acc, err := newAccessor(ctx, cfg.Data, true)
	if err != nil {
		return err
	}
	defer acc.Close()

	// Same event path as the query builder page.
	st := session.State{}
	for _, change := range []struct {
		dim    query.Dimension
		values []string
	}{
		{query.Countries, countries},
		{query.Taxa, taxa},
		{query.Years, years},
	} {
		if st, err = session.OnMultiselectChanged(st, string(change.dim), change.values); err != nil {
			return err
		}
	}

	recs, err := catalog.New(acc, nil).SampleMetadata(ctx)
	if err != nil {
		return err
	}
	pred := query.Compile(st.Filter)

	fmt.Fprint(out, pred.Snippet())
	fmt.Fprintf(out, "No. samples: %s\n", humanize.Comma(int64(pred.Count(recs))))
	return nil
}
