// Command csv-search prints the rows of one or more CSV files whose column
// contains a keyword, as a single CSV with the union of the files' headers.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvutils/internal/csvio"
	"github.com/JonMunkholm/csvutils/internal/logging"
)

const usage = `
Usage: csv-search -c <column> -k <keyword> <file1.csv> [file2.csv ...]

Options:
  -c, --column <name>     Column header to search in (required)
  -k, --keyword <value>   Keyword to search for (required)
      --case-sensitive    Make search case-sensitive (default: case-insensitive)
  -v, --verbose           Log a summary to stderr
  -h, --help              Show this help

Examples:
  csv-search -c name -k alice data1.csv data2.csv
`

var errNoHeaders = errors.New("no headers found")

// usageError makes run print the usage text. err, when set, is printed first.
type usageError struct {
	err error
}

func (e usageError) Error() string {
	if e.err == nil {
		return "usage"
	}
	return e.err.Error()
}

type searchOptions struct {
	column        string
	keyword       string
	caseSensitive bool
	verbose       bool
}

func newSearchCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:           "csv-search -c <column> -k <keyword> <file1.csv> [file2.csv ...]",
		Short:         "Search CSV files for rows whose column contains a keyword",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.column == "" || opts.keyword == "" || len(args) == 0 {
				return usageError{}
			}
			return runSearch(cmd.Context(), opts, args, stdout, stderr)
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})

	cmd.Flags().StringVarP(&opts.column, "column", "c", "", "Column header to search in (required)")
	cmd.Flags().StringVarP(&opts.keyword, "keyword", "k", "", "Keyword to search for (required)")
	cmd.Flags().BoolVar(&opts.caseSensitive, "case-sensitive", false, "Make search case-sensitive")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log a summary to stderr")

	return cmd
}

func runSearch(ctx context.Context, opts searchOptions, files []string, stdout, stderr io.Writer) error {
	res, err := csvio.SearchFiles(ctx, files, opts.column, opts.keyword, !opts.caseSensitive)
	if err != nil {
		return err
	}

	for _, w := range res.Warnings {
		fmt.Fprintln(stderr, w)
	}
	if len(res.Headers) == 0 {
		return errNoHeaders
	}

	if opts.verbose {
		logging.New(stderr, "debug", "text").Info("search complete",
			"files", len(files),
			"columns", len(res.Headers),
			"matches", humanize.Comma(int64(len(res.Rows))),
			"warnings", len(res.Warnings),
		)
	}

	return csvio.WriteCSV(stdout, res.Headers, res.Rows)
}

// run executes the command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newSearchCmd(stdout, stderr)
	cmd.SetArgs(args)

	// -h and --help print the usage and exit 1, like any other usage error.
	helped := false
	cmd.SetHelpFunc(func(*cobra.Command, []string) { helped = true })

	err := cmd.ExecuteContext(ctx)
	if helped {
		err = usageError{}
	}
	if err == nil {
		return 0
	}

	var ue usageError
	switch {
	case errors.As(err, &ue):
		if ue.err != nil {
			fmt.Fprintln(stderr, ue.err)
		}
		fmt.Fprint(stderr, usage)
	case errors.Is(err, errNoHeaders):
		fmt.Fprintln(stderr, "No headers found. Are the input files valid CSV?")
	default:
		fmt.Fprintf(stderr, "Unexpected error: %v\n", err)
	}
	return 1
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
