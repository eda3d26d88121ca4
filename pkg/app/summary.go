package app

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
)

// maxSummaryCandidates limits the candidate list printed by PrintRunSummary.
const maxSummaryCandidates = 20

// PrintRunSummary writes a human-readable report of a profiling run.
func PrintRunSummary(w io.Writer, run *models.ProfileRun) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Table:       %s\n", run.TableName)
	fmt.Fprintf(&b, "Run:         %s\n", run.ID)
	fmt.Fprintf(&b, "Rows:        %d\n", run.TotalRows)
	fmt.Fprintf(&b, "Elapsed:     %s\n", run.Elapsed().Round(time.Millisecond))
	fmt.Fprintf(&b, "Candidates:  %s\n", strings.Join(run.CandidateColumns, ", "))
	fmt.Fprintf(&b, "Subsets:     %d scanned, %d pruned, %d accepted\n", run.Scanned, run.Pruned, run.Accepted)
	if run.Truncated {
		b.WriteString("WARNING: discovery stopped at the combination limit; results are incomplete\n")
	}
	b.WriteString("\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tTYPE\tNULLS\tDISTINCT\tUNIQUE %\tPATTERN")
	for _, c := range run.Columns {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.2f\t%s\n",
			c.ColumnName, c.DataType, c.NullCount, c.Cardinality, c.Uniqueness, c.Pattern)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(run.Combinations) == 0 {
		_, err := io.WriteString(w, "\nNo candidate keys found.\n")
		return err
	}

	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY COLUMNS\tDISTINCT\tUNIQUE %\tFINGERPRINT")
	for i, c := range run.Combinations {
		if i == maxSummaryCandidates {
			fmt.Fprintf(tw, "... %d more\t\t\t\n", len(run.Combinations)-i)
			break
		}
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%s\n", strings.Join(c.Columns, " + "), c.Cardinality, c.Uniqueness, c.Fingerprint)
	}
	return tw.Flush()
}
