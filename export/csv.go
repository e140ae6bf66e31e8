// Package export renders analyzed contracts as CSV.
package export

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AnTengye/contractwatch/model"
)

// Header is the column row of every export
var Header = []string{
	"ID",
	"Name",
	"Uploaded At",
	"Status",
	"OCR Improved Text",
	"Layout Assessment",
	"Extracted Summary",
	"Effective Date",
	"Expiration Date",
	"Parties Involved",
	"Financial Terms",
	"Conditions",
	"Breach Clauses",
	"Termination Clauses",
	"Quality Score",
	"Confidence Level",
	"Is Complete",
	"Quality Justification",
	"Breach Detection Conditions",
	"Potential Breaches",
	"Breach Summary",
	"Penalties",
	"Alerts",
}

const listSeparator = "; "

var whitespace = regexp.MustCompile(`\s+`)

// FileName is the download name for a single contract export
func FileName(contractName string) string {
	return whitespace.ReplaceAllString(contractName, "_") + "_export.csv"
}

// Escape quotes a value when it contains a comma, a double quote or a newline
func Escape(v string) string {
	if !strings.ContainsAny(v, ",\"\n") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

// Row returns the unescaped column values for one contract
func Row(c *model.Contract) []string {
	row := make([]string, 0, len(Header))
	row = append(row, c.ID, c.Name, c.UploadedAt.UTC().Format(time.RFC3339), c.Status)

	if o := c.OCRImproved; o != nil {
		row = append(row, o.ImprovedOCRText, o.LayoutAssessment)
	} else {
		row = append(row, "", "")
	}

	if e := c.ExtractedData; e != nil {
		row = append(row,
			e.ContractSummary,
			e.EffectiveDate,
			e.ExpirationDate,
			strings.Join(e.PartiesInvolved, listSeparator),
			e.FinancialTerms,
			strings.Join(e.Conditions, listSeparator),
			strings.Join(e.BreachClauses, listSeparator),
			strings.Join(e.TerminationClauses, listSeparator),
		)
	} else {
		row = append(row, "", "", "", "", "", "", "", "")
	}

	if q := c.QualityAssessment; q != nil {
		row = append(row,
			formatNumber(q.QualityScore),
			q.ConfidenceLevel,
			strconv.FormatBool(q.IsComplete),
			q.Justification,
		)
	} else {
		row = append(row, "", "", "", "")
	}

	if b := c.BreachDetection; b != nil {
		row = append(row, b.Conditions)
		if b.Result != nil {
			row = append(row, strings.Join(b.Result.PotentialBreaches, listSeparator), b.Result.Summary)
		} else {
			row = append(row, "", "")
		}
	} else {
		row = append(row, "", "", "")
	}

	penalties := make([]string, 0, len(c.Penalties))
	for _, p := range c.Penalties {
		penalties = append(penalties, fmt.Sprintf("%s: %s %s", p.Description, formatNumber(p.Amount), p.Currency))
	}
	alerts := make([]string, 0, len(c.Alerts))
	for _, a := range c.Alerts {
		alerts = append(alerts, a.Type+" - "+a.Message)
	}
	return append(row, strings.Join(penalties, listSeparator), strings.Join(alerts, listSeparator))
}

// WriteCSV writes the header followed by one row per contract
func WriteCSV(w io.Writer, contracts ...*model.Contract) error {
	bw := bufio.NewWriter(w)
	writeLine(bw, Header)
	for _, c := range contracts {
		if c == nil {
			continue
		}
		writeLine(bw, Row(c))
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

func writeLine(w *bufio.Writer, values []string) {
	for i, v := range values {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteString(Escape(v))
	}
	w.WriteByte('\n')
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
