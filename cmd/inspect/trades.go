package inspect

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"signalbridge/src/model"
	"signalbridge/src/repository"
)

// Trades lists persisted trades from the read-only database.
type Trades struct {
	Log *logrus.Entry
	DB  *gorm.DB
	Out io.Writer
}

func (t *Trades) Run(ctx context.Context, options repository.TradeSearchOptions) error {
	trades, err := repository.NewTradeRepository().WithDB(t.DB).Search(ctx, options)
	if err != nil {
		return err
	}
	t.Log.WithField("count", len(trades)).Debug("Trades loaded")

	w := tabwriter.NewWriter(t.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSYMBOL\tSIDE\tSTATUS\tLEGS\tENTRY\tSL\tREASON")
	for i := range trades {
		tr := &trades[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(tr.ID),
			tr.CreatedAt.UTC().Format("2006-01-02 15:04"),
			tr.Symbol,
			tr.Direction,
			tr.Status,
			legSummary(tr),
			price(tr.EntryPrice),
			price(tr.StopLoss),
			tr.Reason,
		)
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func price(v *float64) string {
	if v == nil {
		return "-"
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.5f", *v), "0"), ".")
}

// legSummary renders open/total legs, e.g. "2/3".
func legSummary(t *model.Trade) string {
	open := 0
	for i := range t.Legs {
		if t.Legs[i].IsOpen() {
			open++
		}
	}
	return fmt.Sprintf("%d/%d", open, len(t.Legs))
}
