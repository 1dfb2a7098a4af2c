package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"tablet-tracker/internal/app"
	"tablet-tracker/internal/core"
)

// Operator is the actor CLI commands run as. The CLI talks to the database
// directly, so whoever can run it already holds admin rights.
var Operator = core.Actor{Name: "cli", Role: core.RoleAdmin}

const usage = `Usage: app <command> [args]

Commands:
  recalculate                 rebuild every PO count from its submissions
  reconcile                   resolve review submissions that now have one bag
  fill <inventory_item_id>    assign unassigned submissions oldest-PO-first
  pos [--open]                list purchase orders
  po <id>                     show one purchase order with its lines
  review                      list submissions waiting on manager review
  bags [po_id]                bag label-count report
  json <po id>                one purchase order as JSON
`

// Run executes a one-shot CLI command, writing human-readable output to out.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return fmt.Errorf("no command given")
	}

	switch args[0] {
	case "recalculate", "recalc":
		report, err := svc.Recalculate(ctx, Operator)
		if err != nil {
			return fmt.Errorf("recalculate: %w", err)
		}
		fmt.Fprintf(out, "Rebuilt %d line(s) on %d PO(s), replayed %d submission(s).\n",
			report.LinesRebuilt, report.POsRecomputed, report.SubmissionsReplayed)
		printSkipped(out, report.Skipped)

	case "reconcile":
		report, err := svc.Reconcile(ctx, Operator)
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		printReconcile(out, report)

	case "fill":
		if len(args) < 2 {
			return fmt.Errorf("usage: app fill <inventory_item_id>")
		}
		report, err := svc.SequentialFill(ctx, Operator, args[1])
		if err != nil {
			return fmt.Errorf("sequential fill: %w", err)
		}
		for _, a := range report.Assigned {
			fmt.Fprintf(out, "  submission %-6d -> %s\n", a.SubmissionID, a.PONumber)
		}
		fmt.Fprintf(out, "Assigned %d submission(s).\n", len(report.Assigned))
		printSkipped(out, report.Skipped)

	case "pos":
		filter := core.POFilter{OpenOnly: len(args) > 1 && args[1] == "--open"}
		result, err := svc.ListPOs(ctx, Operator, filter)
		if err != nil {
			return fmt.Errorf("list POs: %w", err)
		}
		printPOList(out, result)

	case "po":
		if len(args) < 2 {
			return fmt.Errorf("usage: app po <id>")
		}
		id, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid PO id %q", args[1])
		}
		result, err := svc.GetPO(ctx, Operator, id)
		if err != nil {
			return fmt.Errorf("get PO: %w", err)
		}
		printPO(out, result)

	case "review":
		result, err := svc.ReviewQueue(ctx, Operator)
		if err != nil {
			return fmt.Errorf("review queue: %w", err)
		}
		printReview(out, result)

	case "bags":
		var filter core.BagReportFilter
		if len(args) > 1 {
			id, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid PO id %q", args[1])
			}
			filter.POID = &id
		}
		result, err := svc.BagReport(ctx, Operator, filter)
		if err != nil {
			return fmt.Errorf("bag report: %w", err)
		}
		printBagReport(out, result)

	case "json":
		if len(args) < 2 {
			return fmt.Errorf("usage: app json <po id>")
		}
		id, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid PO id %q", args[1])
		}
		result, err := svc.GetPO(ctx, Operator, id)
		if err != nil {
			return fmt.Errorf("get PO: %w", err)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)

	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command: %s", args[0])
	}
	return nil
}

func printSkipped(out io.Writer, skipped []core.SkippedSubmission) {
	for _, s := range skipped {
		fmt.Fprintf(out, "  skipped submission %d: %s\n", s.SubmissionID, s.Reason)
	}
}

func printReconcile(out io.Writer, r *core.ReconcileReport) {
	fmt.Fprintf(out, "Examined %d review submission(s).\n", r.Examined)
	for _, a := range r.Assigned {
		fmt.Fprintf(out, "  submission %-6d -> bag %d (PO %d)\n", a.SubmissionID, a.BagID, a.POID)
	}
	fmt.Fprintf(out, "Assigned %d, still ambiguous %d, no match %d.\n", len(r.Assigned), r.StillAmbiguous, r.NoMatch)
	printSkipped(out, r.Failed)
}

func printPOList(out io.Writer, result *app.POListResult) {
	fmt.Fprintln(out, strings.Repeat("=", 78))
	fmt.Fprintf(out, "  %-18s %-10s %10s %10s %10s %10s\n", "PO", "STATUS", "ORDERED", "GOOD", "REMAINING", "COMPLETE")
	fmt.Fprintln(out, strings.Repeat("-", 78))
	for _, o := range result.Orders {
		po := o.PurchaseOrder
		fmt.Fprintf(out, "  %-18s %-10s %10d %10d %10d %9s%%\n",
			po.PONumber, po.Status, po.OrderedQuantity, po.CurrentGoodCount, po.RemainingQuantity, o.PercentComplete.StringFixed(1))
	}
	fmt.Fprintln(out, strings.Repeat("=", 78))
}

func printPO(out io.Writer, result *app.POResult) {
	po := result.PurchaseOrder
	fmt.Fprintln(out, strings.Repeat("=", 78))
	fmt.Fprintf(out, "  PO %s  [%s]", po.PONumber, po.Status)
	if po.Closed {
		fmt.Fprint(out, "  closed")
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Ordered %d, good %d, damaged %d, remaining %d (%s%% complete)\n",
		po.OrderedQuantity, po.CurrentGoodCount, po.CurrentDamagedCount, po.RemainingQuantity, result.PercentComplete.StringFixed(1))
	fmt.Fprintln(out, strings.Repeat("-", 78))
	fmt.Fprintf(out, "  %-14s %-24s %9s %9s %9s %9s\n", "ITEM", "NAME", "ORDERED", "GOOD", "DAMAGED", "MACHINE")
	for _, l := range po.Lines {
		fmt.Fprintf(out, "  %-14s %-24s %9d %9d %9d %9d\n",
			l.InventoryItemID, l.Name, l.QuantityOrdered, l.GoodCount, l.DamagedCount, l.MachineGoodCount)
	}
	fmt.Fprintln(out, strings.Repeat("=", 78))
}

func printReview(out io.Writer, result *app.ReviewQueueResult) {
	if len(result.Items) == 0 {
		fmt.Fprintln(out, "No submissions waiting on review.")
		return
	}
	for _, item := range result.Items {
		s := item.Submission
		fmt.Fprintf(out, "Submission %d  %s  %s  %d good\n", s.ID, s.SubmissionDate, s.ProductName, s.Totals.Good)
		if item.Problem != "" {
			fmt.Fprintf(out, "    cannot list candidates: %s\n", item.Problem)
		}
		for _, c := range item.Candidates {
			po := "-"
			if c.PONumber != nil {
				po = *c.PONumber
			}
			fmt.Fprintf(out, "    bag %-6d %s box %d bag %d (PO %s)\n", c.BagID, c.ReceiveName, c.BoxNumber, c.BagNumber, po)
		}
	}
}

func printBagReport(out io.Writer, result *app.BagReportResult) {
	fmt.Fprintln(out, strings.Repeat("=", 78))
	fmt.Fprintf(out, "  %-16s %4s %4s %-12s %7s %8s %6s %7s %-6s\n",
		"RECEIVE", "BOX", "BAG", "FLAVOR", "LABEL", "PACKAGED", "DIFF", "VAR%", "CLASS")
	fmt.Fprintln(out, strings.Repeat("-", 78))
	for _, r := range result.Rows {
		fmt.Fprintf(out, "  %-16s %4d %4d %-12s %7d %8d %6d %7s %-6s\n",
			r.ReceiveName, r.BoxNumber, r.BagNumber, r.TabletType, r.LabelCount, r.PackagedCount,
			r.Difference, r.VariancePercent.StringFixed(1), r.Classification)
	}
	fmt.Fprintln(out, strings.Repeat("=", 78))
	fmt.Fprintf(out, "  Tolerance ±%d: %d match, %d under, %d over\n", result.Tolerance, result.Matched, result.Under, result.Over)
}
