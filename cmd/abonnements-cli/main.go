package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/GiGurra/boa/pkg/boa"

	"abonnements/internal/cli"
	"abonnements/internal/core"
	applog "abonnements/internal/log"
	"abonnements/internal/report"
	"abonnements/internal/services"
	"abonnements/internal/store/xlsx"
)

type Params struct {
	Action string `descr:"What to do" alts:"list,summary,add,delete,export" strict:"true" positional:"true"`
	Name   string `descr:"Subscription name (add, delete)" optional:"true"`
	Price  string `descr:"Price such as 9.99 or 9,99 (add)" optional:"true"`
	Period string `descr:"Monthly/Mensuel or Yearly/Annuel (add)" default:"Monthly"`
	Due    string `descr:"Next due date as YYYY-MM-DD (add)" optional:"true"`
	Index  int    `descr:"1-based row to delete instead of --name (delete)" default:"0"`
	Output string `descr:"Output format" alts:"table,json" strict:"true" default:"table"`
	File   string `descr:"Destination workbook (export)" default:"abonnements-export.xlsx"`
}

var errUsage = errors.New("usage")

func main() {
	boa.NewCmdT[Params]("abonnements-cli").
		WithShort("Manage the subscription ledger from a terminal").
		WithLong("Lists, summarizes, adds, deletes and exports subscriptions in the ledger configured by DATA_BACKEND. " +
			"Every command reads the store afresh; nothing is cached between runs.").
		WithRunFunc(func(params *Params) {
			cli.LoadEnvFile()
			cfg, err := cli.LoadAndValidateConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			// Logs go to stdout in the server; keep them quiet here so
			// tables and JSON stay clean.
			level := cfg.LogLevel
			if level == "info" {
				level = "warn"
			}
			logger := cli.SetupLogger(level, applog.ComponentCLI)

			ctx, stop := cli.GracefulShutdown()
			defer stop()

			rt, err := cli.NewRuntime(ctx, cfg, logger.Logger)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer rt.Close()

			ctx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
			defer cancel()

			app := &app{
				ledger: rt.Ledger,
				money:  core.NewMoney(cfg.Currency, cfg.Locale),
				out:    os.Stdout,
			}
			if err := app.run(ctx, params); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				rt.Close()
				os.Exit(1)
			}
		}).
		Run()
}

type app struct {
	ledger *services.Ledger
	money  core.Money
	out    io.Writer
}

func (a *app) run(ctx context.Context, p *Params) error {
	switch p.Action {
	case "list":
		return a.list(ctx, p.Output)
	case "summary":
		return a.summary(ctx, p.Output)
	case "add":
		return a.add(ctx, p)
	case "delete":
		return a.delete(ctx, p)
	case "export":
		return a.export(ctx, p.File)
	}
	return fmt.Errorf("%w: unknown action %q", errUsage, p.Action)
}

func (a *app) list(ctx context.Context, output string) error {
	sum, snap, err := a.ledger.Summary(ctx)
	if err != nil {
		return err
	}
	if output == "json" {
		return report.PrintJSON(a.out, report.NewJSONOutput(snap, sum, a.ledger.Today(), a.ledger.DueSoonDays(), a.money.Code))
	}
	if len(snap.Subscriptions) == 0 {
		fmt.Fprintln(a.out, "Aucun abonnement enregistré.")
		return nil
	}
	report.PrintTable(a.out, snap, sum, a.money)
	return nil
}

func (a *app) summary(ctx context.Context, output string) error {
	sum, _, err := a.ledger.Summary(ctx)
	if err != nil {
		return err
	}
	if output == "json" {
		return report.PrintJSON(a.out, report.NewJSONSummary(sum, a.ledger.Today(), a.ledger.DueSoonDays(), a.money.Code))
	}
	report.PrintSummary(a.out, sum, a.money)
	return nil
}

func (a *app) add(ctx context.Context, p *Params) error {
	price := core.ParsePrice(p.Price)
	if !price.OK() {
		return price.Err
	}
	period, err := core.ParsePeriod(p.Period)
	if err != nil {
		return err
	}
	due, err := core.ParseDate(p.Due)
	if err != nil {
		return err
	}
	d := core.Draft{Name: p.Name, Price: price.Value, Period: period, NextDue: due}
	ref, err := a.ledger.Add(ctx, d)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Sauvegardé ! %s (%s)\n", d.ToRow().Name, ref)
	return nil
}

func (a *app) delete(ctx context.Context, p *Params) error {
	var err error
	switch {
	case p.Index > 0:
		err = a.ledger.DeleteAt(ctx, p.Index)
	case p.Name != "":
		err = a.ledger.Delete(ctx, p.Name)
	default:
		return fmt.Errorf("%w: delete needs --name or --index", errUsage)
	}
	if errors.Is(err, core.ErrRecordNotFound) {
		fmt.Fprintln(a.out, "Introuvable.")
		return err
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Fait !")
	return nil
}

func (a *app) export(ctx context.Context, path string) error {
	snap, err := a.ledger.List(ctx)
	if err != nil {
		return err
	}
	rows := make([]core.Row, 0, len(snap.Subscriptions))
	for _, s := range snap.Subscriptions {
		rows = append(rows, s.Row())
	}
	if err := xlsx.Export(path, xlsx.DefaultSheet, rows); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d abonnement(s) exporté(s) vers %s\n", len(rows), path)
	return nil
}
