package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/receiptify/internal/analytics"
	"github.com/zombor/receiptify/internal/export"
	"github.com/zombor/receiptify/internal/receipt"
	"github.com/zombor/receiptify/internal/server"
)

var errMissingID = errors.New("receipt ID required")

func (c *cli) serveCommand() *ff.Command {
	fs := ff.NewFlagSet("serve").SetParent(c.flags)
	var (
		port     = fs.IntLong("port", 8080, "HTTP server port")
		authUser = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
	)

	return &ff.Command{
		Name:      "serve",
		Usage:     "receiptify serve [FLAGS]",
		ShortHelp: "serve the JSON API and metrics over HTTP",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			a, err := c.open(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := server.NewServer(a.service, a.metrics, server.BasicAuth{
				Username: *authUser,
				Password: *authPass,
			})
			if *authUser != "" || *authPass != "" {
				slog.Info("Basic auth enabled", "user", *authUser)
			}

			return srv.Start(ctx, fmt.Sprintf(":%d", *port))
		},
	}
}

func (c *cli) scanCommand() *ff.Command {
	fs := ff.NewFlagSet("scan").SetParent(c.flags)

	return &ff.Command{
		Name:      "scan",
		Usage:     "receiptify scan [FLAGS] FILE...",
		ShortHelp: "extract and save receipts from photos or PDFs",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return errors.New("at least one file is required")
			}

			a, err := c.open(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("reading %s: %w", path, err)
				}
				slog.Debug("Scanning document", "path", path, "size", humanize.Bytes(uint64(len(data))))

				result, err := a.service.Capture(ctx, receipt.Document{
					Filename:    filepath.Base(path),
					ContentType: detectContentType(path, data),
					Data:        data,
				})
				if err != nil {
					return err
				}

				if result.Receipt != nil {
					r := result.Receipt
					fmt.Fprintf(c.out, "Saved %s: %s %s %s\n", r.ID, r.Merchant, r.Date, export.FormatMoney(r.Currency, r.Total))
					continue
				}

				d := result.Draft
				fmt.Fprintf(c.out, "Could not extract %s (%s). Enter it manually:\n", path, d.Reason)
				fmt.Fprintf(c.out, "  receiptify add --document %q --merchant %q --date %s --total AMOUNT\n", path, d.Fields.Merchant, d.Fields.Date)
			}
			return nil
		},
	}
}

func (c *cli) addCommand() *ff.Command {
	fs := ff.NewFlagSet("add").SetParent(c.flags)
	fields := newFieldFlags(fs)

	return &ff.Command{
		Name:      "add",
		Usage:     "receiptify add --merchant NAME --total AMOUNT [FLAGS]",
		ShortHelp: "save a receipt entered by hand",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			var partial receipt.PartialFields
			if err := fields.apply(&partial); err != nil {
				return err
			}

			a, err := c.open(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			saved, err := a.service.SaveManual(ctx, partial, *fields.document)
			if err != nil {
				return err
			}
			printReceipt(c.out, saved)
			return nil
		},
	}
}

func (c *cli) editCommand() *ff.Command {
	fs := ff.NewFlagSet("edit").SetParent(c.flags)
	fields := newFieldFlags(fs)

	return &ff.Command{
		Name:      "edit",
		Usage:     "receiptify edit [FLAGS] ID",
		ShortHelp: "change fields of a saved receipt",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errMissingID
			}

			a, err := c.open(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			existing, err := a.service.Get(ctx, args[0])
			if err != nil {
				return err
			}

			partial := existing.Fields()
			if err := fields.apply(&partial); err != nil {
				return err
			}

			updated, err := a.service.Edit(ctx, existing.ID, partial)
			if err != nil {
				return err
			}
			printReceipt(c.out, updated)
			return nil
		},
	}
}

func (c *cli) listCommand() *ff.Command {
	fs := ff.NewFlagSet("list").SetParent(c.flags)
	var (
		query     = fs.String('q', "query", "", "only receipts whose merchant or category contains this")
		byMonth   = fs.BoolLong("by-month", "group receipts by month")
		favorites = fs.BoolLong("favorites", "only favorite receipts")
		pending   = fs.BoolLong("pending", "only receipts not yet reimbursed")
		asJSON    = fs.BoolLong("json", "print JSON")
	)

	return &ff.Command{
		Name:      "list",
		Usage:     "receiptify list [FLAGS]",
		ShortHelp: "list receipts, newest first",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			a, err := c.open(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			receipts, err := a.service.List(ctx)
			if err != nil {
				return err
			}
			receipts = filterReceipts(analytics.Search(receipts, *query), *favorites, *pending)

			switch {
			case *byMonth && *asJSON:
				return printJSON(c.out, analytics.GroupByMonth(receipts))
			case *byMonth:
				printMonths(c.out, analytics.GroupByMonth(receipts))
			case *asJSON:
				return printJSON(c.out, receipts)
			default:
				printReceipts(c.out, receipts)
			}
			return nil
		},
	}
}

// filterReceipts keeps favorites and/or unreimbursed receipts when asked
func filterReceipts(receipts []*receipt.Receipt, favorites, pending bool) []*receipt.Receipt {
	if !favorites && !pending {
		return receipts
	}
	out := make([]*receipt.Receipt, 0, len(receipts))
	for _, r := range receipts {
		if favorites && !r.IsFavorite {
			continue
		}
		if pending && r.IsReimbursed {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (c *cli) showCommand() *ff.Command {
	fs := ff.NewFlagSet("show").SetParent(c.flags)
	asJSON := fs.BoolLong("json", "print JSON")

	return &ff.Command{
		Name:      "show",
		Usage:     "receiptify show [FLAGS] ID",
		ShortHelp: "show one receipt in full",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errMissingID
			}

			a, err := c.open(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.service.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if *asJSON {
				return printJSON(c.out, r)
			}
			printReceipt(c.out, r)
			return nil
		},
	}
}

func (c *cli) deleteCommand() *ff.Command {
	fs := ff.NewFlagSet("delete").SetParent(c.flags)

	return &ff.Command{
		Name:      "delete",
		Usage:     "receiptify delete ID...",
		ShortHelp: "delete receipts",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return errMissingID
			}

			a, err := c.open(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, id := range args {
				if err := a.service.Delete(ctx, id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// toggleCommand builds a command that flips one flag of each given receipt
func (c *cli) toggleCommand(name, help string, toggle func(*receipt.Service, context.Context, string) (*receipt.Receipt, error)) *ff.Command {
	fs := ff.NewFlagSet(name).SetParent(c.flags)

	return &ff.Command{
		Name:      name,
		Usage:     fmt.Sprintf("receiptify %s ID...", name),
		ShortHelp: help,
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return errMissingID
			}

			a, err := c.open(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, id := range args {
				r, err := toggle(a.service, ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "%s %s: %s\n", r.ID, r.Merchant, orNone(flags(r)))
			}
			return nil
		},
	}
}

func orNone(s string) string {
	if s == "" {
		return "no flags"
	}
	return s
}

func (c *cli) statsCommand() *ff.Command {
	fs := ff.NewFlagSet("stats").SetParent(c.flags)
	asJSON := fs.BoolLong("json", "print JSON")

	return &ff.Command{
		Name:      "stats",
		Usage:     "receiptify stats [FLAGS]",
		ShortHelp: "show spending totals and the category breakdown",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			a, err := c.open(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			receipts, err := a.service.List(ctx)
			if err != nil {
				return err
			}
			settings, err := a.service.Settings(ctx)
			if err != nil {
				return err
			}

			stats := analytics.Compute(receipts)
			insights := analytics.Insights(receipts, stats)
			if *asJSON {
				return printJSON(c.out, map[string]any{"stats": stats, "insights": insights})
			}
			printStats(c.out, stats, insights, settings.CurrencySymbol)
			return nil
		},
	}
}

func (c *cli) exportCommand() *ff.Command {
	fs := ff.NewFlagSet("export").SetParent(c.flags)
	var (
		format = fs.StringLong("format", "json", "json, yaml, xlsx, html (report) or receipt (one receipt, needs --id)")
		id     = fs.StringLong("id", "", "receipt to export with --format receipt")
		outDir = fs.StringLong("out", ".", "output directory")
	)

	return &ff.Command{
		Name:      "export",
		Usage:     "receiptify export [FLAGS]",
		ShortHelp: "write a backup, spreadsheet or printable report",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			a, err := c.open(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			filename, data, err := exportArtifact(ctx, a.service, *format, *id, time.Now())
			if err != nil {
				return err
			}

			storage, err := export.NewLocalStorage(*outDir)
			if err != nil {
				return err
			}
			path, err := storage.Save(filename, data)
			if err != nil {
				return err
			}

			slog.Info("Export written", "format", *format, "path", path, "size", humanize.Bytes(uint64(len(data))))
			fmt.Fprintln(c.out, path)
			return nil
		},
	}
}

// exportArtifact renders the requested export and names its file
func exportArtifact(ctx context.Context, service *receipt.Service, format, id string, now time.Time) (string, []byte, error) {
	if format == "receipt" {
		if id == "" {
			return "", nil, errMissingID
		}
		r, err := service.Get(ctx, id)
		if err != nil {
			return "", nil, err
		}
		data, err := export.ReceiptHTML(r)
		return export.ReceiptFilename(r.Merchant, r.Date), data, err
	}

	receipts, err := service.List(ctx)
	if err != nil {
		return "", nil, err
	}
	settings, err := service.Settings(ctx)
	if err != nil {
		return "", nil, err
	}

	stamp := now.Format("2006-01-02")
	var data []byte
	switch format {
	case "json":
		data, err = export.NewBackup(receipts, settings, now).JSON()
		return "receiptify-backup-" + stamp + ".json", data, err
	case "yaml":
		data, err = export.NewBackup(receipts, settings, now).YAML()
		return "receiptify-backup-" + stamp + ".yaml", data, err
	case "xlsx":
		data, err = export.XLSX(receipts)
		return "receiptify-" + stamp + ".xlsx", data, err
	case "html":
		data, err = export.ReportHTML(receipts, analytics.Compute(receipts), settings, now)
		return "receiptify-report-" + stamp + ".html", data, err
	default:
		return "", nil, fmt.Errorf("invalid export format %q", format)
	}
}

func (c *cli) importCommand() *ff.Command {
	fs := ff.NewFlagSet("import").SetParent(c.flags)
	withSettings := fs.BoolLong("with-settings", "also restore the settings saved in the backup")

	return &ff.Command{
		Name:      "import",
		Usage:     "receiptify import [FLAGS] FILE",
		ShortHelp: "restore receipts from a JSON or YAML backup",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("exactly one backup file is required")
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading backup: %w", err)
			}
			backup, err := export.ParseBackup(data)
			if err != nil {
				return err
			}

			a, err := c.open(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if *withSettings {
				if settings, ok := backup.SavedSettings(); ok {
					if err := a.service.UpdateSettings(ctx, settings); err != nil {
						return err
					}
				} else {
					slog.Warn("Backup has no settings, keeping current ones", "file", args[0])
				}
			}

			n, err := a.service.Import(ctx, backup.Receipts)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Imported %d receipts\n", n)
			return nil
		},
	}
}

func (c *cli) settingsCommand() *ff.Command {
	fs := ff.NewFlagSet("settings").SetParent(c.flags)
	var (
		currency   = fs.StringLong("currency", "", "currency code, e.g. USD")
		symbol     = fs.StringLong("symbol", "", "override the currency symbol")
		theme      = fs.StringLong("theme", "", "theme: system, light or dark")
		currencies = fs.BoolLong("currencies", "list the supported currencies")
	)

	return &ff.Command{
		Name:      "settings",
		Usage:     "receiptify settings [FLAGS]",
		ShortHelp: "show or change currency and theme",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if *currencies {
				table := newTable(c.out, "Code", "Symbol", "Name")
				for _, cur := range receipt.Currencies() {
					table.Append([]string{cur.Code, cur.Symbol, cur.Name})
				}
				table.Render()
				return nil
			}

			a, err := c.open(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			settings, err := a.service.Settings(ctx)
			if err != nil {
				return err
			}

			if *currency == "" && *symbol == "" && *theme == "" {
				printSettings(c.out, settings)
				return nil
			}

			if *currency != "" {
				if settings, err = settings.WithCurrency(*currency); err != nil {
					return err
				}
			}
			if *symbol != "" {
				settings.CurrencySymbol = *symbol
			}
			if *theme != "" {
				settings.Theme = receipt.Theme(*theme)
			}

			if err := a.service.UpdateSettings(ctx, settings); err != nil {
				return err
			}
			printSettings(c.out, settings)
			return nil
		},
	}
}

func (c *cli) versionCommand() *ff.Command {
	return &ff.Command{
		Name:      "version",
		Usage:     "receiptify version",
		ShortHelp: "print the version",
		Flags:     ff.NewFlagSet("version").SetParent(c.flags),
		Exec: func(ctx context.Context, args []string) error {
			fmt.Fprintln(c.out, version)
			return nil
		},
	}
}
