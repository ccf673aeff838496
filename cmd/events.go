package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"attendance/internal/app"
	"attendance/internal/templates"
)

var errTemplatesOff = errors.New("templates are turned off in the configuration")

func eventCommand() *cli.Command {
	return &cli.Command{
		Name:  "event",
		Usage: "Create and manage events.",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create an event, mirroring it when sync is on.",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "date", Usage: "Event date, free form."},
					&cli.StringSliceFlag{Name: "column", Aliases: []string{"c"}, Usage: "Column name, repeat for more."},
					&cli.StringFlag{Name: "template", Usage: "Take the columns from a saved template id."},
				},
				Action: withApp(func(c *cli.Context, a *app.App) error {
					columns := c.StringSlice("column")
					if id := c.String("template"); id != "" {
						if a.Templates == nil {
							return errTemplatesOff
						}
						tpl, err := a.Templates.Use(id)
						if err != nil {
							return err
						}
						columns = tpl.Columns
					}
					ev, out, err := a.Syncer.CreateEvent(c.Context, strings.Join(c.Args().Slice(), " "), c.String("date"), columns)
					if err != nil {
						return err
					}
					fmt.Printf("Created event %s (%s)\n", ev.Name, ev.ID)
					reportSync(a.Logger, out)
					return nil
				}),
			},
			{
				Name:  "list",
				Usage: "List events.",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "ID\tNAME\tDATE\tGUESTS\tSHEET")
					for _, ev := range a.State.Events() {
						fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", ev.ID, ev.Name, orDash(ev.Date), len(ev.Guests), orDash(ev.Sheet()))
					}
					return w.Flush()
				}),
			},
			{
				Name:      "rename",
				Usage:     "Rename an event. A failed sheet rename undoes the local one.",
				ArgsUsage: "<event-id> <new name>",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					if c.NArg() < 2 {
						return fmt.Errorf("expected an event id and a name")
					}
					ev, out, err := a.Syncer.RenameEvent(c.Context, c.Args().First(), strings.Join(c.Args().Tail(), " "))
					if err != nil {
						return err
					}
					fmt.Printf("Event is now %q\n", ev.Name)
					reportSync(a.Logger, out)
					return nil
				}),
			},
			{
				Name:      "columns",
				Usage:     "Replace the column list of an event.",
				ArgsUsage: "<event-id> <column>...",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					if c.NArg() < 2 {
						return fmt.Errorf("expected an event id and at least one column")
					}
					ev, out, err := a.Syncer.SetColumns(c.Context, c.Args().First(), c.Args().Tail())
					if err != nil {
						return err
					}
					fmt.Printf("Columns: %s\n", strings.Join(ev.Columns, ", "))
					reportSync(a.Logger, out)
					return nil
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete an event and its sheet.",
				ArgsUsage: "<event-id>",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					removed, out, err := a.Syncer.DeleteEvent(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					if !removed {
						fmt.Println("No such event.")
						return nil
					}
					reportSync(a.Logger, out)
					return nil
				}),
			},
			{
				Name:      "stats",
				Usage:     "Show answer counts for an event.",
				ArgsUsage: "<event-id>",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					st, err := a.State.Stats(c.Args().First())
					if err != nil {
						return err
					}
					fmt.Printf("Total:     %d\n", st.Total)
					fmt.Printf("Confirmed: %d (%d%%)\n", st.Confirmed, st.ConfirmedPercent)
					fmt.Printf("Declined:  %d (%d%%)\n", st.Declined, st.DeclinedPercent)
					fmt.Printf("Pending:   %d (%d%%)\n", st.Pending, st.PendingPercent)
					return nil
				}),
			},
			{
				Name:      "push",
				Usage:     "Mirror a local-only event and its unsynced guests.",
				ArgsUsage: "<event-id>",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					ev, out, err := a.Syncer.Push(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					fmt.Printf("Event %s is on sheet %s\n", ev.Name, orDash(ev.Sheet()))
					reportSync(a.Logger, out)
					return nil
				}),
			},
		},
	}
}

func templateCommand() *cli.Command {
	return &cli.Command{
		Name:  "template",
		Usage: "Save and reuse column layouts.",
		Subcommands: []*cli.Command{
			{
				Name:  "save",
				Usage: "Save a column layout.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Template name, dated by default."},
					&cli.StringSliceFlag{Name: "column", Aliases: []string{"c"}, Usage: "Column name, repeat for more."},
					&cli.StringFlag{Name: "from-event", Usage: "Copy the columns of an event."},
				},
				Action: withApp(func(c *cli.Context, a *app.App) error {
					if a.Templates == nil {
						return errTemplatesOff
					}
					columns := c.StringSlice("column")
					if id := c.String("from-event"); id != "" {
						ev, err := a.State.Event(id)
						if err != nil {
							return err
						}
						columns = ev.Columns
					}
					tpl, err := a.Templates.Save(c.String("name"), columns)
					if err != nil {
						return err
					}
					fmt.Printf("Saved template %s (%s)\n", tpl.Name, tpl.ID)
					return nil
				}),
			},
			{
				Name:  "list",
				Usage: "List saved templates.",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					if a.Templates == nil {
						return errTemplatesOff
					}
					w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "ID\tNAME\tUSED\tCOLUMNS")
					for _, tpl := range a.Templates.List() {
						fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", tpl.ID, tpl.Name, tpl.UsageCount, strings.Join(tpl.Columns, ", "))
					}
					return w.Flush()
				}),
			},
			{
				Name:      "use",
				Usage:     "Print the columns of a template and count the use.",
				ArgsUsage: "<template-id>",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					if a.Templates == nil {
						return errTemplatesOff
					}
					tpl, err := a.Templates.Use(c.Args().First())
					if err != nil {
						return err
					}
					fmt.Println(strings.Join(tpl.Columns, "\n"))
					return nil
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete a saved template.",
				ArgsUsage: "<template-id>",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					if a.Templates == nil {
						return errTemplatesOff
					}
					removed, err := a.Templates.Delete(c.Args().First())
					if err != nil {
						return err
					}
					if !removed {
						fmt.Println("No such template.")
					}
					return nil
				}),
			},
			{
				Name:  "presets",
				Usage: "List the built-in layouts.",
				Action: func(c *cli.Context) error {
					for _, p := range templates.Presets() {
						fmt.Printf("%s: %s\n", p.Name, strings.Join(p.Columns, ", "))
					}
					return nil
				},
			},
		},
	}
}
