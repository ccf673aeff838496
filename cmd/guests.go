package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"github.com/xorcare/pointer"

	"attendance/internal/app"
	"attendance/internal/importer"
	"attendance/internal/models"
	"attendance/internal/state"
)

var guestFlags = []cli.Flag{
	&cli.StringSliceFlag{Name: "field", Aliases: []string{"f"}, Usage: "Column value as column=value, repeat for more."},
	&cli.StringFlag{Name: "status", Usage: "confirmed, declined or pending."},
	&cli.StringFlag{Name: "name", Usage: "Guest name."},
	&cli.StringFlag{Name: "phone", Usage: "Guest phone."},
	&cli.StringFlag{Name: "email", Usage: "Guest email."},
}

func guestCommand() *cli.Command {
	return &cli.Command{
		Name:  "guest",
		Usage: "Manage the guests of an event.",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a guest.",
				ArgsUsage: "<event-id>",
				Flags:     append([]cli.Flag{&cli.StringFlag{Name: "id", Usage: "Explicit guest id."}}, guestFlags...),
				Action: withApp(func(c *cli.Context, a *app.App) error {
					fields, err := parseFields(c.StringSlice("field"))
					if err != nil {
						return err
					}
					in := state.GuestInput{
						ID:     c.String("id"),
						Fields: fields,
						Name:   c.String("name"),
						Phone:  c.String("phone"),
						Email:  c.String("email"),
					}
					if c.IsSet("status") {
						if in.Status, err = models.ParseStatus(c.String("status")); err != nil {
							return err
						}
					}
					g, out, err := a.Syncer.AddGuest(c.Context, c.Args().First(), in)
					if err != nil {
						return err
					}
					fmt.Printf("Added guest %s\n", g.ID)
					reportSync(a.Logger, out)
					return nil
				}),
			},
			{
				Name:      "list",
				Usage:     "List the guests of an event.",
				ArgsUsage: "<event-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Usage: "Only show guests with this status."},
				},
				Action: withApp(func(c *cli.Context, a *app.App) error {
					ev, err := a.State.Event(c.Args().First())
					if err != nil {
						return err
					}
					var only models.Status
					if c.IsSet("status") {
						if only, err = models.ParseStatus(c.String("status")); err != nil {
							return err
						}
					}

					header := ev.Columns
					if len(header) == 0 {
						header = []string{"Name", "Phone", "Email"}
					}
					w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					fmt.Fprintf(w, "ID\tSTATUS\tSYNCED\t%s\n", strings.ToUpper(strings.Join(header, "\t")))
					for _, g := range ev.Guests {
						if only != "" && g.Status != only {
							continue
						}
						values := make([]string, len(ev.Columns))
						for i, col := range ev.Columns {
							values[i] = g.Fields[col]
						}
						if len(ev.Columns) == 0 {
							values = []string{g.Name, g.Phone, g.Email}
						}
						fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", g.ID, g.Status, g.Synced, strings.Join(values, "\t"))
					}
					return w.Flush()
				}),
			},
			{
				Name:      "status",
				Usage:     "Set the answer of a guest.",
				ArgsUsage: "<event-id> <guest-id> <status>",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					if c.NArg() != 3 {
						return fmt.Errorf("expected an event id, a guest id and a status")
					}
					status, err := models.ParseStatus(c.Args().Get(2))
					if err != nil {
						return err
					}
					_, out, err := a.Syncer.UpdateGuestStatus(c.Context, c.Args().Get(0), c.Args().Get(1), status)
					if err != nil {
						return err
					}
					reportSync(a.Logger, out)
					return nil
				}),
			},
			{
				Name:      "update",
				Usage:     "Change fields of a guest.",
				ArgsUsage: "<event-id> <guest-id>",
				Flags:     guestFlags,
				Action: withApp(func(c *cli.Context, a *app.App) error {
					if c.NArg() != 2 {
						return fmt.Errorf("expected an event id and a guest id")
					}
					fields, err := parseFields(c.StringSlice("field"))
					if err != nil {
						return err
					}
					u := state.GuestUpdate{Fields: fields}
					if c.IsSet("status") {
						status, err := models.ParseStatus(c.String("status"))
						if err != nil {
							return err
						}
						u.Status = &status
					}
					if c.IsSet("name") {
						u.Name = pointer.String(c.String("name"))
					}
					if c.IsSet("phone") {
						u.Phone = pointer.String(c.String("phone"))
					}
					if c.IsSet("email") {
						u.Email = pointer.String(c.String("email"))
					}
					if u.Empty() {
						return fmt.Errorf("nothing to update")
					}
					_, out, err := a.Syncer.UpdateGuest(c.Context, c.Args().Get(0), c.Args().Get(1), u)
					if err != nil {
						return err
					}
					reportSync(a.Logger, out)
					return nil
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete a guest.",
				ArgsUsage: "<event-id> <guest-id>",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					removed, out, err := a.Syncer.DeleteGuest(c.Context, c.Args().Get(0), c.Args().Get(1))
					if err != nil {
						return err
					}
					if !removed {
						fmt.Println("No such guest.")
						return nil
					}
					reportSync(a.Logger, out)
					return nil
				}),
			},
			{
				Name:      "import",
				Usage:     "Add guests from delimited text, one per line.",
				ArgsUsage: "<event-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Usage: "Read from this file instead of stdin."},
					&cli.BoolFlag{Name: "header", Usage: "The first line names the columns."},
					&cli.StringFlag{Name: "separator", Usage: "Cell separator, detected when empty."},
				},
				Action: withApp(func(c *cli.Context, a *app.App) error {
					ev, err := a.State.Event(c.Args().First())
					if err != nil {
						return err
					}
					text, err := readInput(c.String("file"))
					if err != nil {
						return err
					}
					opts := importer.Options{Header: c.Bool("header")}
					if sep := []rune(c.String("separator")); len(sep) == 1 {
						opts.Separator = sep[0]
					}
					inputs, err := importer.Parse(text, ev.Columns, opts)
					if err != nil {
						return err
					}
					added, out, err := a.Syncer.ImportGuests(c.Context, ev.ID, inputs)
					fmt.Printf("Imported %d of %d guests.\n", len(added), len(inputs))
					if err != nil {
						return err
					}
					reportSync(a.Logger, out)
					return nil
				}),
			},
			{
				Name:      "bulk",
				Usage:     "Set the same status on several guests.",
				ArgsUsage: "<event-id> <status> <guest-id>...",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					if c.NArg() < 3 {
						return fmt.Errorf("expected an event id, a status and at least one guest id")
					}
					status, err := models.ParseStatus(c.Args().Get(1))
					if err != nil {
						return err
					}
					results, err := a.Syncer.BulkUpdateStatus(c.Context, c.Args().First(), c.Args().Slice()[2:], status)
					if err != nil {
						return err
					}
					failed := 0
					for _, r := range results {
						switch {
						case r.Err != nil:
							failed++
							a.Logger.Warn("Could not update guest.", "guestID", r.GuestID, "error", r.Err)
						case r.Outcome.Attempted && !r.Outcome.Synced():
							a.Logger.Warn("Updated locally, spreadsheet update failed.", "guestID", r.GuestID, "error", r.Outcome.Err)
						}
					}
					fmt.Printf("Updated %d of %d guests.\n", len(results)-failed, len(results))
					return nil
				}),
			},
		},
	}
}

func parseFields(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	fields := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid field %q, want column=value", pair)
		}
		fields[strings.TrimSpace(k)] = v
	}
	return fields, nil
}

func readInput(path string) (string, error) {
	var r io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(data), nil
}
