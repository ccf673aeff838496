package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"attendance/internal/app"
	"attendance/internal/config"
	"attendance/internal/google"
	"attendance/internal/syncer"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	if err := newCLI().Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func newCLI() *cli.App {
	return &cli.App{
		Name:  "attendance",
		Usage: "Manage event guest lists locally and mirror them to a spreadsheet.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Path to the TOML config file.", EnvVars: []string{"ATTENDANCE_CONFIG"}},
			&cli.BoolFlag{Name: "offline", Usage: "Do not revalidate the saved session or contact the backend on startup."},
		},
		Commands: []*cli.Command{
			authCommand(),
			loginCommand(),
			logoutCommand(),
			whoamiCommand(),
			pingCommand(),
			endpointCommand(),
			eventCommand(),
			guestCommand(),
			templateCommand(),
			syncCommand(),
			suggestCommand(),
			serveCommand(),
		},
	}
}

func loadConfig(c *cli.Context) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, setupLogger(cfg.LogLevel), nil
}

// withApp builds the application, resumes the saved session unless
// --offline is set, runs fn and saves on the way out.
func withApp(fn func(c *cli.Context, a *app.App) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, logger, err := loadConfig(c)
		if err != nil {
			return err
		}
		a, err := app.New(c.Context, cfg, logger, app.Options{})
		if err != nil {
			return fmt.Errorf("failed to start: %w", err)
		}
		if !c.Bool("offline") {
			if err := a.Resume(c.Context); err != nil {
				logger.Warn("Could not resume the saved session, working locally.", "error", err)
			}
		}

		runErr := fn(c, a)
		if err := a.Close(); err != nil {
			logger.Error("Failed to save state", "error", err)
			if runErr == nil {
				runErr = err
			}
		}
		return runErr
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize the Apps Script transport with a Google account.",
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger.Info("Starting Google authentication flow.")

			oauthConfig, err := google.OAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret)
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(c.Context, oauthConfig, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}
			if err := google.SaveToken(cfg.TokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", cfg.TokenFile)
			return nil
		},
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "Log in with an email address authorized by the backend.",
		ArgsUsage: "<email>",
		Action: withApp(func(c *cli.Context, a *app.App) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one email address")
			}
			sess, err := a.Session.Login(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			fmt.Printf("Logged in as %s (%s)\n", sess.Name, sess.Email)
			if !sess.Linked() {
				fmt.Println("No spreadsheet is linked yet; changes stay local.")
				return nil
			}
			if a.Features.Sync && a.SyncPreferred() && a.Syncer.Enable() {
				fmt.Printf("Sync is on, spreadsheet %s\n", sess.Spreadsheet())
			}
			return nil
		}),
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the saved session. Local guest lists are kept.",
		Action: withApp(func(c *cli.Context, a *app.App) error {
			a.Syncer.Disable()
			return a.Session.Logout()
		}),
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the current session.",
		Action: withApp(func(c *cli.Context, a *app.App) error {
			sess, ok := a.Session.Current()
			if !ok {
				fmt.Println("Not logged in.")
				return nil
			}
			fmt.Printf("%s <%s>\n", sess.Name, sess.Email)
			if sess.Linked() {
				fmt.Printf("Spreadsheet: %s\n", sess.Spreadsheet())
			}
			fmt.Printf("Logged in at: %s\n", sess.LoginAt.Format("2006-01-02 15:04"))
			return nil
		}),
	}
}

func pingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "Check that the backend endpoint answers.",
		Action: withApp(func(c *cli.Context, a *app.App) error {
			if err := a.Syncer.Ping(c.Context); err != nil {
				return fmt.Errorf("backend is not reachable: %w", err)
			}
			fmt.Println("Backend is reachable.")
			return nil
		}),
	}
}

func endpointCommand() *cli.Command {
	return &cli.Command{
		Name:  "endpoint",
		Usage: "Show or override the backend endpoint.",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the endpoint in use.",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					endpoint, overridden := a.Runtime.Endpoint()
					if endpoint == "" {
						fmt.Println("No endpoint configured.")
						return nil
					}
					source := "config"
					if overridden {
						source = "override"
					}
					fmt.Printf("%s (%s)\n", endpoint, source)
					return nil
				}),
			},
			{
				Name:      "set",
				Usage:     "Save an endpoint that takes precedence over the config file.",
				ArgsUsage: "<url>",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					if c.NArg() != 1 {
						return fmt.Errorf("expected exactly one endpoint")
					}
					return a.Runtime.SetEndpoint(c.Args().First())
				}),
			},
			{
				Name:  "reset",
				Usage: "Drop the saved override and use the configured endpoint.",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					return a.Runtime.ResetEndpoint()
				}),
			},
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Control spreadsheet mirroring.",
		Subcommands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Show whether sync is on and what is pending.",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					st := a.Syncer.Status()
					fmt.Printf("Enabled:         %t\n", st.Enabled)
					fmt.Printf("Spreadsheet:     %s\n", orDash(st.SpreadsheetID))
					fmt.Printf("Events:          %d (%d linked)\n", st.Events, st.LinkedEvents)
					fmt.Printf("Unsynced guests: %d\n", st.UnsyncedGuests)
					return nil
				}),
			},
			{
				Name:  "enable",
				Usage: "Turn sync on and remember the choice.",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					on, err := a.SetSync(true)
					if err != nil {
						return err
					}
					if !on {
						return syncer.ErrSyncUnavailable
					}
					fmt.Println("Sync is on.")
					return nil
				}),
			},
			{
				Name:  "disable",
				Usage: "Turn sync off and remember the choice.",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					_, err := a.SetSync(false)
					return err
				}),
			},
			{
				Name:  "pull",
				Usage: "Replace local events with the spreadsheet contents.",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					res, err := a.Syncer.Pull(c.Context)
					if err != nil {
						return err
					}
					fmt.Printf("Created %d, updated %d, unlinked %d events.\n", res.Created, res.Updated, res.Unlinked)
					if res.Err != nil {
						return fmt.Errorf("some sheets could not be read: %w", res.Err)
					}
					return nil
				}),
			},
		},
	}
}

func suggestCommand() *cli.Command {
	return &cli.Command{
		Name:      "suggest",
		Usage:     "Suggest guest names across all events.",
		ArgsUsage: "<prefix>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 10, Usage: "Maximum number of names."},
		},
		Action: withApp(func(c *cli.Context, a *app.App) error {
			if !a.Features.Autocomplete {
				return fmt.Errorf("autocomplete is turned off in the configuration")
			}
			prefix := strings.Join(c.Args().Slice(), " ")
			for _, name := range a.State.Suggest(prefix, a.Features.AutocompleteMinChars, c.Int("limit")) {
				fmt.Println(name)
			}
			return nil
		}),
	}
}

// reportSync tells the user what happened on the remote side of a change.
func reportSync(logger *slog.Logger, out syncer.Outcome) {
	switch {
	case !out.Attempted:
	case out.Synced():
		fmt.Println("Synced to spreadsheet.")
	case out.Reverted:
		logger.Warn("Spreadsheet update failed, the local change was undone.", "error", out.Err)
	default:
		logger.Warn("Saved locally, spreadsheet update failed.", "error", out.Err)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
