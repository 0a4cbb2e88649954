package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/clipkeep/clipkeep/internal/clipboard"
	"github.com/clipkeep/clipkeep/internal/config"
	"github.com/clipkeep/clipkeep/internal/db"
	"github.com/clipkeep/clipkeep/internal/engine"
	"github.com/clipkeep/clipkeep/internal/errors"
	"github.com/clipkeep/clipkeep/internal/export"
	"github.com/clipkeep/clipkeep/internal/gate"
	"github.com/clipkeep/clipkeep/internal/history"
	"github.com/clipkeep/clipkeep/internal/retention"
)

// appEnv bundles the shared dependencies of CLI commands.
type appEnv struct {
	db   *sql.DB
	cfg  *config.Config
	hist *history.Store
	gate *gate.Gate
	src  clipboard.Source
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *appEnv) *cli.App {
	app := &cli.App{
		Name:    "clipkeep",
		Usage:   "Clipboard capture and history engine",
		Version: Version,
		Commands: []*cli.Command{
			watchCmd(env),
			listCmd(env),
			searchCmd(env),
			copyCmd(env),
			deleteCmd(env),
			favoriteCmd(env),
			unfavoriteCmd(env),
			reorderCmd(env),
			editCmd(env),
			pauseCmd(env),
			resumeCmd(env),
			statusCmd(env),
			excludeCmd(env),
			exportCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// watchCmd runs the capture engine until interrupted.
func watchCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Run the clipboard capture engine in the foreground",
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			thumbs := retention.NewThumbManager(
				time.Duration(env.cfg.InactivityThresholdMinutes)*time.Minute,
				env.cfg.ThumbnailMaxPx, slog.Default())
			eng := engine.New(env.src, env.gate, env.hist, thumbs, env.db, env.cfg, slog.Default())

			if err := eng.Run(ctx); err != nil && err != context.Canceled {
				return outputError(err)
			}
			return nil
		},
	}
}

// listCmd creates the list command.
func listCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List clipboard history, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum items to return (default: page size)"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
			&cli.BoolFlag{Name: "favorites", Aliases: []string{"f"}, Usage: "List only favorites, in favorite order"},
		},
		Action: func(c *cli.Context) error {
			ctx := c.Context

			if c.Bool("favorites") {
				records, err := env.hist.Favorites(ctx)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(history.SummarizeAll(records))
			}

			limit := c.Int("limit")
			if limit <= 0 {
				limit = env.cfg.PageSize
			}
			records, err := db.ListRecords(ctx, env.db, limit, c.Int("offset"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(history.SummarizeAll(records))
		},
	}
}

// searchCmd creates the search command.
func searchCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search history by substring over text content and file names",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum results (default: search limit)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("query argument is required"))
			}
			query := strings.Join(c.Args().Slice(), " ")

			limit := c.Int("limit")
			if limit <= 0 || limit > env.cfg.SearchLimit {
				limit = env.cfg.SearchLimit
			}
			records, err := db.SearchRecords(c.Context, env.db, query, limit)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(history.SummarizeAll(records))
		},
	}
}

// copyCmd creates the copy command.
func copyCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "copy",
		Usage:     "Copy a stored record back to the system clipboard",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := requireIDArg(c)
			if err != nil {
				return err
			}
			rec, err := env.hist.CopyRecord(c.Context, env.src, id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(history.Summarize(rec))
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Permanently delete a record",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := requireIDArg(c)
			if err != nil {
				return err
			}
			if err := env.hist.Delete(c.Context, id); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"id": id, "deleted": true})
		},
	}
}

// favoriteCmd creates the favorite command.
func favoriteCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "favorite",
		Usage:     "Mark a record as favorite (appended to the end of favorite order)",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			return setFavorite(c, env, true)
		},
	}
}

// unfavoriteCmd creates the unfavorite command.
func unfavoriteCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "unfavorite",
		Usage:     "Remove a record from favorites",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			return setFavorite(c, env, false)
		},
	}
}

// setFavorite drives the toggle toward the desired state; already being in
// that state is not an error.
func setFavorite(c *cli.Context, env *appEnv, want bool) error {
	id, err := requireIDArg(c)
	if err != nil {
		return err
	}
	ctx := c.Context

	rec, err := db.GetRecord(ctx, env.db, id)
	if err != nil {
		return outputError(err)
	}

	favorited := rec.IsFavorite
	if favorited != want {
		favorited, err = env.hist.ToggleFavorite(ctx, id)
		if err != nil {
			return outputError(err)
		}
	}
	return outputJSON(map[string]any{"id": id, "is_favorite": favorited})
}

// reorderCmd creates the reorder command.
func reorderCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "reorder",
		Usage:     "Reassign favorite order to match the given ID sequence",
		ArgsUsage: "<id> [<id>...]",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("at least one id is required"))
			}
			ids := c.Args().Slice()
			if err := env.hist.ReorderFavorites(c.Context, ids); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"reordered": len(ids)})
		},
	}
}

// editCmd creates the edit command.
func editCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Replace the text content of a record (reads new content from stdin or --content)",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "content", Aliases: []string{"c"}, Usage: "Replacement text content"},
		},
		Action: func(c *cli.Context) error {
			id, err := requireIDArg(c)
			if err != nil {
				return err
			}

			content := c.String("content")
			if content == "" && stdinHasData() {
				content, err = readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
			}
			if content == "" {
				return outputError(errors.NewInvalidRequest("content is required (flag or stdin)"))
			}

			if err := env.hist.EditContent(c.Context, id, content); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"id": id, "updated": true})
		},
	}
}

// pauseCmd creates the pause command.
func pauseCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "pause",
		Usage: "Pause clipboard capture",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "minutes", Aliases: []string{"m"}, Value: 60, Usage: "Pause duration in minutes"},
		},
		Action: func(c *cli.Context) error {
			minutes := c.Int("minutes")
			if minutes <= 0 {
				return outputError(errors.NewInvalidRequest("minutes must be positive"))
			}
			if err := env.gate.Pause(c.Context, time.Duration(minutes)*time.Minute); err != nil {
				return outputError(err)
			}
			return outputStatus(c.Context, env)
		},
	}
}

// resumeCmd creates the resume command.
func resumeCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "resume",
		Usage: "Resume clipboard capture",
		Action: func(c *cli.Context) error {
			if err := env.gate.Resume(c.Context); err != nil {
				return outputError(err)
			}
			return outputStatus(c.Context, env)
		},
	}
}

// statusCmd creates the status command.
func statusCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show pause state and history counts",
		Action: func(c *cli.Context) error {
			return outputStatus(c.Context, env)
		},
	}
}

func outputStatus(ctx context.Context, env *appEnv) error {
	total, favorites, err := env.hist.Counts(ctx)
	if err != nil {
		return outputError(err)
	}
	return outputJSON(map[string]any{
		"paused":            env.gate.IsPaused(ctx),
		"remaining_seconds": int64(env.gate.RemainingPause(ctx).Round(time.Second).Seconds()),
		"total_records":     total,
		"favorite_records":  favorites,
	})
}

// excludeCmd creates the exclude command with its subcommands.
func excludeCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "exclude",
		Usage: "Manage per-application capture exclusions",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Exclude an application by bundle identifier",
				ArgsUsage: "<bundle-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Human-readable application name"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputError(errors.NewInvalidRequest("bundle-id argument is required"))
					}
					bundleID := c.Args().First()
					if err := env.gate.AddExclusion(c.Context, bundleID, c.String("name")); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"bundle_id": bundleID, "excluded": true})
				},
			},
			{
				Name:      "remove",
				Usage:     "Remove an application from the exclusion list",
				ArgsUsage: "<bundle-id>",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputError(errors.NewInvalidRequest("bundle-id argument is required"))
					}
					bundleID := c.Args().First()
					if err := env.gate.RemoveExclusion(c.Context, bundleID); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"bundle_id": bundleID, "excluded": false})
				},
			},
			{
				Name:  "list",
				Usage: "List excluded applications",
				Action: func(c *cli.Context) error {
					exclusions, err := env.gate.Exclusions(c.Context)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"exclusions": exclusions, "count": len(exclusions)})
				},
			},
		},
	}
}

// exportCmd creates the export command.
func exportCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export clipboard history to a file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: exports directory)"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "jsonl", Usage: "Export format: jsonl|markdown|html"},
			&cli.BoolFlag{Name: "favorites", Usage: "Export only favorited records"},
		},
		Action: func(c *cli.Context) error {
			output, err := export.Export(c.Context, env.db, env.cfg, export.Input{
				Path:          c.String("path"),
				Format:        export.Format(c.String("format")),
				FavoritesOnly: c.Bool("favorites"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// Helper functions

// requireIDArg returns the positional record ID or a usage error.
func requireIDArg(c *cli.Context) (string, error) {
	if c.NArg() == 0 {
		return "", outputError(errors.NewInvalidRequest("id argument is required"))
	}
	return c.Args().First(), nil
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if clipErr, ok := err.(*errors.ClipError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", clipErr.Code, clipErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
