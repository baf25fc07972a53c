package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/attune/internal/errors"
	"github.com/hpungsan/attune/internal/logging"
	"github.com/hpungsan/attune/internal/ops"
	"github.com/hpungsan/attune/internal/web"
)

// maxStdinBytes bounds piped input (check-in text or mood ratings JSON).
const maxStdinBytes = 1 << 20

// newCLIApp creates the CLI application with all commands.
// env may be nil when only help or version output is needed.
func newCLIApp(env *ops.Env) *cli.App {
	app := &cli.App{
		Name:    "attune",
		Usage:   "Intent and mood journal",
		Version: Version,
		Commands: []*cli.Command{
			checkinCmd(env),
			fetchCmd(env),
			listCmd(env),
			latestCmd(env),
			moodCmd(env),
			moodsCmd(env),
			collapseCmd(env),
			dueCmd(env),
			statusCmd(env),
			replayCmd(env),
			exportCmd(env),
			importCmd(env),
			serveCmd(env),
			watchCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// checkinCmd creates the checkin command.
func checkinCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "checkin",
		Usage: "Record a check-in (retrospective may be piped via stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "retrospective", Aliases: []string{"r"}, Usage: "What you did since the last check-in"},
			&cli.StringFlag{Name: "prospective", Aliases: []string{"p"}, Usage: "What you intend to do next"},
			&cli.StringFlag{Name: "target", Aliases: []string{"t"}, Usage: "Optional direction to compare the intent against"},
			&cli.Float64Flag{Name: "hours-slept", Usage: "Hours slept last night"},
			&cli.Int64Flag{Name: "timestamp", Usage: "Unix time of the check-in (default: now)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.SubmitInput{
				Retrospective: c.String("retrospective"),
				Prospective:   c.String("prospective"),
				Target:        c.String("target"),
			}

			if input.Retrospective == "" && stdinHasData() {
				text, err := readStdin(maxStdinBytes)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.Retrospective = text
			}
			if c.IsSet("hours-slept") {
				hours := c.Float64("hours-slept")
				input.HoursSlept = &hours
			}
			if c.IsSet("timestamp") {
				ts := c.Int64("timestamp")
				input.Timestamp = &ts
			}

			awaitScorer(c.Context, env)
			output, err := ops.Submit(c.Context, env, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// awaitScorer gives the embedding warm-up up to one embed timeout to finish.
// A CLI process lives for a single command, so without waiting it would
// always score in fallback mode.
func awaitScorer(ctx context.Context, env *ops.Env) {
	if env.Embeddings == nil {
		return
	}
	timer := time.NewTimer(env.Cfg.EmbedTimeout())
	defer timer.Stop()
	select {
	case <-env.Embeddings.Done():
	case <-timer.C:
	case <-ctx.Done():
	}
}

// fetchCmd creates the fetch command.
func fetchCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch a check-in by ID",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "embeddings", Usage: "Include stored embedding vectors"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Fetch(c.Context, env, ops.FetchInput{
				ID:                c.Args().First(),
				IncludeEmbeddings: c.Bool("embeddings"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List check-ins, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(c.Context, env, ops.ListInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// latestCmd creates the latest command.
func latestCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "latest",
		Usage: "Show the most recent check-in",
		Action: func(c *cli.Context) error {
			output, err := ops.Latest(c.Context, env)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// moodCmd creates the mood command.
func moodCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "mood",
		Usage: "Record a PANAS mood entry (ratings as item=value pairs or a JSON object on stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "ratings", Usage: "Comma-separated item=value pairs, e.g. interested=3,upset=1"},
			&cli.StringFlag{Name: "note", Aliases: []string{"n"}, Usage: "Optional note"},
			&cli.Int64Flag{Name: "timestamp", Usage: "Unix time of the entry (default: now)"},
		},
		Action: func(c *cli.Context) error {
			var ratings map[string]int
			switch {
			case c.String("ratings") != "":
				r, err := parseRatings(c.String("ratings"))
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				ratings = r
			case stdinHasData():
				text, err := readStdin(maxStdinBytes)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				if err := json.Unmarshal([]byte(text), &ratings); err != nil {
					return outputError(errors.NewInvalidRequest("ratings on stdin must be a JSON object of item to integer"))
				}
			default:
				return outputError(errors.NewInvalidRequest("ratings are required (--ratings or JSON on stdin)"))
			}

			input := ops.MoodInput{Ratings: ratings, Note: c.String("note")}
			if c.IsSet("timestamp") {
				ts := c.Int64("timestamp")
				input.Timestamp = &ts
			}

			output, err := ops.RecordMood(c.Context, env, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// moodsCmd creates the moods command.
func moodsCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "moods",
		Usage: "List mood entries, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
			&cli.BoolFlag{Name: "ratings", Usage: "Include per-item ratings"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ListMoods(c.Context, env, ops.MoodListInput{
				Limit:          c.Int("limit"),
				Offset:         c.Int("offset"),
				IncludeRatings: c.Bool("ratings"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// collapseCmd creates the collapse command.
func collapseCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "collapse",
		Usage: "Assess collapse signals over the last 7 days",
		Action: func(c *cli.Context) error {
			output, err := ops.Collapse(c.Context, env)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// dueCmd creates the due command.
func dueCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "due",
		Usage: "Report whether a check-in is due now",
		Action: func(c *cli.Context) error {
			output, err := ops.Due(c.Context, env)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// statusCmd creates the status command.
func statusCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the scoring mode and journal size",
		Action: func(c *cli.Context) error {
			output, err := ops.Status(c.Context, env)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// replayCmd creates the replay command.
func replayCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Recompute a check-in's scores from its stored embeddings",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Replay(c.Context, env, ops.ReplayInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export the journal to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path; .sealed.jsonl when encrypted (default: ~/.attune/exports/journal-<timestamp>[.sealed].jsonl)"},
			&cli.StringFlag{Name: "passphrase", EnvVars: []string{"ATTUNE_EXPORT_PASSPHRASE"}, Usage: "Encrypt the export with this passphrase"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, env, ops.ExportInput{
				Path:       c.String("path"),
				Passphrase: c.String("passphrase"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// importCmd creates the import command.
func importCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import a journal from a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
			&cli.StringFlag{Name: "passphrase", EnvVars: []string{"ATTUNE_EXPORT_PASSPHRASE"}, Usage: "Passphrase for an encrypted export"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|skip"},
		},
		Action: func(c *cli.Context) error {
			mode := ops.ImportMode(c.String("mode"))
			output, err := ops.Import(c.Context, env, ops.ImportInput{
				Path:       c.String("path"),
				Passphrase: c.String("passphrase"),
				Mode:       mode,
			})
			if err != nil {
				return outputError(err)
			}
			if err := output.Failure(mode); err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the local web dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 7733, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv, err := web.NewServer(env, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if err := web.Run(c.Context, srv, env.Log); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// watchCmd creates the watch command.
func watchCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Poll the schedule and print a line each time a check-in becomes due",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "interval", Usage: "Poll interval (default: poll_interval_minutes from config)"},
		},
		Action: func(c *cli.Context) error {
			interval := env.Cfg.PollInterval()
			if c.IsSet("interval") {
				interval = c.Duration("interval")
			}
			if interval <= 0 {
				return outputError(errors.NewInvalidRequest("interval must be positive"))
			}
			if err := runWatch(c.Context, env, interval, os.Stdout); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// runWatch evaluates the schedule every interval until ctx is done and
// writes the due state as one JSON line on each not-due to due edge.
func runWatch(ctx context.Context, env *ops.Env, interval time.Duration, out io.Writer) error {
	log := logging.OrNop(env.Log).Named("watch")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	enc := json.NewEncoder(out)
	wasDue := false
	for {
		due, err := ops.Due(ctx, env)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil
		case err != nil:
			return err
		case due.Due && !wasDue:
			log.Info("check-in due", zap.String("reason", due.Reason))
			if err := enc.Encode(due); err != nil {
				return err
			}
		}
		wasDue = due.Due

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var aErr *errors.AttuneError
	if stderrors.As(err, &aErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", aErr.Code, aErr.Message), 1)
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

// readStdin reads all content from stdin, up to limit bytes.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("stdin exceeds %d bytes", limit)
	}
	return strings.TrimSpace(string(data)), nil
}

// parseRatings parses "item=value,item=value" into a ratings map.
func parseRatings(s string) (map[string]int, error) {
	ratings := make(map[string]int)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid rating %q: want item=value", part)
		}
		v, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid rating %q: value must be an integer", part)
		}
		ratings[strings.TrimSpace(name)] = v
	}
	if len(ratings) == 0 {
		return nil, fmt.Errorf("ratings are empty")
	}
	return ratings, nil
}
