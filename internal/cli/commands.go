// Package cli provides command definitions for decsync.
package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	decsync "github.com/klauern/decsync"
	"github.com/klauern/decsync/internal/config"
	"github.com/klauern/decsync/internal/ui"
	"github.com/klauern/decsync/internal/ui/tui"
	"github.com/klauern/decsync/internal/watch"
)

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Display version information",
		Action: func(_ context.Context, _ *cli.Command) error {
			fmt.Printf("decsync %s (commit %s, built %s)\n", Version, Commit, BuildDate)
			return nil
		},
	}
}

func appIDCommand() *cli.Command {
	return &cli.Command{
		Name:  "app-id",
		Usage: "Print the app id for this device and application",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "name",
				Usage: "Application name (defaults to the configured app name)",
			},
			&cli.IntFlag{
				Name:  "id",
				Usage: "Instance id in [0, 100000) to distinguish multiple instances",
				Value: -1,
			},
			&cli.BoolFlag{
				Name:  "random",
				Usage: "Draw a random instance id",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			name := cmd.String("name")
			if name == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				name = cfg.AppName
			}

			var appID string
			var err error
			switch {
			case cmd.Bool("random"):
				appID, err = decsync.GenerateAppID(name)
			case cmd.Int("id") >= 0:
				appID, err = decsync.GetAppIDWithID(name, int(cmd.Int("id")))
			default:
				appID, err = decsync.GetAppID(name)
			}
			if err != nil {
				return err
			}
			fmt.Println(appID)
			return nil
		},
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Check a DecSync directory for a supported version",
		UsageText: "decsync check [DIR]",
		Flags:     dirFlags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			dir, _, err := resolveDir(cmd)
			if err != nil {
				return err
			}
			if err := decsync.CheckDecsyncInfo(dir); err != nil {
				code := 1
				if errors.Is(err, decsync.ErrUnsupportedVersion) {
					code = 2
				}
				fmt.Println(ui.StatusError(err.Error()))
				return cli.Exit("", code)
			}
			fmt.Println(ui.StatusSuccess(dir))
			return nil
		},
	}
}

func collectionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "collections",
		Usage: "List collections of a sync type",
		Flags: append(dirFlags(),
			&cli.StringFlag{
				Name:     "type",
				Usage:    "Sync type, for example contacts or calendars",
				Required: true,
			},
		),
		Action: func(_ context.Context, cmd *cli.Command) error {
			dir, _, err := resolveDir(cmd)
			if err != nil {
				return err
			}
			collections, err := decsync.ListCollections(dir, cmd.String("type"))
			if err != nil {
				return err
			}
			for _, coll := range collections {
				name, err := decsync.GetStaticInfo(dir, cmd.String("type"), coll, `"name"`)
				if err != nil || name == "null" {
					fmt.Println(coll)
					continue
				}
				fmt.Printf("%s\t%s\n", coll, name)
			}
			return nil
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print the static info value for a key",
		UsageText: "decsync get [options] KEY",
		Description: `Look up the most recent value stored at the path ["info"],
   for example "name", "color" or "deleted". The key is a JSON-serialized
   string; bare words are quoted automatically.

   Examples:
     decsync get --type rss '"latest-article-read"'
     decsync get --type contacts --collection work name`,
		Flags: append(dirFlags(), typeFlags()...),
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("get requires exactly 1 argument: KEY")
			}
			dir, _, err := resolveDir(cmd)
			if err != nil {
				return err
			}
			value, err := decsync.GetStaticInfo(dir, cmd.String("type"), cmd.String("collection"), jsonKey(cmd.Args().Get(0)))
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		},
	}
}

func setCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Write one entry",
		UsageText: "decsync set [options] KEY VALUE",
		Flags: append(append(dirFlags(), typeFlags()...),
			&cli.StringFlag{
				Name:  "path",
				Usage: "Entry path as comma-separated segments, for example feeds,1 (default: info)",
				Value: "info",
			},
			&cli.StringFlag{
				Name:  "app-id",
				Usage: "App id to write under (defaults to the app id of this device)",
			},
		),
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return errors.New("set requires exactly 2 arguments: KEY VALUE")
			}
			dir, cfg, err := resolveDir(cmd)
			if err != nil {
				return err
			}
			appID := cmd.String("app-id")
			if appID == "" {
				appID, err = decsync.GetAppID(cfg.AppName)
				if err != nil {
					return err
				}
			}
			d, err := decsync.New(dir, cmd.String("type"), cmd.String("collection"), appID)
			if err != nil {
				return err
			}
			path := splitPath(cmd.String("path"))
			key := jsonKey(cmd.Args().Get(0))
			if err := d.SetEntry(path, key, cmd.Args().Get(1)); err != nil {
				return err
			}
			fmt.Println(ui.StatusSuccess(fmt.Sprintf("%s %s", strings.Join(path, "/"), key)))
			return nil
		},
	}
}

func entriesCommand() *cli.Command {
	return &cli.Command{
		Name:  "entries",
		Usage: "Dump the current winning values below a path",
		Flags: append(append(dirFlags(), typeFlags()...),
			&cli.StringFlag{
				Name:  "path",
				Usage: "Path prefix as comma-separated segments (default: everything)",
			},
			&cli.BoolFlag{
				Name:  "rebuild",
				Usage: "Rebuild the stored view from all logs before dumping",
			},
		),
		Action: func(_ context.Context, cmd *cli.Command) error {
			dir, cfg, err := resolveDir(cmd)
			if err != nil {
				return err
			}
			appID, err := decsync.GetAppID(cfg.AppName)
			if err != nil {
				return err
			}
			d, err := decsync.New(dir, cmd.String("type"), cmd.String("collection"), appID)
			if err != nil {
				return err
			}
			if cmd.Bool("rebuild") {
				if err := d.InitStoredEntries(); err != nil {
					return err
				}
			}
			d.AddListener(nil, func(path []string, datetime, key, value string, _ any) {
				fmt.Printf("%s\t/%s\t%s\t%s\n", datetime, strings.Join(path, "/"), key, value)
			})
			return d.ExecuteAllStoredEntriesForPathPrefix(splitPath(cmd.String("path")), nil)
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Follow a DecSync tree and print entry updates as they merge",
		Flags: append(append(dirFlags(), typeFlags()...),
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show a live feed instead of plain lines",
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir, cfg, err := resolveDir(cmd)
			if err != nil {
				return err
			}
			appID, err := decsync.GetAppID(cfg.AppName)
			if err != nil {
				return err
			}
			d, err := decsync.New(dir, cmd.String("type"), cmd.String("collection"), appID)
			if err != nil {
				return err
			}

			base := dir
			if t := cmd.String("type"); t != "" {
				base = filepath.Join(base, t)
			}
			if c := cmd.String("collection"); c != "" {
				base = filepath.Join(base, c)
			}
			w, err := watch.New(base)
			if err != nil {
				return err
			}
			defer w.Close()

			opts := watch.Options{
				Debounce:     cfg.Watch.Debounce.Std(),
				PollInterval: cfg.Watch.PollInterval.Std(),
			}
			if cmd.Bool("tui") {
				return watchTUI(ctx, cmd, d, w, opts)
			}

			d.AddListener(nil, func(path []string, datetime, key, value string, _ any) {
				fmt.Println(ui.StatusUpdate(fmt.Sprintf("%s /%s %s = %s",
					datetime, strings.Join(path, "/"), key, value)))
			})
			if err := d.ExecuteAllNewEntries(nil); err != nil {
				return err
			}
			return w.Run(ctx, opts, func() error {
				return d.ExecuteAllNewEntries(nil)
			})
		},
	}
}

// watchTUI runs the watch loop behind a BubbleTea feed.
func watchTUI(ctx context.Context, cmd *cli.Command, d *decsync.Decsync, w *watch.Watcher, opts watch.Options) error {
	title := "watching " + cmd.String("type")
	if c := cmd.String("collection"); c != "" {
		title += "/" + c
	}
	p := tea.NewProgram(tui.NewFeedModel(title))

	delivered := 0
	d.AddListener(nil, func(path []string, datetime, key, value string, _ any) {
		delivered++
		p.Send(tui.EntryMsg{
			Datetime: datetime,
			Path:     append([]string(nil), path...),
			Key:      key,
			Value:    value,
		})
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		scan := func() error {
			delivered = 0
			err := d.ExecuteAllNewEntries(nil)
			p.Send(tui.ScanMsg{Delivered: delivered})
			return err
		}
		if err := scan(); err != nil {
			return
		}
		_ = w.Run(ctx, opts, scan)
	}()

	_, err := p.Run()
	return err
}

// dirFlags returns the shared --dir flag.
func dirFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "dir",
			Usage: "DecSync directory (defaults to the configured directory)",
		},
	}
}

// typeFlags returns the shared --type and --collection flags.
func typeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "type",
			Usage:    "Sync type, for example rss, contacts or calendars",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "collection",
			Usage: "Optional collection inside the sync type",
		},
	}
}

// resolveDir determines the DecSync directory from the flag, an argument, or
// the configuration, in that order.
func resolveDir(cmd *cli.Command) (string, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", nil, err
	}
	if dir := cmd.String("dir"); dir != "" {
		return dir, cfg, nil
	}
	if cmd.Args().Len() > 0 && cmd.Name == "check" {
		return cmd.Args().Get(0), cfg, nil
	}
	return cfg.Dir, cfg, nil
}

// splitPath parses a comma-separated entry path. An empty string is the root
// path.
func splitPath(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// jsonKey quotes a bare word as a JSON string; values that already look like
// JSON are passed through.
func jsonKey(s string) string {
	if s == "" || s == "null" || s == "true" || s == "false" {
		return s
	}
	switch s[0] {
	case '"', '{', '[', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return s
	}
	return `"` + s + `"`
}
