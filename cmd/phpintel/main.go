package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/phpintel/internal/config"
	"github.com/standardbeagle/phpintel/internal/debug"
	"github.com/standardbeagle/phpintel/internal/indexing"
	"github.com/standardbeagle/phpintel/internal/references"
	"github.com/standardbeagle/phpintel/internal/symbolstore"
	"github.com/standardbeagle/phpintel/internal/types"
	"github.com/standardbeagle/phpintel/internal/version"
)

func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path %q: %w", root, err)
	}

	cfg, err := config.Load(absRoot)
	if err != nil {
		return nil, err
	}

	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Index.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Index.Exclude = append(cfg.Index.Exclude, excludeFlags...)
	}
	return cfg, nil
}

// buildIndex scans the workspace so lookups see every declaration, not just
// the file under analysis.
func buildIndex(ctx context.Context, c *cli.Context) (*indexing.Indexer, error) {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, err
	}
	ix := indexing.NewIndexer(cfg, symbolstore.NewStore())
	if _, err := ix.IndexWorkspace(ctx); err != nil {
		return nil, err
	}
	return ix, nil
}

func main() {
	if debug.IsDebugEnabled() {
		debug.InitDebugLogFile()
		defer debug.CloseDebugLog()
	}

	app := &cli.App{
		Name:    "phpintel",
		Usage:   "PHP reference resolution and type inference",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory (defaults to cwd)",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Include files matching glob patterns (overrides config)",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude files matching glob patterns (appended to config)",
			},
		},
		Commands: []*cli.Command{
			indexCommand(),
			refsCommand(),
			typeCommand(),
			versionCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Scan the workspace and report indexing statistics",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Keep running and reindex files as they change",
			},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}
			ix := indexing.NewIndexer(cfg, symbolstore.NewStore())

			stats, err := ix.IndexWorkspace(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Indexed %d files (%d unchanged, %d failed) in %s\n",
				stats.Indexed, stats.Unchanged, stats.Failed, cfg.Project.Root)

			if !c.Bool("watch") && !cfg.Index.Watch {
				return nil
			}

			watcher, err := indexing.NewWatcher(ix)
			if err != nil {
				return err
			}
			fmt.Println("Watching for changes (Ctrl+C to stop)...")
			if err := watcher.Run(ctx); err != nil && err != context.Canceled {
				return err
			}
			return nil
		},
	}
}

// refJSON is the machine-readable reference shape.
type refJSON struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Offset  int    `json:"offset"`
	Type    string `json:"type,omitempty"`
	Scope   string `json:"scope,omitempty"`
	AltName string `json:"altName,omitempty"`
}

func toRefJSON(r *references.Reference) refJSON {
	return refJSON{
		Kind:    r.Kind.String(),
		Name:    r.Name,
		Line:    r.Range.Start.Line,
		Column:  r.Range.Start.Column,
		Offset:  r.Range.Start.Offset,
		Type:    r.Type,
		Scope:   r.Scope,
		AltName: r.AltName,
	}
}

func refsCommand() *cli.Command {
	return &cli.Command{
		Name:      "refs",
		Usage:     "List the resolved references of one file",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Only the reference containing this byte offset",
				Value: -1,
			},
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Filter by reference kind (class, method, variable, ...)",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one file argument")
			}
			file, err := filepath.Abs(c.Args().First())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ix, err := buildIndex(ctx, c)
			if err != nil {
				return err
			}

			content, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			doc, err := references.Analyze(file, content, ix.Store())
			if err != nil {
				return err
			}

			refs := doc.All()
			if offset := c.Int("offset"); offset >= 0 {
				refs = nil
				if r := doc.At(offset); r != nil {
					refs = []*references.Reference{r}
				}
			}
			if kind := c.String("kind"); kind != "" {
				var filtered []*references.Reference
				for _, r := range refs {
					if strings.EqualFold(r.Kind.String(), kind) {
						filtered = append(filtered, r)
					}
				}
				refs = filtered
			}

			if c.Bool("json") {
				out := make([]refJSON, 0, len(refs))
				for _, r := range refs {
					out = append(out, toRefJSON(r))
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			for _, r := range refs {
				line := fmt.Sprintf("%d:%d\t%s\t%s", r.Range.Start.Line, r.Range.Start.Column, r.Kind, r.Name)
				if r.Scope != "" {
					line += "\ton " + r.Scope
				}
				if r.Type != "" {
					line += "\t: " + r.Type
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func typeCommand() *cli.Command {
	return &cli.Command{
		Name:      "type",
		Usage:     "Infer the type of the reference at a byte offset",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:     "offset",
				Usage:    "Byte offset inside the file",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one file argument")
			}
			file, err := filepath.Abs(c.Args().First())
			if err != nil {
				return err
			}
			offset := c.Int("offset")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ix, err := buildIndex(ctx, c)
			if err != nil {
				return err
			}

			content, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			doc, err := references.AnalyzeAt(file, content, ix.Store(), offset)
			if err != nil {
				return err
			}

			ref := doc.At(offset)
			if ref == nil {
				return fmt.Errorf("no reference at offset %d", offset)
			}

			typ := references.ToTypeString(ref, ix.Store(), file)
			if typ == "" {
				fmt.Printf("%s %s: unknown type\n", ref.Kind, ref.Name)
				if ref.Kind != types.SymbolKindVariable {
					if suggestions := ix.Store().Suggest(ref.Name, 3); len(suggestions) > 0 {
						fmt.Printf("Did you mean: %s\n", strings.Join(suggestions, ", "))
					}
				}
				return nil
			}
			fmt.Printf("%s %s: %s\n", ref.Kind, ref.Name, typ)
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(c *cli.Context) error {
			fmt.Println(version.FullInfo())
			return nil
		},
	}
}
