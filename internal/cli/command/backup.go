package command

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/canvasvault/internal/storage/snapshot"
)

// BackupCommand returns the backup subcommand group.
func BackupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Snapshot export and import",
		Subcommands: []*cli.Command{
			{
				Name:  "export",
				Usage: "Export every collection to a snapshot document",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "out",
						Usage: "Write the document to FILE (\"-\" for stdout)",
					},
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Store the document in the snapshot directory and apply retention",
					},
					&cli.Int64Flag{
						Name:  "edit-counter",
						Usage: "Edit counter to record in the document",
					},
				},
				Action: backupExport,
			},
			{
				Name:      "import",
				Usage:     "Replace all stored data with a snapshot document",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "id",
						Usage: "Import a stored snapshot by id instead of FILE",
					},
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation",
					},
				},
				Action: backupImport,
			},
			{
				Name:   "list",
				Usage:  "List stored snapshots",
				Action: backupList,
			},
			{
				Name:   "prune",
				Usage:  "Apply snapshot retention now",
				Action: backupPrune,
			},
		},
	}
}

// ExportResult summarises an export.
type ExportResult struct {
	Nodes    int            `json:"nodes"`
	Images   int            `json:"images"`
	File     string         `json:"file,omitempty"`
	Snapshot *snapshot.Info `json:"snapshot,omitempty"`
	Pruned   []string       `json:"pruned,omitempty"`
}

// ImportResult summarises an import.
type ImportResult struct {
	Source    string             `json:"source"`
	Nodes     int                `json:"nodes"`
	Images    int                `json:"images"`
	EditState snapshot.EditState `json:"edit_state"`
}

// PruneResult lists snapshots removed by retention.
type PruneResult struct {
	Removed []string `json:"removed"`
}

func snapshotManager(rt *Runtime) (*snapshot.Manager, error) {
	return snapshot.NewManager(rt.Config.SnapshotConfig())
}

func progressFor(rt *Runtime, title string) (snapshot.Progress, func()) {
	bar := rt.Progress(title)
	if bar == nil {
		return nil, func() {}
	}
	return bar.Report, bar.Finish
}

func backupExport(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	out := c.String("out")
	save := c.Bool("save")
	toStdout := out == "-" || (out == "" && !save)

	var state snapshot.EditState
	if c.IsSet("edit-counter") {
		n := c.Int64("edit-counter")
		state.EditCounter = &n
	}

	engine, err := rt.OpenStore(c.Context, OpenOptions{RequireDurable: true, KeepReset: true})
	if err != nil {
		return err
	}
	defer engine.Close()

	progress, finish := progressFor(rt, "Export")
	doc, err := snapshot.NewCodec(snapshot.WithLogger(rt.Logger)).Export(c.Context, engine, state, progress)
	finish()
	if err != nil {
		return err
	}

	data, err := snapshot.Encode(doc)
	if err != nil {
		return err
	}
	result := ExportResult{Nodes: len(doc.Data.Nodes), Images: len(doc.Data.Images)}

	if out != "" && out != "-" {
		if err := writeFileAtomic(out, data); err != nil {
			return err
		}
		result.File = out
	}

	if save {
		mgr, err := snapshotManager(rt)
		if err != nil {
			return err
		}
		info, err := mgr.SaveRaw(data)
		if err != nil {
			return err
		}
		result.Snapshot = info
		pruned, err := mgr.Prune()
		if err != nil {
			rt.Logger.Warn("snapshot prune failed", "error", err)
		}
		result.Pruned = pruned
	}

	if toStdout {
		_, err := rt.stdout.Write(append(data, '\n'))
		if err == nil {
			rt.Notice("Exported %d nodes and %d images", result.Nodes, result.Images)
		}
		return err
	}
	return rt.Print(result)
}

func backupImport(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}

	raw, source, err := importSource(c, rt)
	if err != nil {
		return err
	}

	doc, err := snapshot.Parse(raw)
	if err != nil {
		return err
	}

	if !c.Bool("force") {
		q := fmt.Sprintf("Replace all stored data with %d nodes and %d images from %s?",
			len(doc.Data.Nodes), len(doc.Data.Images), source)
		if !rt.Confirm(q) {
			return fmt.Errorf("import cancelled")
		}
	}

	engine, err := rt.OpenStore(c.Context, OpenOptions{RequireDurable: true})
	if err != nil {
		return err
	}
	defer engine.Close()

	progress, finish := progressFor(rt, "Import")
	state, err := snapshot.NewCodec(snapshot.WithLogger(rt.Logger)).Import(c.Context, raw, engine, progress)
	finish()
	if err != nil {
		return err
	}

	return rt.Print(ImportResult{
		Source:    source,
		Nodes:     len(doc.Data.Nodes),
		Images:    len(doc.Data.Images),
		EditState: state,
	})
}

// importSource reads the document named by --id or the FILE argument.
func importSource(c *cli.Context, rt *Runtime) ([]byte, string, error) {
	id := c.String("id")
	file := c.Args().First()
	switch {
	case id != "" && file != "":
		return nil, "", fmt.Errorf("use either FILE or --id, not both")
	case id != "":
		mgr, err := snapshotManager(rt)
		if err != nil {
			return nil, "", err
		}
		raw, _, err := mgr.Read(id)
		return raw, id, err
	case file == "-":
		if !c.Bool("force") {
			return nil, "", fmt.Errorf("reading from stdin requires --force")
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rt.stdin); err != nil {
			return nil, "", fmt.Errorf("read stdin: %w", err)
		}
		return buf.Bytes(), "stdin", nil
	case file != "":
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, "", fmt.Errorf("read snapshot: %w", err)
		}
		return raw, filepath.Base(file), nil
	default:
		return nil, "", fmt.Errorf("snapshot FILE or --id is required")
	}
}

func backupList(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	mgr, err := snapshotManager(rt)
	if err != nil {
		return err
	}
	infos, err := mgr.List()
	if err != nil {
		return err
	}
	if infos == nil {
		infos = []*snapshot.Info{}
	}
	return rt.Print(infos)
}

func backupPrune(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	mgr, err := snapshotManager(rt)
	if err != nil {
		return err
	}
	removed, err := mgr.Prune()
	if err != nil {
		return err
	}
	if removed == nil {
		removed = []string{}
	}
	return rt.Print(PruneResult{Removed: removed})
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
