package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/canvasvault/internal/cli/output"
	"github.com/yndnr/canvasvault/internal/core/domain"
	"github.com/yndnr/canvasvault/internal/infra/buildinfo"
	"github.com/yndnr/canvasvault/internal/storage"
	"github.com/yndnr/canvasvault/internal/telemetry/logger"
)

// StoreCommand returns the store subcommand group.
func StoreCommand() *cli.Command {
	return &cli.Command{
		Name:  "store",
		Usage: "Inspect and reset the durable store",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show engine, mode and record counts",
				Action: storeStatus,
			},
			{
				Name:      "keys",
				Usage:     "List record ids of a collection",
				ArgsUsage: "COLLECTION",
				Action:    storeKeys,
			},
			{
				Name:      "get",
				Usage:     "Print one record",
				ArgsUsage: "COLLECTION ID",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "default",
						Usage: "Fall back to the built-in root node or theme",
					},
				},
				Action: storeGet,
			},
			{
				Name:  "reset",
				Usage: "Request that the durable database is destroyed on next open",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "now",
						Usage: "Open the store immediately so the reset is applied",
					},
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation",
					},
				},
				Action: storeReset,
			},
		},
	}
}

// StatusResult describes the store as opened by the CLI.
type StatusResult struct {
	Engine       string         `json:"engine"`
	DataDir      string         `json:"data_dir"`
	Mode         string         `json:"mode"`
	Cause        string         `json:"cause,omitempty"`
	Encrypted    bool           `json:"encrypted"`
	ResetPending bool           `json:"reset_pending"`
	Nodes        int            `json:"nodes"`
	Themes       int            `json:"themes"`
	Images       int            `json:"images"`
	Build        buildinfo.Info `json:"build" table:"wide"`
}

// ResetResult reports a reset request.
type ResetResult struct {
	Path    string `json:"path"`
	Queued  bool   `json:"queued"`
	Applied bool   `json:"applied"`
}

func storeStatus(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}

	pending, err := rt.ResetFlag().Requested()
	if err != nil {
		return err
	}

	engine, err := rt.OpenStore(c.Context, OpenOptions{KeepReset: true})
	if err != nil {
		return err
	}
	defer engine.Close()

	result := StatusResult{
		Engine:       engine.DriverName(),
		DataDir:      rt.Config.Storage.DataDir,
		Mode:         engine.Mode().String(),
		Encrypted:    rt.Config.Security.EncryptionKey != "",
		ResetPending: pending,
		Build:        buildinfo.Get(),
	}
	if cause := engine.Cause(); cause != nil {
		result.Cause = cause.Error()
	}

	counts := map[domain.Collection]*int{
		domain.CollectionNodes:  &result.Nodes,
		domain.CollectionTheme:  &result.Themes,
		domain.CollectionImages: &result.Images,
	}
	for _, coll := range domain.Collections() {
		keys, err := engine.ListKeys(c.Context, coll)
		if err != nil {
			return err
		}
		*counts[coll] = len(keys)
	}
	return rt.Print(result)
}

func storeKeys(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	if c.NArg() != 1 {
		return fmt.Errorf("usage: %s", c.Command.ArgsUsage)
	}
	coll, err := domain.ParseCollection(c.Args().First())
	if err != nil {
		return err
	}

	engine, err := rt.OpenStore(c.Context, OpenOptions{RequireDurable: true, KeepReset: true})
	if err != nil {
		return err
	}
	defer engine.Close()

	keys, err := engine.ListKeys(c.Context, coll)
	if err != nil {
		return err
	}
	if keys == nil {
		keys = []string{}
	}
	return rt.Print(keys)
}

func storeGet(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	if c.NArg() != 2 {
		return fmt.Errorf("usage: %s", c.Command.ArgsUsage)
	}
	coll, err := domain.ParseCollection(c.Args().Get(0))
	if err != nil {
		return err
	}
	id := c.Args().Get(1)

	engine, err := rt.OpenStore(c.Context, OpenOptions{RequireDurable: true, KeepReset: true})
	if err != nil {
		return err
	}
	defer engine.Close()

	var rec domain.Record
	if c.Bool("default") {
		rec, err = engine.GetOrDefault(c.Context, coll, id)
	} else {
		rec, err = engine.Get(c.Context, coll, id)
	}
	if err != nil {
		return err
	}
	if rec == nil {
		return domain.ErrRecordNotFound.WithDetails(fmt.Sprintf("%s/%s", coll, id))
	}
	return rt.Print(recordView(rt, coll, rec))
}

// recordView shortens image payloads for table output.
func recordView(rt *Runtime, coll domain.Collection, rec domain.Record) any {
	if coll != domain.CollectionImages || rt.Flags.Output != output.FormatTable {
		return rec
	}
	var img domain.Image
	if err := rec.Decode(&img); err != nil {
		return rec
	}
	img.Data, _ = logger.Truncate(img.Data)
	return img
}

func storeReset(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}

	flag := rt.ResetFlag()
	if !c.Bool("force") {
		q := fmt.Sprintf("Destroy the %s database in %s on next open?", rt.Config.Storage.Engine, rt.Config.Storage.DataDir)
		if !rt.Confirm(q) {
			return fmt.Errorf("reset cancelled")
		}
	}
	if err := flag.Request(); err != nil {
		return err
	}
	result := ResetResult{Path: flag.Path(), Queued: true}

	if c.Bool("now") {
		engine, err := rt.OpenStore(c.Context, OpenOptions{})
		if err != nil {
			return err
		}
		mode := engine.Mode()
		if err := engine.Close(); err != nil {
			return err
		}
		pending, err := flag.Requested()
		if err != nil {
			return err
		}
		result.Queued = pending
		result.Applied = !pending && mode == storage.ModeDurable
	}
	return rt.Print(result)
}
