package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/canvasvault/internal/cli/output"
	"github.com/yndnr/canvasvault/internal/infra/buildinfo"
	"github.com/yndnr/canvasvault/internal/server/config"
	"github.com/yndnr/canvasvault/internal/storage"
	"github.com/yndnr/canvasvault/internal/telemetry/logger"
)

const runtimeKey = "runtime"

// ErrDurableUnavailable is returned when a command needs the durable
// database but the store came up in memory mode.
var ErrDurableUnavailable = errors.New("durable database unavailable")

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "canvasvault-cli",
		Usage:   "CanvasVault storage maintenance tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			BackupCommand(),
			StoreCommand(),
			ConfigCommand(),
		},
		Before: before,
		ExitErrHandler: func(c *cli.Context, err error) {
			// main prints the error and sets the exit code.
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Server configuration file to read storage settings from",
			EnvVars: []string{"CANVASVAULT_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Aliases: []string{"d"},
			Usage:   "Data directory (overrides storage.data_dir)",
		},
		&cli.StringFlag{
			Name:    "engine",
			Aliases: []string{"e"},
			Usage:   "Durable engine: badger, bolt (overrides storage.engine)",
		},
		&cli.StringFlag{
			Name:  "encryption-key",
			Usage: "Value encryption key (overrides security.encryption_key)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Hide spinners and progress bars",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable debug logging on stderr",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Config        string
	DataDir       string
	Engine        string
	EncryptionKey string

	Output  output.Format
	Wide    bool
	Quiet   bool
	Verbose bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return nil, err
	}
	return &GlobalFlags{
		Config:        c.String("config"),
		DataDir:       c.String("data-dir"),
		Engine:        c.String("engine"),
		EncryptionKey: c.String("encryption-key"),
		Output:        format,
		Wide:          c.Bool("wide"),
		Quiet:         c.Bool("quiet"),
		Verbose:       c.Bool("verbose"),
	}, nil
}

// overrides maps the storage flags onto configuration keys.
func (f *GlobalFlags) overrides() map[string]any {
	m := make(map[string]any)
	if f.DataDir != "" {
		m["storage.data_dir"] = f.DataDir
	}
	if f.Engine != "" {
		m["storage.engine"] = strings.ToLower(f.Engine)
	}
	if f.EncryptionKey != "" {
		m["security.encryption_key"] = f.EncryptionKey
	}
	return m
}

// Runtime is the state shared by every command of one invocation.
type Runtime struct {
	Flags  *GlobalFlags
	Config *config.ServerConfig
	Logger *slog.Logger

	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader
}

func before(c *cli.Context) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}

	level := "warn"
	if flags.Verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Format: "text", Output: errWriter(c)})

	cfg, err := config.Load(flags.Config, flags.overrides())
	if err != nil {
		return err
	}

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[runtimeKey] = &Runtime{
		Flags:  flags,
		Config: cfg,
		Logger: log,
		stdout: writer(c),
		stderr: errWriter(c),
		stdin:  reader(c),
	}
	return nil
}

// GetRuntime retrieves the runtime prepared by the Before hook.
func GetRuntime(c *cli.Context) (*Runtime, error) {
	if rt, ok := c.App.Metadata[runtimeKey].(*Runtime); ok {
		return rt, nil
	}
	return nil, errors.New("cli runtime not initialised")
}

func writer(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

func errWriter(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

func reader(c *cli.Context) io.Reader {
	if c.App.Reader != nil {
		return c.App.Reader
	}
	return os.Stdin
}

// Print renders data in the selected output format.
func (rt *Runtime) Print(data any) error {
	return output.NewFormatter(rt.Flags.Output, rt.Flags.Wide).Format(rt.stdout, data)
}

// Notice writes a human readable line to stderr unless quiet.
func (rt *Runtime) Notice(format string, args ...any) {
	if rt.Flags.Quiet {
		return
	}
	fmt.Fprintf(rt.stderr, format+"\n", args...)
}

// Progress returns a progress bar on stderr, or nil when quiet.
func (rt *Runtime) Progress(title string) *output.ProgressBar {
	if rt.Flags.Quiet {
		return nil
	}
	return output.NewProgressBar(rt.stderr, title)
}

// Confirm asks a yes/no question on stderr and reads the answer from stdin.
func (rt *Runtime) Confirm(question string) bool {
	fmt.Fprintf(rt.stderr, "%s [y/N]: ", question)
	line, _ := bufio.NewReader(rt.stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// ResetFlag returns the reset marker of the configured data directory.
func (rt *Runtime) ResetFlag() *storage.FileResetFlag {
	return storage.NewFileResetFlag(rt.Config.ResetFlagPath())
}

// OpenOptions controls how a command opens the store.
type OpenOptions struct {
	// RequireDurable closes the store again and returns
	// ErrDurableUnavailable when only the memory fallback came up.
	RequireDurable bool

	// KeepReset leaves a pending reset request in place for the next open.
	KeepReset bool
}

// OpenStore opens the configured store.
func (rt *Runtime) OpenStore(ctx context.Context, opts OpenOptions) (*storage.Engine, error) {
	kv, err := rt.Config.KVConfig()
	if err != nil {
		return nil, err
	}
	driver, err := storage.NewDriver(kv, rt.Logger)
	if err != nil {
		return nil, err
	}

	cfg := storage.Config{
		Driver:      driver,
		OpenTimeout: rt.Config.Storage.OpenTimeout,
	}
	if !opts.KeepReset {
		cfg.ResetFlag = rt.ResetFlag()
	}
	engine := storage.New(cfg, storage.WithLogger(rt.Logger))

	var spinner *output.Spinner
	if !rt.Flags.Quiet {
		spinner = output.NewSpinner(rt.stderr, fmt.Sprintf("Opening %s store in %s", driver.Name(), kv.Dir))
		spinner.Start()
	}
	mode := engine.Open(ctx)

	if mode == storage.ModeMemory {
		if spinner != nil {
			spinner.Fail(fmt.Sprintf("%s store unavailable, using memory", driver.Name()))
		}
		if opts.RequireDurable {
			cause := engine.Cause()
			_ = engine.Close()
			return nil, fmt.Errorf("%w: %v", ErrDurableUnavailable, cause)
		}
		return engine, nil
	}
	if spinner != nil {
		spinner.Stop()
	}
	return engine, nil
}

// PrintError prints an error message to stderr.
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
}
