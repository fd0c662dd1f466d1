package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/canvasvault/internal/server/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:    "config",
		Aliases: []string{"cfg"},
		Usage:   "Configuration inspection",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective configuration with secrets masked",
				Action: configShow,
			},
			{
				Name:      "validate",
				Usage:     "Validate a configuration file",
				ArgsUsage: "[FILE]",
				Action:    configValidate,
			},
		},
	}
}

// ValidateResult reports a successful validation.
type ValidateResult struct {
	File  string `json:"file"`
	Valid bool   `json:"valid"`
}

func configShow(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	return rt.Print(config.Sanitize(rt.Config))
}

// configValidate checks FILE, or the file given by --config. The global
// configuration has already been verified by the time this runs.
func configValidate(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	file := c.Args().First()
	if file == "" {
		file = rt.Flags.Config
	}
	if file != "" && file != rt.Flags.Config {
		if _, err := config.Load(file, rt.Flags.overrides()); err != nil {
			return err
		}
	}
	if file == "" {
		file = "(defaults)"
	}
	return rt.Print(ValidateResult{File: file, Valid: true})
}
