package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/0xPolygon/ctc/config"
	"github.com/urfave/cli/v2"
)

// configCmd prints the default configuration template or, when config files are
// given, the fully rendered configuration the node would run with
func configCmd(cliCtx *cli.Context) error {
	if len(cliCtx.StringSlice(config.FlagCfg)) > 0 {
		cfg, err := config.Load(cliCtx)
		if err != nil {
			return err
		}
		rendered, err := config.SaveConfigToString(*cfg)
		if err != nil {
			return fmt.Errorf("error rendering configuration: %w", err)
		}
		_, err = os.Stdout.WriteString(rendered)
		return err
	}

	var defaultConfig strings.Builder
	defaultConfig.WriteString(config.DefaultMandatoryVars)
	if !cliCtx.Bool(config.FlagMinConfig) {
		defaultConfig.WriteString(config.DefaultVars)
		defaultConfig.WriteString(config.DefaultValues)
	}
	_, err := os.Stdout.WriteString(defaultConfig.String())
	return err
}
