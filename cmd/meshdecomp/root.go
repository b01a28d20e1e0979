package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/notargets/meshdecomp/config"
)

func newRootCmd() *cobra.Command {
	v := config.New()
	root := &cobra.Command{
		Use:   "meshdecomp",
		Short: "Decompose structured and unstructured meshes for parallel runs",
		Long: `meshdecomp splits structured zones across processors while keeping their
zone-to-zone connectivity consistent, and classifies the faces of
unstructured element blocks into boundary and interior sets.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "config file (YAML, TOML or JSON)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().Bool("log-development", false, "human readable development logging")
	bindFlags(v, root.PersistentFlags(), map[string]string{
		"logging.level":       "log-level",
		"logging.development": "log-development",
	})

	root.AddCommand(newDecomposeCmd(v), newSkinCmd(v))
	return root
}

// loadConfig reads the --config file into v and builds the logger
func loadConfig(cmd *cobra.Command, v *viper.Viper) (*config.Config, *zap.Logger, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(v, path)
	if err != nil {
		return nil, nil, err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// bindFlags binds each viper key to the named flag of fs. A missing flag is a
// programming error.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding %s to --%s: %v", key, name, err))
		}
	}
}
