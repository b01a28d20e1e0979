package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/notargets/meshdecomp/partitions"
	"github.com/notargets/meshdecomp/utils"
)

func newDecomposeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decompose",
		Short: "Split structured zones across processors",
		Long: `decompose reads zones and their connectivity from the config file, splits
zones until every processor can be given a balanced share of cells, and
prints where every piece went.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDecompose(cmd, v)
		},
	}
	f := cmd.Flags()
	f.IntP("processors", "p", 0, "number of processors")
	f.Float64("load-balance", 0, "allowed fractional overshoot of the average work")
	f.String("line", "", "axes no zone may be split along, e.g. \"k\" or \"ij\"")
	f.BoolP("verbose", "v", false, "log every split")
	f.String("yaml", "", "also write the decomposition as YAML to this file (- for stdout)")
	f.Bool("exchange", false, "print the node exchange volume between processors")
	bindFlags(v, f, map[string]string{
		"processors":         "processors",
		"load_balance":       "load-balance",
		"line_decomposition": "line",
		"verbose":            "verbose",
	})
	return cmd
}

func runDecompose(cmd *cobra.Command, v *viper.Viper) error {
	cfg, logger, err := loadConfig(cmd, v)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	res, err := partitions.Decompose(cfg.Input(),
		partitions.WithLogger(logger),
		partitions.WithVerbose(cfg.Verbose))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := res.WriteReport(out); err != nil {
		return err
	}

	zc, err := utils.NewZoneConnector(res.Arena, res.Processors)
	if err != nil {
		return err
	}
	if err := zc.Verify(); err != nil {
		return fmt.Errorf("exchange indices: %w", err)
	}
	logger.Debug("exchange indices verified", zap.Ints("nodes_per_partition", zc.NodesPerPartition))

	if exchange, _ := cmd.Flags().GetBool("exchange"); exchange {
		if err := writeExchange(out, zc); err != nil {
			return err
		}
	}

	path, _ := cmd.Flags().GetString("yaml")
	switch path {
	case "":
	case "-":
		return res.WriteYAML(out)
	default:
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := res.WriteYAML(f); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		logger.Info("wrote decomposition", zap.String("path", path))
	}
	return nil
}

func writeExchange(w io.Writer, zc *utils.ZoneConnector) error {
	if _, err := fmt.Fprintf(w, "\n%6s %6s %10s\n", "from", "to", "nodes"); err != nil {
		return err
	}
	for p := 0; p < zc.NumPartitions; p++ {
		for q := 0; q < zc.NumPartitions; q++ {
			if p == q || zc.Volume(p, q) == 0 {
				continue
			}
			if _, err := fmt.Fprintf(w, "%6d %6d %10d\n", p, q, zc.Volume(p, q)); err != nil {
				return err
			}
		}
	}
	return nil
}
