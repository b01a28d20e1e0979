package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/notargets/meshdecomp/faces"
	"github.com/notargets/meshdecomp/meshfile"
)

func newSkinCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skin MESHFILE",
		Short: "Classify the faces of an unstructured mesh",
		Long: `skin reads an unstructured mesh (Gambit .neu or gmsh .msh), builds the
unique faces of every element block and reports how many are interior and
how many lie on the boundary, per block and for the whole mesh.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSkin(cmd, v, args[0])
		},
	}
	cmd.Flags().IntP("workers", "w", 0, "blocks processed concurrently (0 = one per CPU)")
	cmd.Flags().Bool("sideset", false, "list the boundary faces of the whole mesh as element/side pairs")
	bindFlags(v, cmd.Flags(), map[string]string{"faces.workers": "workers"})
	return cmd
}

func runSkin(cmd *cobra.Command, v *viper.Viper, path string) error {
	cfg, logger, err := loadConfig(cmd, v)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	model, err := meshfile.Read(path)
	if err != nil {
		return err
	}
	logger.Info("read mesh",
		zap.String("path", path),
		zap.Int("nodes", model.NumNodes),
		zap.Int("elements", model.NumElements()),
		zap.Int("blocks", len(model.Blocks)))

	gen := faces.NewGenerator(faces.WithLogger(logger), faces.WithWorkers(cfg.Faces.Workers))
	perBlock, err := gen.Generate(cmd.Context(), model.Blocks)
	if err != nil {
		return err
	}
	whole, err := gen.GenerateModel("mesh", model.Blocks)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := writeSkin(out, model, perBlock, whole); err != nil {
		return err
	}
	if sideset, _ := cmd.Flags().GetBool("sideset"); sideset {
		return writeSideSet(out, whole.SideSet("boundary"))
	}
	return nil
}

func writeSkin(w io.Writer, model *meshfile.Model, perBlock []*faces.BlockFaces, whole *faces.BlockFaces) error {
	if _, err := fmt.Fprintf(w, "%-16s %10s %10s %10s\n", "block", "elements", "interior", "boundary"); err != nil {
		return err
	}
	for i, bf := range perBlock {
		if _, err := fmt.Fprintf(w, "%-16s %10d %10d %10d\n",
			bf.Name, model.Blocks[i].NumElements, bf.Interior, len(bf.Boundary)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%-16s %10d %10d %10d\n",
		whole.Name, model.NumElements(), whole.Interior, len(whole.Boundary))
	return err
}

func writeSideSet(w io.Writer, ss faces.SideSet) error {
	if _, err := fmt.Fprintf(w, "\nsideset %s: %d faces\n", ss.Name, len(ss.Elements)); err != nil {
		return err
	}
	for i := range ss.Elements {
		if _, err := fmt.Fprintf(w, "%10d %4d\n", ss.Elements[i], ss.Sides[i]); err != nil {
			return err
		}
	}
	return nil
}
