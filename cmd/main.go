package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stuarthighley/dam"
	"github.com/stuarthighley/dam/wad"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "damload",
	Short: "Load Doom format maps from WAD and PK3 files",
	Long: `damload reads the levels of a WAD or PK3 archive the way a game would:
it detects the map and GL node formats, decodes every record, cross-references
lines, sides, sectors and segs, and builds a blockmap and reject matrix where
the archive lacks usable ones.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log := logrus.New()
		log.SetOutput(os.Stderr)
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			log.SetLevel(logrus.DebugLevel)
		}
		dam.SetLogger(log)
		wad.SetLogger(log)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log every loading step")
	rootCmd.AddCommand(mapsCmd)
	rootCmd.AddCommand(loadCmd)
}

var mapsCmd = &cobra.Command{
	Use:   "maps <file>",
	Short: "List the levels in an archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := wad.Open(args[0])
		if err != nil {
			return err
		}
		defer w.Close()
		for _, name := range w.LevelNames() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var loadCmd = &cobra.Command{
	Use:   "load <file> <map>",
	Short: "Load a level and report what was found",
	Args:  cobra.ExactArgs(2),
	RunE:  runLoad,
}

func init() {
	loadCmd.Flags().String("config", "", "YAML loader config file")
	loadCmd.Flags().Bool("force-blockmap", false, "Always build the blockmap")
	loadCmd.Flags().Bool("force-reject", false, "Always synthesize the reject matrix")
	loadCmd.Flags().Bool("no-regen", false, "Never build a blockmap or reject matrix unless forced")
	loadCmd.Flags().Bool("tree", false, "Print the BSP tree")
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	w, err := wad.Open(args[0])
	if err != nil {
		return err
	}
	defer w.Close()

	names, err := wad.LoadTextureNames(w)
	if err != nil {
		return errors.Wrap(err, "load texture names")
	}

	loader := dam.NewLoader(w, names, cfg, dam.Hooks{})
	m, err := loader.Load(args[1])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, m)
	if m.BuildInfo != nil {
		fmt.Fprintf(out, "GL nodes built by %s at %s\n", m.BuildInfo.Builder, m.BuildInfo.Time)
	}
	if b := m.Blockmap; b != nil {
		fmt.Fprintf(out, "Blockmap: %dx%d cells at (%d, %d), generated %v\n", b.Columns, b.Rows, b.OriginX.Int(), b.OriginY.Int(), b.Generated)
	} else {
		fmt.Fprintln(out, "Blockmap: none")
	}
	if r := m.Reject; r != nil {
		fmt.Fprintf(out, "Reject: %d sectors, %d bytes, generated %v\n", r.NumSectors, len(r.Data), r.Generated)
	} else {
		fmt.Fprintln(out, "Reject: none")
	}
	if m.MissingFronts > 0 {
		fmt.Fprintf(out, "Lines without a front side: %d\n", m.MissingFronts)
	}
	for _, d := range m.Defects {
		fmt.Fprintln(out, "Defect:", d)
	}

	if tree, _ := cmd.Flags().GetBool("tree"); tree {
		dam.PrintTree(out, m)
	}
	return nil
}

// loadConfig reads the config file, if any, and applies the flags over it.
func loadConfig(cmd *cobra.Command) (dam.Config, error) {
	cfg := dam.DefaultConfig()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		if cfg, err = dam.LoadConfig(path); err != nil {
			return cfg, err
		}
	}
	if noRegen, _ := cmd.Flags().GetBool("no-regen"); noRegen {
		cfg.AllowBlockmapRegeneration = false
		cfg.AllowRejectRegeneration = false
	}
	if force, _ := cmd.Flags().GetBool("force-blockmap"); force {
		cfg.ForceBlockmapRegeneration = true
	}
	if force, _ := cmd.Flags().GetBool("force-reject"); force {
		cfg.ForceRejectRegeneration = true
	}
	return cfg, nil
}
