package main

import (
	"math/rand"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ImVexed/kdtree"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// This program builds a tree of random boxes and times the phases of its life:
// lazy construction, front to back traversal of the unoptimized tree, a full
// rebuild through Flatten, and traversal of the rebuilt tree.

type benchConfig struct {
	Objects    int           `toml:"objects"`
	Iterations int           `toml:"iterations"`
	Seed       int64         `toml:"seed"`
	Image      string        `toml:"image"`
	Tree       kdtree.Config `toml:"tree"`
}

type report struct {
	Build       time.Duration     `json:"build_ns"`
	Unoptimized time.Duration     `json:"unoptimized_front_to_back_ns"`
	Rebuild     time.Duration     `json:"flatten_full_distribute_ns"`
	Optimized   time.Duration     `json:"optimized_front_to_back_ns"`
	Before      kdtree.Statistics `json:"before"`
	After       kdtree.Statistics `json:"after"`
}

func main() {
	cfg := benchConfig{
		Objects:    500,
		Iterations: 100,
		Seed:       12345678,
		Tree:       kdtree.DefaultConfig(),
	}
	var configPath string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "kdbench",
		Short: "Benchmark the dynamic kd-tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
			if configPath != "" {
				if err := loadConfig(cmd, configPath, &cfg); err != nil {
					return err
				}
			}
			return run(cmd, cfg)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "TOML config file, flags given explicitly win")
	flags.IntVarP(&cfg.Objects, "objects", "n", cfg.Objects, "objects per tree")
	flags.IntVarP(&cfg.Iterations, "iterations", "i", cfg.Iterations, "iterations per phase")
	flags.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	flags.StringVar(&cfg.Image, "image", "", "write a BMP of the final tree to this path")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.SetOut(os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("benchmark failed")
	}
}

func loadConfig(cmd *cobra.Command, path string, cfg *benchConfig) error {
	var file benchConfig
	file.Tree = cfg.Tree
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return errors.Wrapf(err, "load config %s", path)
	}

	flags := cmd.Flags()
	if !flags.Changed("objects") && file.Objects > 0 {
		cfg.Objects = file.Objects
	}
	if !flags.Changed("iterations") && file.Iterations > 0 {
		cfg.Iterations = file.Iterations
	}
	if !flags.Changed("seed") && file.Seed != 0 {
		cfg.Seed = file.Seed
	}
	if !flags.Changed("image") && file.Image != "" {
		cfg.Image = file.Image
	}
	cfg.Tree = file.Tree
	return nil
}

func rnd(r *rand.Rand, span float64) float64 {
	return float64(r.Intn(1000)) * span / 1000
}

func randomBox(r *rand.Rand) kdtree.BoundingBox {
	x, y, z := rnd(r, 100)-50, rnd(r, 100)-50, rnd(r, 100)-50
	return kdtree.Box(x, y, z, x+rnd(r, 7)+.5, y+rnd(r, 7)+.5, z+rnd(r, 7)+.5)
}

func touch(n *kdtree.Node[kdtree.BoundingBox], ts uint32) bool {
	n.Distribute()
	n.VisitObjects(ts, func(*kdtree.Object[kdtree.BoundingBox]) bool { return true })
	return true
}

func run(cmd *cobra.Command, cfg benchConfig) error {
	if cfg.Objects < 1 || cfg.Iterations < 1 {
		return errors.Errorf("objects (%d) and iterations (%d) must be positive", cfg.Objects, cfg.Iterations)
	}

	r := rand.New(rand.NewSource(cfg.Seed))
	tree := kdtree.NewTree[kdtree.BoundingBox](kdtree.WithConfig(cfg.Tree))
	var rep report

	start := time.Now()
	for i := 0; i < cfg.Iterations; i++ {
		tree.Clear()
		for j := 0; j < cfg.Objects; j++ {
			tree.Insert(randomBox(r), j)
			if j%20 == 0 {
				tree.FullDistribute()
			}
		}
	}
	rep.Build = time.Since(start)

	start = time.Now()
	for i := 0; i < cfg.Iterations; i++ {
		tree.TraverseFrontToBack(kdtree.Vec3{}, touch)
	}
	rep.Unoptimized = time.Since(start)
	rep.Before = tree.Statistics()

	start = time.Now()
	for i := 0; i < cfg.Iterations; i++ {
		tree.Flatten()
		tree.FullDistribute()
	}
	rep.Rebuild = time.Since(start)

	start = time.Now()
	for i := 0; i < cfg.Iterations; i++ {
		tree.TraverseFrontToBack(kdtree.Vec3{}, touch)
	}
	rep.Optimized = time.Since(start)
	rep.After = tree.Statistics()

	if err := tree.CheckInvariants(); err != nil {
		return errors.Wrap(err, "tree corrupted during benchmark")
	}

	log.WithField("before", rep.Before.String()).
		WithField("after", rep.After.String()).
		Info("benchmark done")

	if cfg.Image != "" {
		if err := tree.Image(cfg.Image); err != nil {
			return err
		}
	}

	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode report")
	}
	cmd.Println(string(out))
	return nil
}
