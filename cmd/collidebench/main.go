// Command collidebench compares grid and brute force candidate generation
// over random scenes of growing size.
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/gekko3d/collide"
	"github.com/go-gl/mathgl/mgl32"
)

func main() {
	var (
		configPath = flag.String("config", "", "JSON or YAML engine config")
		cellSize   = flag.Float64("cell", 2, "grid cell size (overrides config when set explicitly)")
		spacing    = flag.Float64("spacing", 8, "average distance between bodies")
		frames     = flag.Int("frames", 10, "frames per measurement")
		seed       = flag.Int64("seed", 42, "random seed")
		recordPath = flag.String("record", "", "write msgpack debug frames of the largest run to this file")
		debug      = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	logger := collide.NewDefaultLogger("collidebench", *debug)

	cfg := collide.DefaultConfig()
	if *configPath != "" {
		loaded, err := collide.LoadConfig(*configPath)
		if err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "cell" {
			cfg.CellSize = float32(*cellSize)
		}
	})
	// Every frame rebuilds so both modes pay for their full search.
	cfg.RebuildInterval = 0

	counts := []int{100, 250, 500, 1000, 2000}
	for i, count := range counts {
		var rec *collide.DebugRecorder
		if *recordPath != "" && i == len(counts)-1 {
			f, err := os.Create(*recordPath)
			if err != nil {
				logger.Errorf("create %s: %v", *recordPath, err)
				os.Exit(1)
			}
			rec = collide.NewDebugRecorder(f, false)
		}
		run(logger.Named("engine"), cfg, count, float32(*spacing), *frames, *seed, rec)
	}
}

func run(logger collide.Logger, cfg collide.Config, count int, spacing float32, frames int, seed int64, rec *collide.DebugRecorder) {
	world := collide.NewWorld()
	rng := rand.New(rand.NewSource(seed))

	// Keep density constant as the population grows.
	side := spacing * float32(math.Cbrt(float64(count)))
	for i := 0; i < count; i++ {
		pos := mgl32.Vec3{
			rng.Float32()*side - side/2,
			rng.Float32()*side - side/2,
			rng.Float32()*side - side/2,
		}
		shape := collide.Cube(0.5 + rng.Float32()*0.5)
		if i%3 == 0 {
			shape = collide.Sphere(0.25 + rng.Float32()*0.25)
		}
		world.AddBody(collide.Body{Position: pos, Shape: shape})
	}

	measure := func(partitioned bool, rec *collide.DebugRecorder) (time.Duration, collide.FrameStats) {
		opts := []collide.Option{collide.WithLogger(logger)}
		if rec != nil {
			opts = append(opts, collide.WithDebugRecorder(rec))
		}
		c := cfg
		c.UseSpatialPartitioning = partitioned
		engine := collide.NewEngine(world, nil, c, opts...)
		defer engine.Dispose()

		engine.Update(0) // warm up
		start := time.Now()
		for f := 0; f < frames; f++ {
			engine.Update(16 * time.Millisecond)
		}
		return time.Since(start) / time.Duration(frames), engine.Stats()
	}

	gridTime, grid := measure(true, rec)
	bruteTime, brute := measure(false, nil)

	fmt.Printf("%5d bodies: grid %9v (%6d cmp, %5d pairs, %4d hits) | brute %10v (%8d cmp, %4d hits) | %.1fx\n",
		count,
		gridTime.Round(time.Microsecond), grid.Comparisons, grid.CandidatePairs, grid.Confirmed,
		bruteTime.Round(time.Microsecond), brute.Comparisons, brute.Confirmed,
		float64(bruteTime)/float64(gridTime))
}
