// bench-identity measures parse, identity derivation, and root-path
// extraction cost over a source tree, with heap measurements at phase
// boundaries.
//
// Usage:
//
//	go run ./scripts/bench-identity --dir ~/sources/guava --language java \
//	  --profile-dir docs/profiles/identity
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/aladics/code-change-repr/pkg/cst"
	"github.com/aladics/code-change-repr/pkg/node"
)

type sourceFile struct {
	path     string
	language string
	content  []byte
}

func main() {
	dir := flag.String("dir", "", "Source tree to scan")
	language := flag.String("language", "", "Force one language instead of guessing per file")
	maxRootPaths := flag.Int("max-root-paths", 0, "Root-path cap per tree (0 = library default)")
	profileDir := flag.String("profile-dir", "", "Directory to write pprof profiles (empty = none)")
	cpuProfile := flag.Bool("cpu-profile", false, "Write CPU profile to profile-dir/cpu.prof")

	flag.Parse()

	if *dir == "" {
		log.Fatal("--dir is required")
	}

	if *profileDir != "" {
		if err := os.MkdirAll(*profileDir, 0o755); err != nil {
			log.Fatalf("mkdir profile-dir: %v", err)
		}
	}

	if *cpuProfile {
		if *profileDir == "" {
			log.Fatal("--cpu-profile requires --profile-dir")
		}

		cpuPath := filepath.Join(*profileDir, "cpu.prof")

		cpuFile, cpuErr := os.Create(cpuPath)
		if cpuErr != nil {
			log.Fatalf("create cpu profile: %v", cpuErr)
		}
		defer cpuFile.Close()

		if startErr := pprof.StartCPUProfile(cpuFile); startErr != nil {
			log.Fatalf("start cpu profile: %v", startErr)
		}

		defer pprof.StopCPUProfile()

		log.Printf("CPU profiling enabled -> %s", cpuPath)
	}

	type heapSnapshot struct {
		label     string
		heapInUse uint64
		heapSys   uint64
		heapIdle  uint64
	}

	var snapshots []heapSnapshot

	takeSnapshot := func(label string) {
		runtime.GC()
		runtime.GC()

		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		snapshots = append(snapshots, heapSnapshot{
			label:     label,
			heapInUse: m.HeapInuse,
			heapSys:   m.HeapSys,
			heapIdle:  m.HeapIdle,
		})
		log.Printf("  [heap] %-20s inuse=%6.1f MB  sys=%6.1f MB  idle=%6.1f MB",
			label, float64(m.HeapInuse)/1e6, float64(m.HeapSys)/1e6, float64(m.HeapIdle)/1e6)
	}

	writeHeapProfile := func(name string) {
		if *profileDir == "" {
			return
		}

		runtime.GC()
		runtime.GC()

		path := filepath.Join(*profileDir, name)

		f, ferr := os.Create(path)
		if ferr != nil {
			log.Printf("warning: create heap profile %s: %v", path, ferr)

			return
		}
		defer f.Close()

		if perr := pprof.WriteHeapProfile(f); perr != nil {
			log.Printf("warning: write heap profile %s: %v", path, perr)
		}
	}

	takeSnapshot("start")

	// Scan phase: read every supported source file under --dir.
	scanStart := time.Now()
	files := loadSources(*dir, *language)
	scanTime := time.Since(scanStart)

	var totalBytes int
	for _, f := range files {
		totalBytes += len(f.content)
	}

	log.Printf("loaded %d files (%.1f MB)", len(files), float64(totalBytes)/1e6)
	takeSnapshot("after_scan")

	// Parse phase: build every tree, one parser per language.
	parsers := make(map[string]*cst.Parser)
	trees := make([]*cst.Tree, 0, len(files))
	ctx := context.Background()

	parseStart := time.Now()

	for _, f := range files {
		parser := parsers[f.language]
		if parser == nil {
			var err error

			parser, err = cst.NewParser(f.language)
			if err != nil {
				log.Fatalf("parser for %s: %v", f.language, err)
			}

			parsers[f.language] = parser
		}

		tree, err := parser.Parse(ctx, f.content)
		if err != nil {
			log.Printf("warning: parse %s: %v", f.path, err)

			continue
		}

		trees = append(trees, tree)
	}

	parseTime := time.Since(parseStart)

	takeSnapshot("after_parse")
	writeHeapProfile("heap_after_parse.prof")

	// Identity phase: derive the structural identity of every node. The
	// first pass over a tree pays the full derivation cost; later lookups
	// hit the per-view cache.
	identityStart := time.Now()

	var nodes int

	for _, tree := range trees {
		for n := range node.Walk(tree.Root()) {
			_ = n.ID()
			nodes++
		}
	}

	identityTime := time.Since(identityStart)

	takeSnapshot("after_identity")
	writeHeapProfile("heap_after_identity.prof")

	// Root-path phase: extract capped root paths from the cached identities.
	pathStart := time.Now()

	var paths int

	for _, tree := range trees {
		paths += len(node.RootPaths(tree.Root(), *maxRootPaths))
	}

	pathTime := time.Since(pathStart)

	takeSnapshot("after_root_paths")
	writeHeapProfile("heap_after_root_paths.prof")

	// Print summary tables.
	fmt.Println()
	fmt.Println("=== Phase Timings ===")
	fmt.Printf("%-20s %12s\n", "Phase", "Duration")

	for _, phase := range []struct {
		name     string
		duration time.Duration
	}{
		{"scan", scanTime},
		{"parse", parseTime},
		{"identity", identityTime},
		{"root_paths", pathTime},
	} {
		fmt.Printf("%-20s %12v\n", phase.name, phase.duration.Round(time.Millisecond))
	}

	fmt.Println()
	fmt.Println("=== Heap Memory Timeline ===")
	fmt.Printf("%-20s %10s %10s %10s\n", "Phase", "InUse(MB)", "Sys(MB)", "Idle(MB)")

	for _, s := range snapshots {
		fmt.Printf("%-20s %10.1f %10.1f %10.1f\n",
			s.label, float64(s.heapInUse)/1e6, float64(s.heapSys)/1e6, float64(s.heapIdle)/1e6)
	}

	fmt.Println()
	fmt.Printf("%d trees, %d nodes, %d root paths\n", len(trees), nodes, paths)
	fmt.Printf("parse %.1f MB/s, identity %.0f nodes/ms\n",
		perSecond(float64(totalBytes)/1e6, parseTime), perSecond(float64(nodes)/1e3, identityTime))
}

// loadSources collects the parseable files under root. With a forced
// language every file qualifies; otherwise files whose language cannot be
// guessed are skipped.
func loadSources(root, forced string) []sourceFile {
	var files []sourceFile

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}

			return nil
		}

		content, rerr := os.ReadFile(path)
		if rerr != nil {
			log.Printf("warning: read %s: %v", path, rerr)

			return nil
		}

		language := forced
		if language == "" {
			language = cst.GuessLanguage(path, content)
		}

		if language == "" {
			return nil
		}

		files = append(files, sourceFile{path: path, language: language, content: content})

		return nil
	})
	if err != nil {
		log.Fatalf("walk %s: %v", root, err)
	}

	return files
}

func perSecond(amount float64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}

	return amount / d.Seconds()
}
