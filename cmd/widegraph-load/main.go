package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dd0wney/widegraph/pkg/badgerstore"
	"github.com/dd0wney/widegraph/pkg/bulkload"
	"github.com/dd0wney/widegraph/pkg/feed"
	"github.com/dd0wney/widegraph/pkg/graph"
	"github.com/dd0wney/widegraph/pkg/logging"
	"github.com/dd0wney/widegraph/pkg/memstore"
	"github.com/dd0wney/widegraph/pkg/parallel"
	"github.com/dd0wney/widegraph/pkg/pgstore"
	"github.com/dd0wney/widegraph/pkg/table"
	"github.com/dd0wney/widegraph/pkg/validation"
)

// NDJSON input schema
// Vertices: {"id": "v1", "label": "person", "properties": {"name": "alice"}}
// Edges:    {"out": "v1", "in": "v2", "label": "knows", "properties": {"weight": 5}}

func main() {
	verticesFile := flag.String("vertices", "", "Path to vertices.ndjson")
	edgesFile := flag.String("edges", "", "Path to edges.ndjson")
	storeKind := flag.String("store", "badger", "Backend: memory, badger, postgres")
	dataDir := flag.String("data", "./data/widegraph", "Data directory")
	dsn := flag.String("dsn", "", "Postgres connection string for --store postgres")
	refsFile := flag.String("refs", "vertex_refs.csv", "Vertex reference mapping for a separate edge pass")
	batchSize := flag.Int("batch", 10000, "Lines per progress batch")
	workers := flag.Int("workers", 8, "Concurrent load workers per phase")
	skipWAL := flag.Bool("skip-wal", true, "Skip write-ahead durability for the load")
	indexSpecs := flag.String("index", "", "Comma-separated index specs, e.g. vertex/person/name,edge/knows/weight")
	feedAddr := flag.String("feed", "", "Publish flushed batches to this feed address")
	profilePath := flag.String("profile", "", "YAML load profile; explicit flags override its values")
	flag.Parse()

	log := logging.DefaultLogger().With(logging.Component("widegraph-load"))

	if *profilePath != "" {
		p, err := loadProfile(*profilePath)
		if err != nil {
			log.Error("failed to load profile", logging.String("file", *profilePath), logging.Error(err))
			os.Exit(1)
		}
		p.apply()
	}

	if *verticesFile == "" && *edgesFile == "" {
		fmt.Println("Usage: widegraph-load --vertices vertices.ndjson [--edges edges.ndjson]")
		fmt.Println()
		fmt.Println("Vertices load first; edges resolve their endpoints against the")
		fmt.Println("vertex reference mapping, so an edges-only run needs the --refs")
		fmt.Println("file a previous vertex run wrote.")
		os.Exit(1)
	}

	registry, err := parseIndexSpecs(*indexSpecs)
	if err != nil {
		log.Error("invalid index spec", logging.Error(err))
		os.Exit(1)
	}

	conn, closeStore, err := openStore(*storeKind, *dataDir, *dsn, log)
	if err != nil {
		log.Error("failed to open store", logging.String("store", *storeKind), logging.Error(err))
		os.Exit(1)
	}
	defer closeStore()

	cfg := bulkload.Config{
		SkipWAL: *skipWAL,
		Logger:  log,
	}
	if *feedAddr != "" {
		pub, err := feed.NewPublisher(feed.Config{Addr: *feedAddr, Logger: log})
		if err != nil {
			log.Error("failed to start feed publisher", logging.String("addr", *feedAddr), logging.Error(err))
			os.Exit(1)
		}
		defer pub.Close()
		cfg.OnFlush = pub.Hook()
	}

	loader, err := bulkload.NewLoader(conn, registry, cfg)
	if err != nil {
		log.Error("failed to create loader", logging.Error(err))
		os.Exit(1)
	}

	refs := make(map[string]graph.VertexRef)

	if *verticesFile != "" {
		log.Info("importing vertices",
			logging.String("file", *verticesFile),
			logging.Int("batch_size", *batchSize),
			logging.Int("workers", *workers))
		count, skipped, elapsed := importVertices(loader, *verticesFile, *batchSize, *workers, refs, log)
		log.Info("vertices imported",
			logging.Int("count", count),
			logging.Int("skipped", skipped),
			logging.Duration("elapsed", elapsed),
			logging.Int("vertices_per_sec", perSecond(count, elapsed)))
		saveRefs(*refsFile, refs, log)
	}

	if *edgesFile != "" {
		if len(refs) == 0 {
			refs = loadRefs(*refsFile, log)
		}
		if len(refs) == 0 {
			log.Error("no vertex reference mapping found, import vertices first")
			os.Exit(1)
		}
		log.Info("importing edges",
			logging.String("file", *edgesFile),
			logging.Int("batch_size", *batchSize),
			logging.Int("workers", *workers))
		count, skipped, elapsed := importEdges(loader, *edgesFile, *batchSize, *workers, refs, log)
		log.Info("edges imported",
			logging.Int("count", count),
			logging.Int("skipped", skipped),
			logging.Duration("elapsed", elapsed),
			logging.Int("edges_per_sec", perSecond(count, elapsed)))
	}

	if err := loader.Close(); err != nil {
		log.Error("loader close failed", logging.Error(err))
		os.Exit(1)
	}

	stats := loader.Stats()
	for _, ts := range stats.Tables() {
		log.Info("table totals",
			logging.Table(ts.Table),
			logging.Uint64("submitted", ts.Submitted),
			logging.Uint64("flushed", ts.Flushed))
	}
	log.Info("import complete", logging.Uint64("mutations_flushed", stats.Flushed()))
}

func openStore(kind, dataDir, dsn string, log logging.Logger) (table.Conn, func(), error) {
	switch kind {
	case "memory":
		store, err := memstore.Open(memstore.Config{Dir: dataDir, Logger: log})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case "badger":
		store, err := badgerstore.Open(badgerstore.Config{Dir: dataDir, Logger: log})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case "postgres":
		if dsn == "" {
			return nil, nil, fmt.Errorf("--store postgres requires --dsn")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store, err := pgstore.Open(ctx, pgstore.Config{DSN: dsn, Logger: log})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q (want memory, badger, or postgres)", kind)
	}
}

// parseIndexSpecs turns "vertex/person/name,edge/knows/weight" into a registry.
func parseIndexSpecs(specs string) (*graph.IndexRegistry, error) {
	registry := graph.NewIndexRegistry()
	if specs == "" {
		return registry, nil
	}
	for _, spec := range strings.Split(specs, ",") {
		parts := strings.Split(strings.TrimSpace(spec), "/")
		if len(parts) != 3 {
			return nil, fmt.Errorf("index spec %q: want element/label/property", spec)
		}
		var et graph.ElementType
		switch parts[0] {
		case "vertex":
			et = graph.VertexType
		case "edge":
			et = graph.EdgeType
		default:
			return nil, fmt.Errorf("index spec %q: unknown element %q", spec, parts[0])
		}
		err := registry.Register(graph.IndexDescriptor{
			Element:  et,
			Label:    parts[1],
			Property: parts[2],
			Scope:    graph.WriteScope,
		})
		if err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func importVertices(loader *bulkload.Loader, filename string, batchSize, workers int, refs map[string]graph.VertexRef, log logging.Logger) (int, int, time.Duration) {
	start := time.Now()

	file, err := os.Open(filename)
	if err != nil {
		log.Error("failed to open vertices file", logging.Error(err))
		os.Exit(1)
	}
	defer file.Close()

	var (
		mu      sync.Mutex
		count   int
		skipped int
	)
	skip := func() {
		mu.Lock()
		skipped++
		mu.Unlock()
	}

	pool := parallel.NewWorkerPool(workers, log)
	scanner := newLineScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		pool.Submit(func() {
			var req validation.VertexRequest
			if err := json.Unmarshal([]byte(line), &req); err != nil {
				log.Warn("skipping malformed vertex line", logging.Error(err))
				skip()
				return
			}
			if err := validation.ValidateVertexRequest(&req); err != nil {
				log.Warn("skipping invalid vertex", logging.Error(err))
				skip()
				return
			}

			props, err := toValues(req.Properties)
			if err != nil {
				log.Warn("skipping vertex with bad property", logging.Error(err))
				skip()
				return
			}

			var v *graph.Vertex
			if req.ID != "" {
				v, err = loader.AddVertexWithID(graph.ID(req.ID), req.Label, props)
			} else {
				v, err = loader.AddVertex(req.Label, props)
			}
			if err != nil {
				log.Error("failed to load vertex", logging.Error(err), logging.String("id", req.ID))
				skip()
				return
			}

			mu.Lock()
			if req.ID != "" {
				refs[req.ID] = v.Ref()
			}
			count++
			n, s := count, skipped
			mu.Unlock()
			if n%batchSize == 0 {
				log.Info("progress", logging.Int("vertices_imported", n), logging.Int("skipped", s))
			}
		})
	}
	pool.Close()

	if err := scanner.Err(); err != nil {
		log.Error("failed reading vertices file", logging.Error(err))
		os.Exit(1)
	}

	return count, skipped, time.Since(start)
}

func importEdges(loader *bulkload.Loader, filename string, batchSize, workers int, refs map[string]graph.VertexRef, log logging.Logger) (int, int, time.Duration) {
	start := time.Now()

	file, err := os.Open(filename)
	if err != nil {
		log.Error("failed to open edges file", logging.Error(err))
		os.Exit(1)
	}
	defer file.Close()

	var (
		mu      sync.Mutex
		count   int
		skipped int
	)
	skip := func() {
		mu.Lock()
		skipped++
		mu.Unlock()
	}

	pool := parallel.NewWorkerPool(workers, log)
	scanner := newLineScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		pool.Submit(func() {
			var req validation.EdgeRequest
			if err := json.Unmarshal([]byte(line), &req); err != nil {
				log.Warn("skipping malformed edge line", logging.Error(err))
				skip()
				return
			}
			if err := validation.ValidateEdgeRequest(&req); err != nil {
				log.Warn("skipping invalid edge", logging.Error(err))
				skip()
				return
			}

			// refs is not written during the edge phase, so reads need no lock.
			out, ok1 := refs[req.Out]
			in, ok2 := refs[req.In]
			if !ok1 || !ok2 {
				skip()
				return
			}

			props, err := toValues(req.Properties)
			if err != nil {
				log.Warn("skipping edge with bad property", logging.Error(err))
				skip()
				return
			}

			if _, err := loader.AddEdge(out, in, req.Label, props); err != nil {
				log.Error("failed to load edge", logging.Error(err),
					logging.String("out", req.Out), logging.String("in", req.In))
				skip()
				return
			}

			mu.Lock()
			count++
			n, s := count, skipped
			mu.Unlock()
			if n%batchSize == 0 {
				log.Info("progress", logging.Int("edges_imported", n), logging.Int("skipped", s))
			}
		})
	}
	pool.Close()

	if err := scanner.Err(); err != nil {
		log.Error("failed reading edges file", logging.Error(err))
		os.Exit(1)
	}

	return count, skipped, time.Since(start)
}

// toValues converts JSON-decoded properties to typed values. Whole-number
// floats become integers, since JSON has no integer type of its own.
func toValues(props map[string]any) (map[string]graph.Value, error) {
	if len(props) == 0 {
		return nil, nil
	}
	out := make(map[string]graph.Value, len(props))
	for key, raw := range props {
		switch v := raw.(type) {
		case nil:
			continue
		case string:
			out[key] = graph.StringValue(v)
		case bool:
			out[key] = graph.BoolValue(v)
		case float64:
			if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
				out[key] = graph.IntValue(int64(v))
			} else {
				out[key] = graph.FloatValue(v)
			}
		default:
			return nil, fmt.Errorf("property %q: unsupported type %T", key, raw)
		}
	}
	return out, nil
}

func newLineScanner(file *os.File) *bufio.Scanner {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return scanner
}

func perSecond(count int, elapsed time.Duration) int {
	if elapsed <= 0 {
		return 0
	}
	return int(float64(count) / elapsed.Seconds())
}

func saveRefs(path string, refs map[string]graph.VertexRef, log logging.Logger) {
	file, err := os.Create(path)
	if err != nil {
		log.Error("failed to save vertex reference mapping", logging.Error(err))
		return
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write([]string{"id", "label"})
	for id, ref := range refs {
		writer.Write([]string{id, ref.Label})
	}

	log.Info("saved vertex reference mapping", logging.String("file", path), logging.Count(len(refs)))
}

func loadRefs(path string, log logging.Logger) map[string]graph.VertexRef {
	refs := make(map[string]graph.VertexRef)

	file, err := os.Open(path)
	if err != nil {
		log.Warn("could not load vertex reference mapping", logging.Error(err))
		return refs
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Read() // Skip header

	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		if len(record) == 2 {
			refs[record[0]] = graph.VertexRef{ID: graph.ID(record[0]), Label: record[1]}
		}
	}

	log.Info("loaded vertex reference mapping", logging.String("file", path), logging.Count(len(refs)))
	return refs
}
