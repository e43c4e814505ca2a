package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/pandu-maps/pandu/pkg/contractor"
	"github.com/pandu-maps/pandu/pkg/datastructure"
	"github.com/pandu-maps/pandu/pkg/hublabel"
	"github.com/pandu-maps/pandu/pkg/kv"
	"github.com/pandu-maps/pandu/pkg/landmark"
	"github.com/pandu-maps/pandu/pkg/osmparser"
	"github.com/pandu-maps/pandu/pkg/partition"
	"github.com/sirupsen/logrus"
)

var (
	mapFile       = flag.String("f", "solo_jogja.osm.pbf", "openstreetmap extract to parse")
	graphSnapshot = flag.String("graph", "", "reuse a saved graph snapshot instead of parsing osm")
	outDir        = flag.String("out", "pandu_data", "directory for preprocessed artifacts")
	numLandmarks  = flag.Int("landmarks", 16, "number of alt landmarks")
	gridRows      = flag.Int("rows", partition.DefaultRows, "partition grid rows")
	gridCols      = flag.Int("cols", partition.DefaultCols, "partition grid columns")
	skipCH        = flag.Bool("skipch", false, "skip building the contraction hierarchy")
	skipHubLabels = flag.Bool("skiphublabels", false, "skip building hub labels")
	cpuprofile    = flag.String("cpuprofile", "", "write cpu profile to file")
	memprofile    = flag.String("memprofile", "", "write memory profile to this file")
)

func main() {
	flag.Parse()
	if *cpuprofile != "" {
		// ./bin/pandu-preprocessing -cpuprofile=panducpu.prof -memprofile=pandumem.mprof
		f, err := os.Create(*cpuprofile)
		if err != nil {
			logrus.Fatal(err)
		}
		defer f.Close()

		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		logrus.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, err := loadOrParse(ctx)
	if err != nil {
		logrus.Fatal(err)
	}
	recordMemProfile(memprofile, "graph_build")

	if err := g.SaveToFile(filepath.Join(*outDir, "graph.bin")); err != nil {
		logrus.Fatal(err)
	}

	db, err := badger.Open(badger.DefaultOptions(filepath.Join(*outDir, "kv")).WithLogger(nil))
	if err != nil {
		logrus.Fatal(err)
	}
	defer db.Close()

	kvDB := kv.NewKVDB(db)

	// the street index only reads the graph, so it can build alongside
	// the contraction
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := kvDB.BuildH3IndexedEdges(ctx, g); err != nil {
			logrus.Fatalf("building h3 street index: %v", err)
		}
	}()

	if !*skipCH {
		ch := contractor.NewContractedGraph(g)
		if err := ch.Contraction(); err != nil {
			logrus.Fatal(err)
		}
		if err := ch.SaveToFile(filepath.Join(*outDir, "ch.bin")); err != nil {
			logrus.Fatal(err)
		}
		recordMemProfile(memprofile, "contraction")
	}

	lm, err := landmark.BuildLandmarks(g, *numLandmarks)
	if err != nil {
		logrus.Fatal(err)
	}
	if err := lm.SaveToFile(filepath.Join(*outDir, "landmarks.bin")); err != nil {
		logrus.Fatal(err)
	}

	part, err := partition.BuildPartition(g, *gridRows, *gridCols)
	if err != nil {
		logrus.Fatal(err)
	}
	if err := part.SaveToFile(filepath.Join(*outDir, "partition.bin")); err != nil {
		logrus.Fatal(err)
	}

	if !*skipHubLabels {
		hl, err := hublabel.BuildHubLabels(g, hublabel.DegreeImportanceOrder(g))
		if err != nil {
			logrus.Fatal(err)
		}
		store, err := hublabel.OpenLabelStore(filepath.Join(*outDir, "hublabels"))
		if err != nil {
			logrus.Fatal(err)
		}
		if err := store.PutLabels(hl); err != nil {
			logrus.Fatal(err)
		}
		if err := store.Close(); err != nil {
			logrus.Fatal(err)
		}
		recordMemProfile(memprofile, "hub_labels")
	}

	wg.Wait()
	recordMemProfile(memprofile, "finish_preprocessing")

	logrus.Infof("preprocessing done, artifacts written to %s", *outDir)
}

func loadOrParse(ctx context.Context) (*datastructure.Graph, error) {
	if *graphSnapshot != "" {
		logrus.Infof("loading graph snapshot %s", *graphSnapshot)
		return datastructure.LoadGraphFromFile(*graphSnapshot)
	}
	logrus.Infof("parsing osm extract %s", *mapFile)
	return osmparser.NewParser().ParseFile(ctx, *mapFile)
}

func recordMemProfile(memprofile *string, name string) {
	if *memprofile != "" {
		*memprofile = strings.Replace(*memprofile, ".mprof", fmt.Sprintf("%s.mprof", name), -1)
		f, err := os.Create(*memprofile)
		if err != nil {
			logrus.Fatal(err)
		}
		pprof.WriteHeapProfile(f)
		f.Close()
	}
}
