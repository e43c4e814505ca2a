package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime/pprof"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pandu-maps/pandu/pkg/contractor"
	"github.com/pandu-maps/pandu/pkg/datastructure"
	"github.com/pandu-maps/pandu/pkg/kv"
	"github.com/pandu-maps/pandu/pkg/landmark"
	"github.com/pandu-maps/pandu/pkg/matching"
	"github.com/pandu-maps/pandu/pkg/routing"
	"github.com/pandu-maps/pandu/pkg/server/rest"
	"github.com/pandu-maps/pandu/pkg/server/rest/service"
	"github.com/pandu-maps/pandu/pkg/snap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	listenAddr = flag.String("listenaddr", ":5000", "server listen address")
	dataDir    = flag.String("data", "pandu_data", "directory with preprocessed artifacts")
	rateLimit  = flag.Int("ratelimit", 0, "max in-flight requests, 0 disables throttling")
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
	memprofile = flag.String("memprofile", "", "write memory profile to this file")
)

func main() {
	flag.Parse()
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			logrus.Fatal(err)
		}
		defer f.Close()

		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	g, err := datastructure.LoadGraphFromFile(filepath.Join(*dataDir, "graph.bin"))
	if err != nil {
		logrus.Fatalf("loading graph: %v", err)
	}
	g.AttachNearestIndex(snap.BuildRoadSnapper(g))
	recordMemProfile(memprofile, "load_graph")

	var opts []routing.EngineOption

	chPath := filepath.Join(*dataDir, "ch.bin")
	if _, err := os.Stat(chPath); err == nil {
		ch, err := contractor.LoadContractedGraphFromFile(chPath)
		if err != nil {
			logrus.Fatalf("loading contraction hierarchy: %v", err)
		}
		opts = append(opts, routing.WithCH(contractor.NewCHRouter(g, ch)))
	} else {
		logrus.Warn("no contraction hierarchy snapshot, free-flow queries fall back to a*")
	}

	lmPath := filepath.Join(*dataDir, "landmarks.bin")
	if _, err := os.Stat(lmPath); err == nil {
		lm, err := landmark.LoadLandmarksFromFile(lmPath)
		if err != nil {
			logrus.Fatalf("loading landmarks: %v", err)
		}
		opts = append(opts, routing.WithLandmarks(lm))
	}

	kvPath := filepath.Join(*dataDir, "kv")
	_, statErr := os.Stat(kvPath)
	freshKV := errors.Is(statErr, os.ErrNotExist)

	db, err := badger.Open(badger.DefaultOptions(kvPath).WithLogger(nil))
	if err != nil {
		logrus.Fatal(err)
	}
	defer db.Close()

	kvDB := kv.NewKVDB(db)
	if freshKV {
		logrus.Info("street index missing, rebuilding it from the graph")
		if err := kvDB.BuildH3IndexedEdges(context.Background(), g); err != nil {
			logrus.Fatal(err)
		}
	}

	engine := routing.NewEngine(g, opts...)
	matcher := matching.NewMatcher(g, kvDB)
	navigatorSvc := service.NewNavigationService(engine, g, kvDB, matcher)
	recordMemProfile(memprofile, "service_init")

	reg := prometheus.NewRegistry()
	m := rest.NewMetrics(reg)

	r := chi.NewRouter()

	r.Use(middleware.Logger)

	r.Use(rest.PromeHttpMiddleware(m)) // prometheus http middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if *rateLimit > 0 {
		r.Use(middleware.Throttle(*rateLimit))
	}

	r.Mount("/debug", middleware.Profiler())

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	rest.NavigationRouter(r, navigatorSvc, m)

	logrus.Infof("server started at %s", *listenAddr)

	logrus.Fatal(http.ListenAndServe(*listenAddr, r))
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
