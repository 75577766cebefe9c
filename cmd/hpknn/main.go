// Command hpknn runs the distributed k-NN hyperparameter search: it loads
// a training/test data set, optionally normalizes and MRMR-reorders its
// features, sweeps (k, f) under the configured coordination strategy, and
// reports the best candidate's test and training accuracy.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	grpcserver "github.com/efficomp/hpknn/pkg/api/grpc"
	"github.com/efficomp/hpknn/pkg/api/rest"
	"github.com/efficomp/hpknn/pkg/api/rest/middleware"
	"github.com/efficomp/hpknn/pkg/config"
	"github.com/efficomp/hpknn/pkg/coordinator"
	"github.com/efficomp/hpknn/pkg/data"
	"github.com/efficomp/hpknn/pkg/energy"
	"github.com/efficomp/hpknn/pkg/jobs"
	"github.com/efficomp/hpknn/pkg/knn"
	"github.com/efficomp/hpknn/pkg/normalize"
	"github.com/efficomp/hpknn/pkg/observability"
	"github.com/efficomp/hpknn/pkg/resultcache"
	"github.com/efficomp/hpknn/pkg/transport/chantransport"
)

func main() {
	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if flags.Help {
		config.Usage(os.Stdout)
		os.Exit(0)
	}
	if flags.ConfigPath == "" {
		fmt.Fprintln(os.Stderr, "rank 0: -conf is required (see -h)")
		os.Exit(1)
	}

	cfg, err := config.LoadFromFile(flags.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rank 0: %v\n", err)
		os.Exit(1)
	}
	if flags.ModeOverride != "" {
		cfg.Mode = config.Mode(flags.ModeOverride)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "rank 0: %v\n", err)
		os.Exit(1)
	}

	log := observability.NewDefaultLogger()
	metrics := observability.NewMetrics()

	if err := run(cfg, log, metrics); err != nil {
		log.Fatal("rank 0: "+err.Error(), map[string]interface{}{"rank": 0})
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *observability.Logger, metrics *observability.Metrics) error {
	readStart := time.Now()
	train, trainLabels, test, testLabels, err := loadDataset(cfg)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	readElapsed := time.Since(readStart)

	sortStart := time.Now()
	train, test, err = prepareFeatures(cfg, train, test)
	if err != nil {
		return fmt.Errorf("prepare features: %w", err)
	}
	sortElapsed := time.Since(sortStart)

	numWorkers := cfg.WorldSize
	if numWorkers < 1 {
		numWorkers = 1
	}

	var gate coordinator.EnergyGate
	if cfg.SavingEnergy {
		g := energy.NewGate(cfg.Energy.OracleURL, cfg.Energy.RequestsPerSec, cfg.Mode == config.ModeHeterogeneous, log)
		g.SetMetrics(metrics)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go g.Run(ctx)
		gate = g
	}

	registry := jobs.NewRegistry()
	cache := resultcache.NewLRUCache(128, time.Hour)

	var admin *adminSurface
	if cfg.Admin.Enabled {
		admin, err = startAdminSurface(cfg, registry, cache, log, metrics)
		if err != nil {
			return fmt.Errorf("start admin surface: %w", err)
		}
		defer admin.stop()

		reportCtx, cancelReport := context.WithCancel(context.Background())
		defer cancelReport()
		go reportSystemMetrics(reportCtx, metrics)
	}

	sweepStart := time.Now()
	best, err := sweep(cfg, train, trainLabels, test, testLabels, numWorkers, gate, metrics)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	sweepElapsed := time.Since(sweepStart)
	metrics.RecordCandidate(knn.Accuracy(best.Correct, test.Rows))

	scoreStart := time.Now()
	testScore := knn.Score(cfg.Metric, train, trainLabels, test, testLabels, best.K, best.F, cfg.NClasses, numWorkers)
	trainScore := knn.Score(cfg.Metric, train, trainLabels, train, trainLabels, best.K, best.F, cfg.NClasses, numWorkers)
	scoreElapsed := time.Since(scoreStart)

	printReport(best, testScore, trainScore, test.Rows, train.Rows, readElapsed, sortElapsed, sweepElapsed, scoreElapsed)

	if admin != nil {
		waitForShutdown(log)
	}

	return nil
}

// loadDataset reads the training/test matrices and label files named in
// the configuration.
func loadDataset(cfg *config.Config) (train *knn.Matrix, trainLabels []uint32, test *knn.Matrix, testLabels []uint32, err error) {
	train, err = data.ReadMatrix(cfg.DBDataTraining)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	test, err = data.ReadMatrix(cfg.DBDataTest)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	trainLabels, err = data.ReadLabels(cfg.DBLabelsTraining)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	testLabels, err = data.ReadLabels(cfg.DBLabelsTest)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return train, trainLabels, test, testLabels, nil
}

// prepareFeatures applies [0,1] normalization (fit on train, applied to
// both sets) and the MRMR column permutation, per the switches in cfg.
func prepareFeatures(cfg *config.Config, train, test *knn.Matrix) (*knn.Matrix, *knn.Matrix, error) {
	if cfg.Normalize {
		scaler := normalize.Fit(train)
		var err error
		train, err = scaler.Transform(train)
		if err != nil {
			return nil, nil, err
		}
		test, err = scaler.Transform(test)
		if err != nil {
			return nil, nil, err
		}
	}

	if cfg.SortingByMRMR {
		perm, err := data.ReadPermutation(cfg.MRMR, train.Cols)
		if err != nil {
			return nil, nil, err
		}
		train, err = normalize.Permute(train, perm)
		if err != nil {
			return nil, nil, err
		}
		test, err = normalize.Permute(test, perm)
		if err != nil {
			return nil, nil, err
		}
	}

	return train, test, nil
}

// sweep runs the configured coordination strategy and returns the global
// best (k, f) candidate.
func sweep(cfg *config.Config, train *knn.Matrix, trainLabels []uint32, test *knn.Matrix, testLabels []uint32, numWorkers int, gate coordinator.EnergyGate, metrics *observability.Metrics) (knn.Candidate, error) {
	sweepStart := time.Now()
	defer func() { metrics.RecordSweep(string(cfg.Metric), time.Since(sweepStart)) }()

	switch cfg.Mode {
	case config.ModeHomogeneous:
		return runHomogeneous(cfg, train, trainLabels, test, testLabels, numWorkers)

	case config.ModeHeterogeneous:
		return runHeterogeneous(cfg, train, trainLabels, test, testLabels, numWorkers, gate, metrics)

	default:
		return knn.Candidate{}, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
}

// runHomogeneous simulates every rank of C5's static stride partition
// in-process and folds their per-rank best Candidates under Candidate
// ordering, since the CLI drives the whole simulated world from a single
// process rather than one rank per OS process.
func runHomogeneous(cfg *config.Config, train *knn.Matrix, trainLabels []uint32, test *knn.Matrix, testLabels []uint32, numWorkers int) (knn.Candidate, error) {
	var best knn.Candidate
	haveBest := false

	for rank := 0; rank < cfg.WorldSize; rank++ {
		cand, have := knn.RunHomogeneous(cfg.Metric, train, trainLabels, test, testLabels, rank, cfg.WorldSize, cfg.MaxFeatures, cfg.KMin, cfg.KMax, numWorkers)
		if have {
			best, haveBest = knn.Reduce(best, cand, haveBest)
		}
	}

	if !haveBest {
		return knn.Candidate{}, fmt.Errorf("no feature prefix assigned across %d ranks: maxFeatures=%d", cfg.WorldSize, cfg.MaxFeatures)
	}
	return best, nil
}

// runHeterogeneous simulates the master/worker world in-process over
// chantransport: rank 0 runs RunMaster, ranks 1..worldSize-1 each run
// RunWorker against a ChunkScorer. cfg.WorldSize is the *total* rank
// count (master plus workers), matching the MPI convention spec.md §4.6/
// §7 uses ("world size < 2 means no worker would exist"): the worker
// count is therefore worldSize-1, not worldSize. concurrency is the
// internal goroutine pool size each ChunkScorer call fans its own
// distance computation out across, independent of rank count.
func runHeterogeneous(cfg *config.Config, train *knn.Matrix, trainLabels []uint32, test *knn.Matrix, testLabels []uint32, concurrency int, gate coordinator.EnergyGate, metrics *observability.Metrics) (knn.Candidate, error) {
	numWorkers := cfg.WorldSize - 1
	if numWorkers < 1 {
		return knn.Candidate{}, fmt.Errorf("heterogeneous mode requires at least one worker rank")
	}

	world := chantransport.NewWorld(cfg.WorldSize)
	defer world.Close()

	ctx := context.Background()
	results := make(chan knn.Candidate, 1)
	errs := make(chan error, numWorkers+1)

	go func() {
		best, err := coordinator.RunMaster(ctx, world.Rank(0), numWorkers, cfg.ChunkSize, cfg.MaxFeatures, metrics)
		if err != nil {
			errs <- err
			return
		}
		results <- best
	}()

	scorer := coordinator.ChunkScorer(cfg.Metric, train, trainLabels, test, testLabels, cfg.KMin, cfg.KMax, concurrency)
	for w := 1; w <= numWorkers; w++ {
		rank := world.Rank(w)
		go func() {
			metrics.RecordChunkAssigned()
			if err := coordinator.RunWorker(ctx, rank, cfg.ChunkSize, cfg.MaxFeatures, gate, scorer); err != nil {
				errs <- err
			}
		}()
	}

	select {
	case best := <-results:
		return best, nil
	case err := <-errs:
		return knn.Candidate{}, err
	}
}

func printReport(best knn.Candidate, testScore, trainScore knn.ScoreResult, testN, trainN int, readElapsed, sortElapsed, sweepElapsed, scoreElapsed time.Duration) {
	fmt.Printf("Optimum k: %d\n", best.K)
	fmt.Printf("Optimum f: %d\n", best.F)
	fmt.Println()
	fmt.Printf("Timings: read=%v sort=%v sweep=%v score=%v\n", readElapsed, sortElapsed, sweepElapsed, scoreElapsed)
	fmt.Println()
	fmt.Println("Confusion matrix (test set, rows=true, cols=predicted):")
	for _, row := range testScore.Confusion {
		fmt.Println(row)
	}
	fmt.Println()
	fmt.Printf("Training accuracy: %.6f\n", knn.Accuracy(trainScore.Correct, trainN))
	fmt.Printf("Test accuracy:     %.6f\n", knn.Accuracy(testScore.Correct, testN))
}

// adminSurface bundles the optional REST/gRPC observability endpoints
// started on rank 0 when cfg.Admin.Enabled.
type adminSurface struct {
	rest *rest.Server
	grpc *grpcserver.Server
}

func startAdminSurface(cfg *config.Config, registry *jobs.Registry, cache *resultcache.LRUCache, log *observability.Logger, metrics *observability.Metrics) (*adminSurface, error) {
	grpcSrv, err := grpcserver.NewServer(cfg)
	if err != nil {
		return nil, err
	}
	if err := grpcSrv.Start(); err != nil {
		return nil, err
	}

	restCfg := rest.Config{
		Host:        cfg.Admin.Host,
		Port:        cfg.Admin.RESTPort,
		CORSEnabled: false,
		Auth: middleware.AuthConfig{
			Enabled:   cfg.Admin.AuthEnabled,
			JWTSecret: cfg.Admin.JWTSecret,
		},
		RateLimit: middleware.RateLimitConfig{
			Enabled:        cfg.Admin.RateLimitEnabled,
			RequestsPerSec: cfg.Admin.RateLimitPerSec,
			Burst:          cfg.Admin.RateLimitBurst,
			PerIP:          true,
		},
	}

	noRunner := func(job *jobs.Job) (resultcache.Result, error) {
		return resultcache.Result{}, fmt.Errorf("re-running job %q over the admin surface is not supported; rerun the CLI", job.Name)
	}

	restSrv := rest.NewServer(restCfg, registry, cache, noRunner, metrics)
	go func() {
		if err := restSrv.Start(); err != nil {
			log.Error("admin REST server stopped", map[string]interface{}{"error": err.Error()})
		}
	}()

	return &adminSurface{rest: restSrv, grpc: grpcSrv}, nil
}

func (a *adminSurface) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.rest.Stop(ctx)
	a.grpc.Stop()
}

// reportSystemMetrics samples goroutine count and heap usage once every 15
// seconds for as long as the admin surface is up, for the /metrics scrape
// target.
func reportSystemMetrics(ctx context.Context, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	var memStats runtime.MemStats
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateGoroutineCount(runtime.NumGoroutine())
			runtime.ReadMemStats(&memStats)
			metrics.UpdateMemoryUsage(memStats.Alloc)
		}
	}
}

func waitForShutdown(log *observability.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutdown signal received")
}
