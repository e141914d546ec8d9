package tbl

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/dTable/cmd/util"
	"github.com/ValentinKolb/dTable/lib/db"
	"github.com/ValentinKolb/dTable/lib/db/engines/rowan"
	"github.com/ValentinKolb/dTable/lib/store/lstore"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the local table store",
		Long:    "Runs a series of benchmarks (insert, get, update, select, id, delete) against a fresh in-memory store. The database file is not touched.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfTable      = "bench"
	perfNumOps     = 10000
	perfNumThreads = 10
	perfKeySpread  = 100
	perfSkip       = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. insert,get)"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 10000, util.WrapString("Number of operations per benchmark"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfNumOps = viper.GetInt("ops")
	perfNumThreads = viper.GetInt("threads")
	perfKeySpread = viper.GetInt("keys")
	if skip := viper.GetString("skip"); skip != "" {
		perfSkip = strings.Split(skip, ",")
	}

	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for the local table store")
	fmt.Println()
	fmt.Printf("Operations: %d\n", perfNumOps)
	fmt.Printf("Threads:    %d\n", perfNumThreads)
	fmt.Printf("Keys:       %d\n", perfKeySpread)
	fmt.Println()

	// Benchmarks run against their own in-memory store, never the file
	bench := rowan.NewRowanDB(nil)
	if err := bench.CreateTable(perfTable, []string{"key", "name", "age"}); err != nil {
		return err
	}
	s := lstore.NewLocalStoreFromDB(bench)

	registry := gometrics.NewRegistry()

	// Seed the key space so get/update/select/delete hit existing records
	for i := 0; i < perfKeySpread; i++ {
		if _, err := s.Insert(perfTable, db.Record{perfTable, i, fmt.Sprintf("u%d", i), i % 80}); err != nil {
			return err
		}
	}

	fmt.Println("starting tests...")
	fmt.Println()

	runBench(registry, "insert", func(i int) {
		// Insert into a disjoint key range, AlreadyExists would distort the numbers
		_, _ = s.Insert(perfTable, db.Record{perfTable, perfKeySpread + i, "bench", 0})
	})
	runBench(registry, "get", func(i int) {
		_, _, _ = s.Get(perfTable, i%perfKeySpread)
	})
	runBench(registry, "update", func(i int) {
		_, _ = s.Update(perfTable, i%perfKeySpread, db.Record{perfTable, i % perfKeySpread, db.NoValue, i % 80})
	})
	runBench(registry, "select", func(i int) {
		want := i % 80
		_, _ = s.Select(perfTable, func(rec db.Record) bool { return rec[3] == want }, 10)
	})
	runBench(registry, "id", func(i int) {
		_, _ = s.NextID(perfTable, 1)
	})
	runBench(registry, "delete", func(i int) {
		_, _ = s.Delete(perfTable, perfKeySpread+i)
	})

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, registry); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// runBench distributes perfNumOps invocations of fn over perfNumThreads
// goroutines and records every call in a timer registered under name.
func runBench(registry gometrics.Registry, name string, fn func(i int)) {
	if shouldSkip(name) {
		fmt.Printf("%-10sskipped\n", name)
		return
	}

	timer := gometrics.GetOrRegisterTimer(name, registry)

	var wg sync.WaitGroup
	for t := 0; t < perfNumThreads; t++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for i := offset; i < perfNumOps; i += perfNumThreads {
				i := i
				timer.Time(func() { fn(i) })
			}
		}(t)
	}
	wg.Wait()

	printResult(name, timer)
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, timer gometrics.Timer) {
	mean := time.Duration(int64(timer.Mean()))
	p95 := time.Duration(int64(timer.Percentile(0.95)))
	opsPerSec := 0.0
	if timer.Mean() > 0 {
		opsPerSec = 1e9 / timer.Mean()
	}
	fmt.Printf("%-10s%d ops\tmean %v\tp95 %v\t%.0f ops/sec\n",
		test, timer.Count(), mean, p95, opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, registry gometrics.Registry) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "Count", "MeanNs", "P95Ns", "OpsPerSec",
		"Threads", "Ops", "Keys",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	var writeErr error
	registry.Each(func(name string, metric interface{}) {
		timer, ok := metric.(gometrics.Timer)
		if !ok || writeErr != nil {
			return
		}

		opsPerSec := 0.0
		if timer.Mean() > 0 {
			opsPerSec = 1e9 / timer.Mean()
		}
		row := []string{
			name,
			strconv.FormatInt(timer.Count(), 10),
			fmt.Sprintf("%.0f", timer.Mean()),
			fmt.Sprintf("%.0f", timer.Percentile(0.95)),
			fmt.Sprintf("%.0f", opsPerSec),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfNumOps),
			strconv.Itoa(perfKeySpread),
		}
		if err := writer.Write(row); err != nil {
			writeErr = fmt.Errorf("failed to write row for test %s: %v", name, err)
		}
	})

	return writeErr
}
