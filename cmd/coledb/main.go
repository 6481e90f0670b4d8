// Command coledb inspects and syncs the chunked orderbook store.
//
// Usage:
//
//	coledb list   -config configs/collector.yaml
//	coledb stats  -config configs/collector.yaml -ticker INXD-23AUG28-B4500
//	coledb dump   -config configs/collector.yaml -ticker INXD-23AUG28-B4500 [-start RFC3339] [-end RFC3339] [-limit N]
//	coledb push   -config configs/collector.yaml
//	coledb pull   -config configs/collector.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/zcole/kalshi-core/internal/backend/s3"
	"github.com/zcole/kalshi-core/internal/coledb"
	"github.com/zcole/kalshi-core/internal/config"
	"github.com/zcole/kalshi-core/internal/model"
	"github.com/zcole/kalshi-core/internal/orderbook"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "list":
		err = runList(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "dump":
		err = runDump(os.Args[2:])
	case "push":
		err = runSync(os.Args[2:], true)
	case "pull":
		err = runSync(os.Args[2:], false)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: coledb {list|stats|dump|push|pull} [flags]")
}

// openStore loads the config and opens the store it points at.
func openStore(fs *flag.FlagSet, args []string) (*config.Config, *coledb.DB, error) {
	configPath := fs.String("config", "configs/collector.yaml", "path to config file")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := coledb.Open(cfg.ColeDB.Root, coledb.WithChunkSize(cfg.ColeDB.ChunkSize))
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	_, db, err := openStore(fs, args)
	if err != nil {
		return err
	}
	defer db.Close()

	tickers, err := db.Tickers()
	if err != nil {
		return err
	}
	sort.Slice(tickers, func(i, j int) bool { return tickers[i] < tickers[j] })
	for _, t := range tickers {
		fmt.Println(t)
	}
	return nil
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	ticker := fs.String("ticker", "", "market ticker (empty for all markets)")
	_, db, err := openStore(fs, args)
	if err != nil {
		return err
	}
	defer db.Close()

	var tickers []model.MarketTicker
	if *ticker != "" {
		tickers = []model.MarketTicker{model.MarketTicker(*ticker)}
	} else {
		tickers, err = db.Tickers()
		if err != nil {
			return err
		}
		sort.Slice(tickers, func(i, j int) bool { return tickers[i] < tickers[j] })
	}

	for _, t := range tickers {
		stats, err := db.MarketStats(t)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d messages in %d chunks, %s to %s\n",
			stats.Ticker, stats.Messages, stats.Chunks,
			stats.FirstTime.Format(time.RFC3339),
			stats.LastTime.Format(time.RFC3339),
		)
	}
	return nil
}

func runDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	ticker := fs.String("ticker", "", "market ticker (required)")
	start := fs.String("start", "", "range start, RFC3339")
	end := fs.String("end", "", "range end, RFC3339")
	limit := fs.Int("limit", 0, "max messages to print (0 = all)")
	_, db, err := openStore(fs, args)
	if err != nil {
		return err
	}
	defer db.Close()

	if *ticker == "" {
		return fmt.Errorf("dump: -ticker is required")
	}

	startTS, endTS, err := parseRange(*start, *end)
	if err != nil {
		return err
	}

	cur, err := db.ReadRange(model.MarketTicker(*ticker), startTS, endTS)
	if err != nil {
		return err
	}

	n := 0
	for cur.Next() {
		printMessage(cur.Message())
		n++
		if *limit > 0 && n >= *limit {
			break
		}
	}
	if err := cur.Err(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d messages\n", n)
	return nil
}

func parseRange(start, end string) (time.Time, time.Time, error) {
	startTS := time.Time{}
	endTS := time.Now().Add(24 * time.Hour)
	if start != "" {
		ts, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad -start: %w", err)
		}
		startTS = ts
	}
	if end != "" {
		ts, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad -end: %w", err)
		}
		endTS = ts
	}
	return startTS, endTS, nil
}

func printMessage(msg orderbook.Message) {
	switch {
	case msg.Snapshot != nil:
		s := msg.Snapshot
		fmt.Printf("%s seq=%d snapshot yes=%d no=%d\n",
			s.TS.Format(time.RFC3339Nano), s.Seq, len(s.Yes), len(s.No))
	case msg.Delta != nil:
		d := msg.Delta
		fmt.Printf("%s seq=%d delta side=%s price=%d change=%+d\n",
			d.TS.Format(time.RFC3339Nano), d.Seq, d.Side, d.Price, d.Change)
	}
}

func runSync(args []string, up bool) error {
	name := "pull"
	if up {
		name = "push"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cfg, db, err := openStore(fs, args)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.S3.Bucket == "" {
		return fmt.Errorf("%s: s3.bucket not configured", name)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	client, err := s3.NewClient(ctx)
	if err != nil {
		return err
	}
	remote, err := s3.PartitionPath(cfg.S3.Bucket, s3.SourceCole, cfg.Instance.ID)
	if err != nil {
		return err
	}
	syncer := s3.NewSyncer(client,
		s3.WithSyncLogger(logger),
		s3.WithWorkers(cfg.S3.Workers),
	)

	if up {
		return db.SyncToRemote(ctx, syncer, remote)
	}
	return db.SyncFromRemote(ctx, syncer, remote)
}
