package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"catalog-sync/blob"
	"catalog-sync/catalog"
	"catalog-sync/importer"
	"catalog-sync/logging"
	"catalog-sync/mirror"
	"catalog-sync/reconciler"
)

func main() {
	// Load .env file (optional, falls back to system env)
	_ = godotenv.Load()

	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}

	logger := logging.Initialize(cfg.Env)
	defer logger.Sync()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cmdErr error
	switch os.Args[1] {
	case "import":
		cmdErr = runImport(ctx, cfg, os.Args[2:])
	case "worker":
		cmdErr = runWorker(ctx, cfg, os.Args[2:])
	case "images":
		cmdErr = runImages(ctx, cfg, os.Args[2:])
	case "products":
		cmdErr = runProducts(ctx, cfg, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if cmdErr != nil {
		zap.L().Error("command failed", zap.String("command", os.Args[1]), zap.Error(cmdErr))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: catalog-sync <command> [flags]

commands:
  import    import products from a CSV file (-file, optionally -queue)
  worker    run the background import worker (requires REDIS_URL)
  images    manage a product's image collection (-product plus an action)
  products  list or purge catalog products`)
}

func newPipeline(cfg *Config) (*importer.Pipeline, error) {
	client := catalog.New(cfg.APIBaseURL, nil)

	var attacher importer.ImageAttacher
	if cfg.RequireCloudinary() == nil {
		store, err := blob.NewCloudinaryStore(
			cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		if err != nil {
			return nil, fmt.Errorf("cloudinary init: %w", err)
		}
		m, err := openMirror(cfg)
		if err != nil {
			return nil, err
		}
		attacher = reconciler.New(client, store, m)
	} else {
		zap.L().Info("cloudinary credentials absent, CSV image columns will be skipped")
	}

	return importer.NewPipeline(client, importer.NewResolver(client), attacher), nil
}

// openMirror picks the shared Redis mirror when Redis is configured and the
// local file mirror otherwise.
func openMirror(cfg *Config) (mirror.Mirror, error) {
	if cfg.RedisURL != "" {
		rdb, err := openRedis(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return mirror.NewRedis(rdb), nil
	}
	m, err := mirror.OpenFile(cfg.MirrorPath)
	if err != nil {
		return nil, fmt.Errorf("open image mirror: %w", err)
	}
	return m, nil
}

func runImport(ctx context.Context, cfg *Config, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	file := fs.String("file", "", "path to the CSV file")
	queue := fs.Bool("queue", false, "enqueue for the background worker instead of importing now")
	fs.Parse(args)

	if *file == "" {
		return fmt.Errorf("-file is required")
	}

	if *queue {
		if cfg.RedisURL == "" {
			return fmt.Errorf("-queue requires REDIS_URL")
		}
		rdb, err := openRedis(cfg.RedisURL)
		if err != nil {
			return err
		}
		q := importer.NewQueue(rdb, cfg.ImportStorageDir)
		id, err := q.Enqueue(ctx, *file)
		if err != nil {
			return err
		}
		fmt.Println("queued import job", id)
		return nil
	}

	pipeline, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	pipeline.SetProgress(func(done, total int, name string) {
		fmt.Printf("[%d/%d] %s\n", done, total, name)
	})

	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	defer f.Close()

	summary, err := pipeline.ImportCSV(ctx, f)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d/%d products (%d failed)\n", summary.Succeeded, summary.Total, summary.Failed)
	for _, f := range summary.Failures {
		fmt.Printf("  row %d (%s): %s\n", f.Row, f.Name, f.Message)
	}
	return nil
}

func runWorker(ctx context.Context, cfg *Config, args []string) error {
	fs := flag.NewFlagSet("worker", flag.ExitOnError)
	fs.Parse(args)

	if cfg.RedisURL == "" {
		return fmt.Errorf("worker requires REDIS_URL")
	}
	rdb, err := openRedis(cfg.RedisURL)
	if err != nil {
		return err
	}
	pipeline, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	q := importer.NewQueue(rdb, cfg.ImportStorageDir)
	q.StartWorker(ctx, pipeline)
	<-ctx.Done()
	return nil
}

func runImages(ctx context.Context, cfg *Config, args []string) error {
	fs := flag.NewFlagSet("images", flag.ExitOnError)
	product := fs.String("product", "", "product id")
	add := fs.String("add", "", "semicolon-separated local image paths to append")
	remove := fs.String("remove", "", "location (URL or path) to remove")
	move := fs.String("move", "", "location=index to reposition an image")
	list := fs.Bool("list", false, "print the image collection and exit")
	clear := fs.Bool("clear", false, "delete every image from the product")
	yes := fs.Bool("yes", false, "confirm destructive actions")
	fs.Parse(args)

	if *product == "" {
		return fmt.Errorf("-product is required")
	}

	client := catalog.New(cfg.APIBaseURL, nil)
	if err := cfg.RequireCloudinary(); err != nil && *add != "" {
		return err
	}
	var store blob.Store
	if cfg.RequireCloudinary() == nil {
		s, err := blob.NewCloudinaryStore(
			cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		if err != nil {
			return fmt.Errorf("cloudinary init: %w", err)
		}
		store = s
	}
	m, err := openMirror(cfg)
	if err != nil {
		return err
	}

	rec := reconciler.New(client, store, m)
	rec.SetProgress(func(done, total int, path string) {
		fmt.Printf("uploading [%d/%d] %s\n", done, total, path)
	})
	if err := rec.Load(ctx, *product); err != nil {
		return err
	}

	if *clear {
		if !*yes {
			return fmt.Errorf("-clear deletes every image; pass -yes to confirm")
		}
		if err := rec.ClearAll(ctx); err != nil {
			return err
		}
		fmt.Println("cleared all images for", *product)
		return nil
	}

	dirty := false
	if *add != "" {
		rec.AddLocalFiles(strings.Split(*add, ";"))
		dirty = true
	}
	if *remove != "" {
		if !rec.Remove(*remove) {
			return fmt.Errorf("no image with location %q", *remove)
		}
		dirty = true
	}
	if *move != "" {
		loc, idxStr, ok := strings.Cut(*move, "=")
		if !ok {
			return fmt.Errorf("-move wants location=index")
		}
		var idx int
		if _, err := fmt.Sscanf(idxStr, "%d", &idx); err != nil {
			return fmt.Errorf("-move index %q is not a number", idxStr)
		}
		if err := rec.Reorder(loc, idx); err != nil {
			return err
		}
		dirty = true
	}

	if dirty {
		if err := rec.Commit(ctx); err != nil {
			return err
		}
	}

	if *list || !dirty {
		for _, img := range rec.Images() {
			fmt.Printf("%2d  %-6s  %s\n", img.Order, img.Origin, img.Location)
		}
	}
	return nil
}

func runProducts(ctx context.Context, cfg *Config, args []string) error {
	fs := flag.NewFlagSet("products", flag.ExitOnError)
	page := fs.Int("page", 1, "page to list")
	limit := fs.Int("limit", 20, "page size")
	purge := fs.Bool("purge", false, "delete every product in the catalog")
	yes := fs.Bool("yes", false, "confirm destructive actions")
	fs.Parse(args)

	client := catalog.New(cfg.APIBaseURL, nil)

	if *purge {
		if !*yes {
			return fmt.Errorf("-purge deletes every product; pass -yes to confirm")
		}
		deleted, failed, err := importer.PurgeProducts(ctx, client, func(done, total int) {
			fmt.Printf("deleting [%d/%d]\n", done, total)
		})
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d products (%d failed)\n", deleted, failed)
		return nil
	}

	result, err := client.ListProducts(ctx, *page, *limit)
	if err != nil {
		return err
	}
	for _, p := range result.Products {
		fmt.Printf("%s  %-30s  %8.2f  stock %d\n", p.ID, p.Name, p.Price, p.Stock)
	}
	fmt.Printf("page %d of %d\n", result.CurrentPage, result.TotalPages)
	return nil
}

func openRedis(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}
