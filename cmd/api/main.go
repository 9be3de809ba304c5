package main

import (
	"log"
	"net/http"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/sayhar/wiki-know/internal/assets"
	"github.com/sayhar/wiki-know/internal/batch"
	"github.com/sayhar/wiki-know/internal/config"
	"github.com/sayhar/wiki-know/internal/diag"
	"github.com/sayhar/wiki-know/internal/orderstore"
	"github.com/sayhar/wiki-know/internal/report"
	"github.com/sayhar/wiki-know/internal/results"
	"github.com/sayhar/wiki-know/internal/safeio"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	fsys, err := safeio.New(cfg.DataRoot)
	if err != nil {
		log.Fatalf("data root %s: %v", cfg.DataRoot, err)
	}
	reader := report.NewReader(fsys, cfg.ReportDir)

	resolver, stat := buildResolver(cfg)
	oracle := assets.NewOracle(resolver, fsys, stat, cfg.CheckTimeout)

	orders := buildOrderStore(cfg, fsys)
	defer orders.Close()

	hub := newWatchHub()
	index := batch.NewIndex(reader, orders, batch.Options{
		Workers:     cfg.ScanWorkers,
		Interesting: cfg.Interesting,
		Notify:      hub.Publish,
	})
	diags := diag.NewResolver(reader, oracle, diag.Config{
		StartIndex: cfg.ProbeStart,
		MaxIndex:   cfg.ProbeCeiling,
	})
	svc := results.NewService(reader, index, diags, oracle, results.Options{
		DirectoryTTL: cfg.DirectoryTTL,
	})

	srv := newServer(svc, index, diags, hub)
	h := withCORS(srv.routes())

	log.Printf("Starting API server on %s (data root %s)", cfg.Port, cfg.DataRoot)
	log.Fatal(http.ListenAndServe(cfg.Port, h2c.NewHandler(h, &http2.Server{})))
}

// buildResolver picks the asset backend: the S3 archive when configured, a
// published static base URL next, local files as the fallback.
func buildResolver(cfg *config.Config) (assets.Resolver, assets.StatFunc) {
	if cfg.Archive.Enabled {
		s3, err := assets.NewS3Resolver(assets.S3Config{
			Endpoint:  cfg.Archive.Endpoint,
			Region:    cfg.Archive.Region,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Bucket:    cfg.Archive.Bucket,
			UseSSL:    cfg.Archive.UseSSL,
			Prefix:    cfg.Archive.Prefix,
		})
		if err != nil {
			log.Printf("archive store unavailable, falling back to local assets: %v", err)
		} else {
			return s3, s3.StatExists
		}
	}
	if cfg.StaticBaseURL != "" {
		return assets.BaseURLResolver{Base: cfg.StaticBaseURL}, nil
	}
	return assets.LocalResolver{}, nil
}

func buildOrderStore(cfg *config.Config, fsys *safeio.FS) *orderstore.Store {
	if cfg.OrderDSN != "" {
		store, err := orderstore.NewPostgres(cfg.OrderDSN)
		if err != nil {
			log.Printf("order database unavailable, using order files: %v", err)
		} else {
			return store
		}
	}
	return orderstore.New(fsys, cfg.OrderDir)
}
