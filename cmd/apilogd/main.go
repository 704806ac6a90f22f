// Command apilogd runs the recent-call-log service: a confighub.Hub
// fronting routing config and an apilog.Log fronting recent API
// calls, backed by ResourceManager and BoundedList respectively, both
// audited to disk, the call log's evicted records archived to Pebble,
// both exposed over HTTP and gRPC.
// Construction order follows the teacher's cmd/server/main.go: open
// durable stores first, wire the domain objects around them, start
// background jobs, then serve.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neunhoef/resource-manager/api/admin"
	"github.com/neunhoef/resource-manager/internal/apilog"
	"github.com/neunhoef/resource-manager/internal/archive"
	"github.com/neunhoef/resource-manager/internal/audit"
	"github.com/neunhoef/resource-manager/internal/broadcaster"
	"github.com/neunhoef/resource-manager/internal/confighub"
	"github.com/neunhoef/resource-manager/internal/config"
	"github.com/neunhoef/resource-manager/internal/errs"
	"github.com/neunhoef/resource-manager/internal/ingest"
	"github.com/neunhoef/resource-manager/internal/metrics"
)

func main() {
	errs.InitSentry()
	defer errs.RecoverAndReport()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	met := metrics.New()

	// ---------------- Audit ----------------

	callWAL, err := audit.Open(audit.Config{Dir: cfg.AuditDir + "/calls", SegmentSize: 2 << 20})
	if err != nil {
		log.Fatalf("call audit WAL init failed: %v", err)
	}
	defer callWAL.Close()

	configWAL, err := audit.Open(audit.Config{Dir: cfg.AuditDir + "/config", SegmentSize: 2 << 20})
	if err != nil {
		log.Fatalf("config audit WAL init failed: %v", err)
	}
	defer configWAL.Close()

	// ---------------- Archive ----------------

	store, err := archive.Open(cfg.ArchiveDir)
	if err != nil {
		log.Fatalf("archive store init failed: %v", err)
	}
	defer store.Close()

	// ---------------- Domain ----------------

	apiLog, err := apilog.NewAudited(cfg.MemoryThreshold, cfg.MaxHistory, callWAL)
	if err != nil {
		log.Fatalf("apilog init failed: %v", err)
	}
	apiLog.SetMetrics(met)

	hub := confighub.NewAudited(confighub.Table{}, configWAL)
	hub.SetMetrics(met)
	defer hub.Close()

	// ---------------- Background jobs ----------------

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		var lastRotations uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := apiLog.Archive(store); err != nil {
					log.Printf("[apilogd] archive pass failed: %v", err)
				} else if n > 0 {
					log.Printf("[apilogd] archived %d call records", n)
				}

				if rotations := apiLog.RotationCount(); rotations > lastRotations {
					met.Rotations.Add(float64(rotations - lastRotations))
					lastRotations = rotations
				}
			}
		}
	}()

	consumer := ingest.NewConsumer(cfg.KafkaBrokers, cfg.KafkaInboundTopic, cfg.KafkaGroup, apiLog)
	consumer.SetMetrics(met)
	defer consumer.Close()
	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Printf("[apilogd] ingest consumer stopped: %v", err)
		}
	}()

	bc, err := broadcaster.New[apilog.CallRecord](store, cfg.KafkaBrokers, cfg.KafkaOutboundTopic, met.Sarama)
	if err != nil {
		log.Fatalf("broadcaster init failed: %v", err)
	}
	defer bc.Close()
	bc.Start(ctx, cfg.BroadcastInterval)

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("grpc listen failed: %v", err)
	}
	go func() {
		if err := admin.ServeGRPC(lis); err != nil {
			log.Printf("[apilogd] grpc server exited: %v", err)
		}
	}()

	// ---------------- HTTP ----------------

	adminSrv := admin.New(apiLog, hub, met)
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: adminSrv.HTTPHandler()}

	go func() {
		fmt.Printf("apilogd listening: http=%s grpc=%s\n", cfg.HTTPAddr, cfg.GRPCAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server exited: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[apilogd] shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	_ = lis.Close()
	cancel()
}
