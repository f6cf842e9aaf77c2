package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/verdra/garden-gateway/internal/model/messages"
	"github.com/verdra/garden-gateway/internal/services/gateway"
	"github.com/verdra/garden-gateway/internal/storage"
	"github.com/verdra/garden-gateway/pkg/dedup"
	"github.com/verdra/garden-gateway/pkg/mqttbus"
)

// discardReadings stands in for Influx when no bucket is configured,
// e.g. local development against sqlite only.
type discardReadings struct{}

func (discardReadings) WriteReading(context.Context, uint, string, messages.Telemetry, time.Time) error {
	return nil
}

func main() {
	configPath := flag.String("config", getenv("CONFIG_PATH", "config.yaml"), "path to the YAML config")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := storage.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}
	store := storage.NewGormStore(db)

	var readings storage.ReadingWriter = discardReadings{}
	if cfg.Influx.URL != "" {
		readings, err = storage.NewInfluxReadings(cfg.Influx)
		if err != nil {
			log.Fatalf("gateway: %v", err)
		}
	} else {
		log.Println("gateway: no influx configured, reading history disabled")
	}

	broker := &mqttbus.BrokerConfig{
		Host:     cfg.Broker.Host,
		Port:     cfg.Broker.Port,
		User:     cfg.Broker.User,
		Password: cfg.Broker.Password,
		ClientID: cfg.Broker.ClientID,
		UseTLS:   cfg.Broker.UseTLS,
	}
	client, err := mqttbus.NewBrokerConn(broker, ctx)
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}
	defer mqttbus.CloseBrokerConn(client)
	publisher := mqttbus.NewPublisher(client)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := gateway.NewMetrics(reg)

	svc := gateway.NewService(store, readings, publisher, metrics, gateway.Options{})
	trace := gateway.NewTrace(cfg.TraceSize)
	deduper := dedup.New(time.Duration(cfg.DedupTTLSeconds)*time.Second, cfg.DedupMaxEntries)
	router := gateway.NewRouter(ctx, svc, trace, deduper)

	consumer := mqttbus.NewMultiConsumer(client, gateway.SubscribeTopics, router.Handle)
	go consumer.ConsumeMessage(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !client.IsConnected() {
			http.Error(w, "broker disconnected", http.StatusServiceUnavailable)
			return
		}
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(r.Context()) != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ready"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/trace", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(trace.Recent())
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("gateway listening on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("gateway: %v", err)
	}
	log.Println("gateway: shut down")
}
