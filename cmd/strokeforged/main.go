package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AaronLay10/StrokeForge/internal/api"
	"github.com/AaronLay10/StrokeForge/internal/config"
	"github.com/AaronLay10/StrokeForge/internal/events"
	"github.com/AaronLay10/StrokeForge/internal/mqtt"
	"github.com/AaronLay10/StrokeForge/internal/pipeline"
	"github.com/AaronLay10/StrokeForge/internal/session"
	"github.com/AaronLay10/StrokeForge/internal/storage/postgres"
	"github.com/AaronLay10/StrokeForge/internal/version"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("failed to load .env: %v", err)
	}

	cfgPath := flag.String("config", envOr("STROKEFORGE_CONFIG", "service.yaml"), "Path to service.yaml")
	flag.Parse()

	cfg, err := config.LoadServiceConfig(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load %s: %v", *cfgPath, err)
	}

	serviceID := cfg.Service.ID
	if serviceID == "" {
		serviceID = "strokeforged"
	}

	api.InitAuth()
	api.InitTLS(api.TLSConfig{
		CertFile:     cfg.Network.TLS.CertFile,
		KeyFile:      cfg.Network.TLS.KeyFile,
		ClientCAFile: cfg.Network.TLS.ClientCAFile,
	})
	if _, err := api.LoadTLSConfig(); err != nil {
		log.Fatalf("invalid TLS configuration: %v", err)
	}
	api.InitMetrics()
	api.SetServiceName(serviceID)
	api.InitAlerts()

	store := session.NewStore()
	store.SetCustomTimeout(cfg.CustomTimeout())
	if cfg.Pipeline.Default != "" {
		pcfg, err := config.LoadPipelineConfig(cfg.Pipeline.Default)
		if err != nil {
			log.Fatalf("failed to load default pipeline %s: %v", cfg.Pipeline.Default, err)
		}
		mods, err := pipeline.FromConfig(pcfg)
		if err != nil {
			log.Fatalf("invalid default pipeline %s: %v", cfg.Pipeline.Default, err)
		}
		store.SetDefaultPipeline(mods)
	}
	api.SetStore(store)

	// Postgres is required only when enabled in service.yaml.
	pgOptional := !cfg.Postgres.Enabled
	var pg *postgres.Client
	if cfg.Postgres.Enabled {
		pg, err = postgres.New(serviceID)
		if err != nil {
			log.Printf("postgres: %v (continuing without persistence)", err)
		}
	}
	if pg != nil {
		events.SetSink(pg)
		store.SetPersister(pg)
		n, err := store.Restore(pg, session.DefaultRestoreLimit)
		if err != nil {
			log.Printf("postgres: failed to restore scripts: %v", err)
		} else {
			log.Printf("postgres: restored %d scripts", n)
		}
	}
	api.SetPostgresState(pg != nil, pgOptional)

	var client *mqtt.Client
	if cfg.MQTT.Enabled {
		client = mqtt.NewClient(serviceID)
		sub := mqtt.NewScriptSubscriber(client, store, cfg.TopicPrefix())
		store.SetRenderHook(sub.Publish)

		connected := client.Start(func() error {
			sub.ClearSubscriptions()
			return sub.SubscribeAll()
		})
		api.SetMQTTState(connected, false)
		go watchMQTT(client)
	}

	api.SetEngineReady(true)
	api.StartAlertMonitor(5 * time.Second)

	hostname, _ := os.Hostname()
	events.Emit("info", "system.startup", "strokeforged starting", map[string]interface{}{
		"service":  serviceID,
		"version":  version.Version,
		"hostname": hostname,
		"pid":      os.Getpid(),
	})

	api.Start(cfg.HTTPPort())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	api.SetEngineReady(false)
	events.Emit("info", "system.shutdown", "strokeforged stopping", map[string]interface{}{
		"signal": sig.String(),
	})
	events.CloseAllSubscribers()
	if client != nil {
		client.Disconnect()
	}
	if pg != nil {
		events.SetSink(nil)
		pg.Close()
	}
}

// watchMQTT mirrors the broker connection into /ready and /metrics.
func watchMQTT(client *mqtt.Client) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		api.SetMQTTState(client.IsConnected(), false)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
