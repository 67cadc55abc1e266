package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"homehub/internal/config"
	"homehub/internal/db"
	"homehub/internal/dispatch"
	"homehub/internal/engine"
	"homehub/internal/mqtt"
	"homehub/internal/redis"
	"homehub/internal/registry"
	"homehub/internal/scheduler"
	"homehub/internal/taskqueue"
	"homehub/internal/utils"
	"homehub/internal/web"
	"homehub/internal/web/stream"

	"github.com/pion/mdns/v2"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	utils.InitLogging(cfg.LogLevel)

	dbConn, err := db.NewDB(cfg.DBURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer dbConn.Close()

	redisClient := redis.NewRedisClient(cfg.RedisAddr)

	mqttClient, err := mqtt.NewMQTTClient(cfg.MQTTBroker, cfg.MQTTClientID)
	if err != nil {
		log.Fatalf("Failed to connect to MQTT: %v", err)
	}
	defer mqttClient.Disconnect(250)
	publisher := mqtt.NewPublisher(mqttClient)

	ruleRegistry := registry.NewRegistry(dbConn, redisClient)
	if err := ruleRegistry.Resync(context.Background()); err != nil {
		log.Printf("Initial rule association resync failed: %v", err)
	}

	dispatcher := dispatch.NewDispatcher(dbConn, publisher)
	hub := stream.NewHub()

	eng := engine.NewEngine(mqttClient, publisher, dbConn, ruleRegistry, dispatcher, redisClient)
	eng.OnStateChange(hub.BroadcastState)
	eng.SetRetryEnqueue(taskqueue.EnqueueStateRetry)

	// The client must exist before the engine starts so that an early
	// merge failure can enqueue its retry.
	taskqueue.Init(cfg.RedisAddr)
	taskqueue.SetStateProcessor(eng.ProcessMessage)
	go taskqueue.StartWorkers(cfg.RedisAddr)

	sched := scheduler.NewScheduler()
	if _, err := sched.AddJob("@every 1m", func() {
		if err := ruleRegistry.Resync(context.Background()); err != nil {
			log.Printf("Rule association resync failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule association resync: %v", err)
	}
	sched.Start()

	if err := eng.Start(); err != nil {
		log.Fatalf("Failed to start engine: %v", err)
	}

	webServer := web.NewWebServer(dbConn, cfg.JWTSecret, ruleRegistry, dispatcher, hub)
	go func() {
		if err := webServer.Start(cfg.HTTPAddr); err != nil {
			log.Fatalf("Web server failed: %v", err)
		}
	}()

	if cfg.MDNSName != "" {
		go startMDNSServer(cfg.MDNSName)
	}

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	eng.Stop()
	sched.Stop()
	taskqueue.StopWorkers()
	log.Println("Shutdown complete")
}

func startMDNSServer(localName string) {
	addr4, err := net.ResolveUDPAddr("udp4", mdns.DefaultAddressIPv4)
	if err != nil {
		log.Println("Failed to resolve UDP4 address for mDNS:", err)
		return
	}

	addr6, err := net.ResolveUDPAddr("udp6", mdns.DefaultAddressIPv6)
	if err != nil {
		log.Println("Failed to resolve UDP6 address for mDNS:", err)
		return
	}

	l4, err := net.ListenUDP("udp4", addr4)
	if err != nil {
		log.Println("Failed to listen on UDP4 for mDNS:", err)
		return
	}

	l6, err := net.ListenUDP("udp6", addr6)
	if err != nil {
		log.Println("Failed to listen on UDP6 for mDNS:", err)
		return
	}

	_, err = mdns.Server(ipv4.NewPacketConn(l4), ipv6.NewPacketConn(l6), &mdns.Config{
		LocalNames: []string{localName},
	})
	if err != nil {
		log.Println("Failed to start mDNS server:", err)
	}
}
