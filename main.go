package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bassamadnan/leavewatch/config"
	"github.com/bassamadnan/leavewatch/gmail"
	"github.com/bassamadnan/leavewatch/notify"
	"github.com/bassamadnan/leavewatch/server"
	"github.com/bassamadnan/leavewatch/watch"
)

func main() {
	configPath := flag.String("config", "leavewatch.yaml", "path to the config file")
	once := flag.Bool("once", false, "run a single scan cycle and exit")
	serve := flag.Bool("serve", false, "run the HTTP surface alongside the scheduled scans")
	flag.Parse()

	logFile, err := os.OpenFile("leavewatch.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0660)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logFile.Close()
	log.SetOutput(io.MultiWriter(os.Stderr, logFile))
	log.Println("Application starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutdown signal received, cancelling context...")
		cancel()
	}()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Printf("Configuration loaded: notifier=%s keywords=%v timeout=%dh", cfg.Notifier, cfg.Keywords, cfg.ReplyTimeoutHours)

	gmailClient, err := gmail.NewClient(ctx, cfg.CredentialsFile, cfg.TokenFile)
	if err != nil {
		log.Fatalf("Failed to initialize Gmail client: %v. Ensure credentials.json is present and valid.", err)
	}
	log.Println("Gmail client initialized.")

	var (
		notifier notify.Notifier
		web      *notify.Web
		registry *notify.Registry
	)
	switch cfg.Notifier {
	case config.NotifierDesktop:
		notifier = notify.NewDesktop()
	case config.NotifierPush:
		registry = notify.NewRegistry()
		push, err := notify.NewPush(ctx, cfg.FirebaseCredentialsFile, registry)
		if err != nil {
			log.Fatalf("Failed to initialize push notifier: %v", err)
		}
		notifier = push
	case config.NotifierWeb:
		web = notify.NewWeb(cfg.WebHistorySize)
		notifier = web
	}
	log.Printf("Notification channel %q ready.", cfg.Notifier)

	agent := watch.NewAgent(gmailClient, notifier, cfg)

	if *once {
		res := agent.RunOnce(ctx)
		printSummary(res)
		// Partial errors still exit zero; only startup failures are fatal.
		return
	}

	if *serve {
		srv := &http.Server{
			Addr:    cfg.ListenAddr,
			Handler: server.New(agent, notifier, web, registry).Router(),
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			srv.Shutdown(shutdownCtx)
		}()
		go agent.RunContinuous(ctx, time.Duration(cfg.ScheduleHours)*time.Hour)
		log.Printf("HTTP surface listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
		log.Println("HTTP server stopped. Exiting.")
		return
	}

	agent.RunContinuous(ctx, time.Duration(cfg.CheckIntervalHours)*time.Hour)
	log.Println("Continuous scan stopped. Exiting.")
}

func printSummary(res watch.Result) {
	fmt.Printf("Checked: %d, pending: %d, notifications sent: %d\n", res.Checked, res.Pending, res.Notified)
	for _, e := range res.Errors {
		fmt.Printf("  error: %s\n", e)
	}
}
