package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartsefaz.org/internal/config"
	"smartsefaz.org/internal/httpapi"
	"smartsefaz.org/internal/obs"
	"smartsefaz.org/internal/session"
	"smartsefaz.org/internal/sso"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", os.Getenv("SSO_CONFIG"), "Path to YAML config file")
	flag.Parse()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	queryTimeout, _ := cfg.QueryTimeout()
	sessionTTL, _ := cfg.SessionTTL()

	store, err := sso.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	routes := make([]sso.RouteRule, 0, len(cfg.Routes))
	for _, r := range cfg.Routes {
		routes = append(routes, sso.RouteRule{Prefix: r.Prefix, Module: r.Module})
	}
	routeTable, err := sso.NewRouteTable(routes)
	if err != nil {
		log.Fatalf("route table: %v", err)
	}

	appID := cfg.ApplicationID()
	recorder := sso.NewRecorder(store.AccessLog(context.Background()), appID, queryTimeout)
	authenticator := sso.NewAuthenticator(store, recorder, appID, sso.WithAuthTimeout(queryTimeout))
	authorizer := sso.NewAuthorizer(store, recorder, routeTable, appID, sso.WithAuthzTimeout(queryTimeout))

	sessions, err := session.NewManager(cfg.Session.Secret,
		session.WithTTL(sessionTTL),
		session.WithIssuer(cfg.Session.Issuer),
	)
	if err != nil {
		log.Fatalf("session manager: %v", err)
	}

	api := httpapi.New(httpapi.Deps{
		Authenticator: authenticator,
		Authorizer:    authorizer,
		Sessions:      sessions,
		Ready:         httpapi.ReadyProbe{DB: store.DB()},
		Version:       version,
		RateBurst:     cfg.RateLimit.Burst,
		RatePerSecond: cfg.RateLimit.PerSecond,
	})

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting sso-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = store.Close()
	log.Println("Stopped")
}
