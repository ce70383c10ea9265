package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nexusmail/nexusmail/internal/ai"
	"github.com/nexusmail/nexusmail/internal/api"
	"github.com/nexusmail/nexusmail/internal/config"
	"github.com/nexusmail/nexusmail/internal/contacts"
	"github.com/nexusmail/nexusmail/internal/credential"
	"github.com/nexusmail/nexusmail/internal/mail"
	"github.com/nexusmail/nexusmail/internal/secure"
	"github.com/nexusmail/nexusmail/internal/store"
	"github.com/nexusmail/nexusmail/internal/watcher"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath(), "path to the config file")
	flag.Parse()

	if level, err := logrus.ParseLevel(os.Getenv("NEXUSMAIL_LOG_LEVEL")); err == nil {
		logrus.SetLevel(level)
	}

	cfgMgr, err := config.NewManager(*configPath, credential.NewStore())
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}
	cfg := cfgMgr.Config()

	cipher, err := secure.NewCipher(cfg.Storage.Secret)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize draft encryption")
	}

	db, err := store.NewSQLiteStore(cfg.Storage.DBPath, cipher)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open local store")
	}
	defer db.Close()

	engine := mail.NewEngine(nil)

	aiSvc := ai.New(ai.Config{
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
		APIKey:  cfgMgr.AIKey(),
	})

	contactsSvc := contacts.New(db)

	w := watcher.New(engine, db, cfg.Sync.Mailbox, time.Duration(cfg.Sync.IntervalSec)*time.Second)
	w.Start()
	defer w.Stop()

	router := api.New(engine, aiSvc, db, contactsSvc, cfgMgr, w)

	server := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: router.Handler(),
	}

	logrus.WithField("addr", cfg.Server.Listen).Info("Router listening")
	if err := server.ListenAndServe(); err != nil {
		logrus.WithError(err).Fatal("HTTP server failed")
	}
}
