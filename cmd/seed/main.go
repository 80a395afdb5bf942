package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"son1k-dispatch/internal/config"
	"son1k-dispatch/internal/domain/model"
	pg "son1k-dispatch/internal/infra/db/postgres"
)

// seedFile mirrors the operator-maintained fleet definition.
type seedFile struct {
	Accounts []struct {
		ID            string `yaml:"id"`
		CredentialRef string `yaml:"credential_ref"`
		Priority      int    `yaml:"priority"`
		MaxDailyUsage int    `yaml:"max_daily_usage"`
	} `yaml:"accounts"`
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	accountsPath := flag.String("accounts", "accounts.yaml", "path to the account seed file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	b, err := os.ReadFile(*accountsPath)
	if err != nil {
		log.Fatalf("read accounts file: %v", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(b, &seed); err != nil {
		log.Fatalf("parse accounts file: %v", err)
	}
	if len(seed.Accounts) == 0 {
		log.Fatalf("no accounts in %s", *accountsPath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	repo := pg.NewPostgresAccountRepo(pool)
	for _, s := range seed.Accounts {
		acc, err := model.NewAccount(s.ID, s.CredentialRef, s.Priority, s.MaxDailyUsage)
		if err != nil {
			log.Fatalf("account %q: invalid definition", s.ID)
		}
		// keep existing health counters on re-seed; only refresh configuration
		if existing, ferr := repo.FindByID(ctx, s.ID); ferr == nil {
			existing.CredentialRef = acc.CredentialRef
			existing.Priority = acc.Priority
			existing.MaxDailyUsage = acc.MaxDailyUsage
			acc = existing
		}
		if err := repo.Save(ctx, nil, acc); err != nil {
			log.Fatalf("save account %q: %v", s.ID, err)
		}
		fmt.Printf("seeded: %s (priority=%d, max_daily=%d)\n", acc.ID, acc.Priority, acc.MaxDailyUsage)
	}

	fmt.Println("✅ Seeding complete.")
}
