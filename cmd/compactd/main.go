package main

import (
	"flag"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/compact-experiment/compact/config"
	"github.com/compact-experiment/compact/internal/network"
	"github.com/compact-experiment/compact/internal/registry"
	"github.com/compact-experiment/compact/internal/service"
	"github.com/compact-experiment/compact/internal/signer"
	"github.com/ethereum/go-ethereum/common"
)

func main() {
	configPath := flag.String("config", "config/config.json", "Path to config.json")
	port := flag.Int("port", 0, "HTTP port (0 = use config.json)")
	registryPath := flag.String("registry-path", "", "Path for persistent registration storage")
	flag.Parse()

	// Load config first (primary source of truth)
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("No config at %s (%v), using defaults", *configPath, err)
		cfg = config.Default()
	}

	if *port != 0 {
		cfg.Port = *port
	}
	if *registryPath != "" {
		cfg.RegistryPath = *registryPath
	}

	// Environment variables override both
	if envPort := os.Getenv("PORT"); envPort != "" {
		if p, err := strconv.Atoi(envPort); err == nil {
			cfg.Port = p
		}
	}
	if envPath := os.Getenv("REGISTRY_PATH"); envPath != "" {
		cfg.RegistryPath = envPath
	}
	if envURL := os.Getenv("SIGNER_URL"); envURL != "" {
		cfg.Signer.URL = envURL
	}
	if envKey := os.Getenv("SIGNER_KEY"); envKey != "" {
		cfg.Signer.KeyHex = envKey
	}

	domain, err := cfg.Domain.CompactDomain()
	if err != nil {
		log.Fatalf("Invalid signing domain: %v", err)
	}

	var accountSigner service.AccountSigner
	switch {
	case cfg.Signer.KeyHex != "":
		ks, err := signer.NewKeySignerFromHex(cfg.Signer.KeyHex)
		if err != nil {
			log.Fatalf("Invalid signer key: %v", err)
		}
		accountSigner = ks
		log.Printf("Signing in-process as %s", ks.Address().Hex())
	case cfg.Signer.URL != "":
		if !common.IsHexAddress(cfg.Signer.Account) {
			log.Fatalf("Remote signer requires a valid account, got %q", cfg.Signer.Account)
		}
		if cfg.Signer.Network.DelayEnabled {
			log.Printf("Network delay simulation enabled: %d-%dms",
				cfg.Signer.Network.MinDelayMs, cfg.Signer.Network.MaxDelayMs)
		}
		client := network.NewHTTPClient(cfg.Signer.Network)
		accountSigner = signer.NewRemoteSigner(cfg.Signer.URL, common.HexToAddress(cfg.Signer.Account), client)
		log.Printf("Signing via %s as %s", cfg.Signer.URL, cfg.Signer.Account)
	default:
		log.Printf("No signer configured, /compact/sign disabled")
	}

	store, err := registry.NewStore(cfg.RegistryPath, cfg.RegistryCache)
	if err != nil {
		log.Fatalf("Failed to open registry: %v", err)
	}

	svc, err := service.NewService(service.Options{
		Domain:       domain,
		Signer:       accountSigner,
		Registry:     store,
		BatchWorkers: cfg.BatchWorkers,
		SignTimeout:  time.Duration(cfg.SignTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		store.Close()
		log.Fatalf("Failed to create service: %v", err)
	}
	defer svc.Close()

	log.Fatal(svc.Start(cfg.Port))
}
