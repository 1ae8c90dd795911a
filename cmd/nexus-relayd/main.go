package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kofany/nexus-sub000/internal/backend"
	"github.com/kofany/nexus-sub000/internal/backend/memory"
	"github.com/kofany/nexus-sub000/internal/bridge"
	"github.com/kofany/nexus-sub000/internal/config"
	"github.com/kofany/nexus-sub000/internal/observability"
	"github.com/kofany/nexus-sub000/internal/server"
)

func main() {
	var (
		configPath   = flag.String("config", "nexus-relayd.toml", "path to TOML configuration")
		overridePath = flag.String("override", "", "optional local override TOML")
		writeConfig  = flag.Bool("write-config", false, "write a starter config and exit")
		force        = flag.Bool("force", false, "overwrite existing file with -write-config")
	)
	flag.Parse()

	if *writeConfig {
		if err := config.WriteTemplate(*configPath, *force); err != nil {
			fmt.Fprintf(os.Stderr, "nexus-relayd: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", *configPath)
		return
	}

	cfg, err := loadConfig(*configPath, *overridePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nexus-relayd: %v\n", err)
		os.Exit(1)
	}

	logger := observability.InitLogger(cfg.Name)

	sess := memory.NewSession("relay")
	seedDemo(sess, cfg.Demo)
	provider := &memory.Provider{Password: cfg.Auth.Password, Sess: sess}

	relayCfg, err := config.RelayConfig(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid relay configuration")
	}

	b := bridge.New(provider, relayCfg, logger)
	if addr := cfg.Relay.TCPAddr; addr != "" {
		if err := b.ListenTCP(addr); err != nil {
			logger.Fatal().Err(err).Str("addr", addr).Msg("tcp listener failed")
		}
	}

	srv := server.New(cfg, b, logger)
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("http surfaces failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info().Msg("shutting down")

	drain, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(drain); err != nil {
		logger.Warn().Err(err).Msg("http shutdown incomplete")
	}
	b.Shutdown()
}

// seedDemo creates the configured demo channels so a freshly started
// daemon has something to serve.
func seedDemo(sess *memory.Session, seeds []config.DemoSeed) {
	networks := map[string]bool{}
	for _, seed := range seeds {
		if !networks[seed.Network] {
			sess.AddNetwork(seed.Network)
			networks[seed.Network] = true
		}
		if seed.Channel == "" {
			continue
		}
		id := sess.AddChannel(seed.Network, seed.Channel, seed.Title)
		if len(seed.Members) > 0 {
			members := make([]backend.Member, 0, len(seed.Members))
			for _, nick := range seed.Members {
				members = append(members, backend.Member{Nick: nick})
			}
			if err := sess.SetMembers(id, members); err != nil {
				continue
			}
		}
	}
}
