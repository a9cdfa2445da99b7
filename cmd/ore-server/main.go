package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	ore "github.com/Milo123459/ore-app"
	"github.com/Milo123459/ore-app/config"
	"github.com/Milo123459/ore-app/gateway"
	orehttp "github.com/Milo123459/ore-app/http"
	"github.com/Milo123459/ore-app/signer"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.ParseConfig(nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("level", cfg.LogLevel).Msg("invalid log level")
	}
	log = log.Level(level)

	store := signer.NewFileKeyStore(cfg.KeypairPath)
	key, err := loadOrCreateKey(store, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load keypair")
	}
	authority := key.PublicKey()
	log.Info().Stringer("authority", authority).Msg("miner keypair loaded")

	bridge, err := signer.New(key, cfg.RPCEndpoint, signer.WithBridgeLogger(log))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create wallet bridge")
	}

	gw := gateway.New(cfg.RPCEndpoint, authority, bridge, gateway.WithLogger(log))

	proofQuery := ore.NewQuery(func(ctx context.Context) (ore.Proof, error) {
		return gw.GetProof(ctx, authority)
	})
	tokenBalanceQuery := ore.NewQuery(func(ctx context.Context) (uint64, error) {
		return gw.GetTokenBalance(ctx, authority)
	})

	srv := orehttp.NewServer(gw,
		orehttp.WithLogger(log),
		orehttp.WithProofRefresher(proofQuery),
		orehttp.WithTokenBalanceRefresher(tokenBalanceQuery),
	)

	go func() {
		if err := srv.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	proofQuery.Close()
	tokenBalanceQuery.Close()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}

// loadOrCreateKey reads the persisted keypair, generating and
// persisting a fresh one on first run.
func loadOrCreateKey(store *signer.FileKeyStore, log zerolog.Logger) (solana.PrivateKey, error) {
	if text, err := store.Load(); err == nil {
		v := ore.ValidateKeyInput(text)
		if !v.Valid {
			return nil, errors.New("persisted keypair is corrupt")
		}
		return v.Key, nil
	}

	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}
	if err := store.Save(key.String()); err != nil {
		return nil, err
	}
	log.Info().Msg("generated new miner keypair")
	return key, nil
}
