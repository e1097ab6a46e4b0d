package main

import (
	"context"
	"flag"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"matchbook/internal/exchange"
	"matchbook/internal/server"
)

func main() {
	address := flag.String("address", "0.0.0.0", "address to listen on")
	port := flag.Int("port", 9001, "port to listen on")
	symbols := flag.String("symbols", "AAPL,MSFT,GOOG", "comma-separated symbols to register at startup")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	market := exchange.New()
	for _, symbol := range strings.Split(*symbols, ",") {
		symbol = strings.TrimSpace(symbol)
		if symbol == "" {
			continue
		}
		market.RegisterSymbol(symbol)
	}

	srv := server.New(*address, *port, market)
	go func() {
		if err := srv.Run(ctx); err != nil {
			log.Fatal().Err(err).Msg("server exited")
		}
	}()

	<-ctx.Done()
}
