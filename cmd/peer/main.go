package main

import (
	goflag "flag"

	"github.com/babelcall/babelcall/pkg/config"
	"github.com/babelcall/babelcall/pkg/logger"
	"github.com/babelcall/babelcall/pkg/os"
	"github.com/babelcall/babelcall/pkg/peer"
	flag "github.com/spf13/pflag"
)

var Version = "?"

func main() {
	conf := config.NewPeerConfig()
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	conf.ParseFlags()

	log := logger.NewConsole(conf.Peer.Debug, "p", false)

	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}
	p, err := peer.New(conf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("service fail")
	}
	if err := p.Start(); err != nil {
		log.Fatal().Err(err).Msg("couldn't enter the call")
	}
	defer p.Stop()

	select {
	case <-os.ExpectTermination():
	case <-p.Done():
		log.Info().Msg("The relay connection was closed")
	}
}
