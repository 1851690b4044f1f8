package main

import (
	"errors"
	"io"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vibing/gridwire/config"
	"github.com/vibing/gridwire/frag"
	"github.com/vibing/gridwire/transport"
)

func echoCmd() *cobra.Command {
	var (
		configPath  string
		listenAddr  string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "echo",
		Short: "Run a frame echo server",
		Long: `Echo listens for framed connections and sends every completed
logical message back with the same correlation id and type. Useful for
exercising client implementations of the wire protocol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := zerolog.New(os.Stderr).With().Timestamp().Logger()

			cfg := config.Default()
			if configPath != "" {
				var err error
				cfg, err = config.Load(configPath)
				if err != nil {
					return err
				}
			}

			metrics := transport.NewMetrics(prometheus.DefaultRegisterer)
			if metricsAddr != "" {
				go func() {
					http.Handle("/metrics", promhttp.Handler())
					if err := http.ListenAndServe(metricsAddr, nil); err != nil {
						log.Error().Err(err).Msg("metrics server stopped")
					}
				}()
			}

			opts := append(transport.ConfigOptions(cfg.Protocol),
				transport.WithLogger(log),
				transport.WithMetrics(metrics),
			)
			l, err := transport.Listen("tcp", listenAddr, opts...)
			if err != nil {
				return err
			}
			defer l.Close()
			log.Info().Stringer("addr", l.Addr()).Msg("echo server listening")

			for {
				conn, err := l.Accept()
				if err != nil {
					if errors.Is(err, net.ErrClosed) {
						return nil
					}
					return err
				}
				go serveEcho(conn, log)
			}
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Protocol config file (YAML)")
	cmd.Flags().StringVarP(&listenAddr, "listen", "l", ":5701", "Listen address")
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "Serve Prometheus metrics on this address")

	return cmd
}

func serveEcho(conn *transport.Conn, log zerolog.Logger) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()

	for {
		logical, err := conn.ReadLogical()
		if err != nil {
			// A framing violation poisons only one correlation id;
			// keep the connection and wait for the next message.
			if errors.Is(err, frag.ErrProtocolViolation) {
				continue
			}
			if !errors.Is(err, io.EOF) {
				log.Warn().Err(err).Str("remote", remote).Msg("read failed")
			}
			return
		}
		err = conn.WriteLogical(logical.Payload, logical.CorrelationID, logical.Version, logical.Type)
		if err != nil {
			log.Warn().Err(err).Str("remote", remote).Msg("write failed")
			return
		}
	}
}
