package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/markb/routinecat/internal/log"
	"github.com/markb/routinecat/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog over HTTP",
	Long:  `Starts the JSON API for browsing schemas, routines, parameters and definitions.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		host, _ := cmd.Flags().GetString("host")
		domain, _ := cmd.Flags().GetString("https-domain")
		certDir, _ := cmd.Flags().GetString("cert-dir")
		httpAddr, _ := cmd.Flags().GetString("http-addr")
		if domain == "" {
			domain = os.Getenv("ROUTINECAT_HTTPS_DOMAIN")
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := server.New(a.store, a.catalog, a.telemetry)
		addr := fmt.Sprintf("%s:%d", host, port)

		errCh := make(chan error, 1)
		go func() {
			if domain != "" {
				errCh <- srv.ListenAndServeHTTPS(addr, server.HTTPSConfig{
					Domain:   domain,
					CertDir:  certDir,
					HTTPAddr: httpAddr,
				})
				return
			}
			errCh <- srv.ListenAndServe(addr)
		}()

		scheme := "http"
		if domain != "" {
			scheme = "https"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Starting routinecat on %s\n", addr)
		fmt.Fprintf(cmd.OutOrStdout(), "  Catalog API: %s://%s/api/schemas\n", scheme, addr)
		log.Info("server started", "addr", addr, "driver", a.cfg.Driver, "lenient", a.cfg.Lenient)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case sig := <-sigCh:
			log.Info("shutting down", "signal", sig.String())
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("https-domain", "", "Serve HTTPS with a Let's Encrypt certificate for this domain")
	serveCmd.Flags().String("cert-dir", "./certs", "Directory caching HTTPS certificates")
	serveCmd.Flags().String("http-addr", ":80", "Address answering ACME challenges and redirecting to HTTPS")
}
