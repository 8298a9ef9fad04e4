package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ward/config"
	"ward/db"
	"ward/hub"
	"ward/llm"
	"ward/session"
	"ward/stt"
	"ward/web"
	"ward/ws"
)

var logger *log.Logger

var rootCmd = &cobra.Command{
	Use:   "ward",
	Short: "Real-time clinical-session engine",
	Long: "ward accepts live transcript and audio input during doctor-patient " +
		"encounters, attributes speakers, and fans transcript lines and " +
		"AI-generated suggestions out to session observers.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the session engine server",
	RunE:  runServe,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(serveCmd)

	rootCmd.PersistentFlags().String("database-url", "", "Postgres connection URL")
	rootCmd.PersistentFlags().String("deepgram-api-key", "", "Deepgram API key")
	rootCmd.PersistentFlags().String("openai-api-key", "", "OpenAI API key")
	serveCmd.Flags().Int("port", 8080, "HTTP server port")
	serveCmd.Flags().Int("batch-threshold", 5, "Transcript lines per suggestion batch")
	serveCmd.Flags().Duration("batch-interval", 45*time.Second, "Ceiling between suggestion batches")
	serveCmd.Flags().Duration("silence-gap", 2*time.Second, "Silence treated as a speaker turn change")

	viper.BindPFlag("database_url", rootCmd.PersistentFlags().Lookup("database-url"))
	viper.BindPFlag("deepgram_api_key", rootCmd.PersistentFlags().Lookup("deepgram-api-key"))
	viper.BindPFlag("openai_api_key", rootCmd.PersistentFlags().Lookup("openai-api-key"))
	viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("batch_threshold", serveCmd.Flags().Lookup("batch-threshold"))
	viper.BindPFlag("batch_interval", serveCmd.Flags().Lookup("batch-interval"))
	viper.BindPFlag("silence_gap", serveCmd.Flags().Lookup("silence-gap"))
}

func initConfig() {
	viper.SetConfigName("ward")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("ward")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Printf("Error reading config file: %s\n", err)
		}
	}

	logger = log.New(os.Stdout)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if err := config.Validate(); err != nil {
		return err
	}

	pool, store, err := db.OpenDatabase(ctx, viper.GetString(config.KeyDatabaseURL))
	if err != nil {
		return err
	}
	defer pool.Close()

	transcriber, err := stt.NewDeepgramClient(viper.GetString(config.KeyDeepgramAPIKey), logger)
	if err != nil {
		return err
	}
	suggester := llm.NewOpenAISuggester(viper.GetString(config.KeyOpenAIAPIKey), "", logger)

	broadcastHub := hub.New(logger)
	orch := session.NewOrchestrator(store, broadcastHub, transcriber, suggester, config.Engine(), logger)
	defer orch.Close()

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	web.Routes(router, web.NewHandler(store, orch, logger), ws.NewHandler(orch, logger))

	port := viper.GetInt(config.KeyPort)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "url", fmt.Sprintf("http://localhost:%d", port))
		errCh <- srv.ListenAndServe()
	}()

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-sc:
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
