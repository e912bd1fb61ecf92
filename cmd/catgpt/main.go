package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/catgpt/ai/llm"
	"github.com/hrygo/catgpt/chat"
	"github.com/hrygo/catgpt/internal/profile"
	"github.com/hrygo/catgpt/internal/version"
	"github.com/hrygo/catgpt/plugin/share"
	"github.com/hrygo/catgpt/plugin/telegram"
	"github.com/hrygo/catgpt/plugin/telegraph"
	"github.com/hrygo/catgpt/store"
	"github.com/hrygo/catgpt/store/db"
)

var rootCmd = &cobra.Command{
	Use:   "catgpt",
	Short: `A Telegram bot that streams LLM replies into live-edited messages, with topic-based conversation history.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Systemd services get their environment from the unit file.
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		instanceProfile := &profile.Profile{
			Mode:            viper.GetString("mode"),
			Data:            viper.GetString("data"),
			DSN:             viper.GetString("dsn"),
			BotToken:        viper.GetString("bot-token"),
			AccessKey:       viper.GetString("access-key"),
			Endpoints:       viper.GetString("endpoints"),
			MetricsAddr:     viper.GetString("metrics-addr"),
			TelegraphAuthor: viper.GetString("telegraph-author"),
			RespondGroup:    viper.GetBool("respond-group"),
			Version:         version.String(),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), terminationSignals...)
		defer stop()

		return run(ctx, instanceProfile)
	},
}

func run(ctx context.Context, instanceProfile *profile.Profile) error {
	dbDriver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		return fmt.Errorf("failed to create db driver: %w", err)
	}
	storeInstance := store.New(dbDriver)
	defer storeInstance.Close()

	if err := storeInstance.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	endpoints, err := llm.LoadEndpoints(instanceProfile.Endpoints)
	if err != nil {
		return err
	}
	presets, err := chat.LoadPresets(instanceProfile.Endpoints)
	if err != nil {
		return err
	}

	var sharer telegram.Sharer
	if instanceProfile.ShareToken != "" {
		exporter, err := share.NewIssueExporter(ctx,
			instanceProfile.ShareOwner, instanceProfile.ShareRepo, instanceProfile.ShareToken)
		if err != nil {
			return err
		}
		sharer = exporter
	}

	bot, err := telegram.NewBot(telegram.Config{
		Token:        instanceProfile.BotToken,
		AccessKey:    instanceProfile.AccessKey,
		RespondGroup: instanceProfile.RespondGroup,
	}, storeInstance, sharer)
	if err != nil {
		return err
	}

	var pager chat.Pager
	if client, err := telegraph.Load(ctx, instanceProfile.Data, instanceProfile.TelegraphAuthor); err != nil {
		slog.Warn("telegraph unavailable, long replies fall back to follow-up messages", "error", err)
	} else {
		pager = client
	}

	topics := chat.NewTopics(storeInstance)
	resolver := chat.NewResolver(storeInstance, topics, endpoints, presets)
	titler := chat.NewTitler(endpoints, topics)
	svc := chat.NewService(storeInstance, topics, resolver, titler, endpoints,
		bot.Messenger(), pager, telegram.Escape, chat.DefaultReplyOptions())
	bot.Bind(svc)

	if instanceProfile.MetricsAddr != "" {
		go serveMetrics(ctx, instanceProfile.MetricsAddr)
	}

	printGreetings(instanceProfile)
	if err := bot.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	slog.Info("shutting down")
	return nil
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("metrics server failed", "error", err)
	}
}

func init() {
	viper.SetDefault("mode", "dev")

	rootCmd.PersistentFlags().String("mode", "dev", `mode of the bot, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("dsn", "", "sqlite database path, defaults to <data>/catgpt.db")
	rootCmd.PersistentFlags().String("bot-token", "", "telegram bot token")
	rootCmd.PersistentFlags().String("access-key", "", "access key users present via /key")
	rootCmd.PersistentFlags().String("endpoints", "", "path of the endpoints config file")
	rootCmd.PersistentFlags().String("metrics-addr", "", "prometheus listen address, empty disables metrics")
	rootCmd.PersistentFlags().String("telegraph-author", "", "author name of the telegra.ph account")
	rootCmd.PersistentFlags().Bool("respond-group", false, "answer unaddressed group messages by default")

	for _, flag := range []string{
		"mode", "data", "dsn", "bot-token", "access-key", "endpoints",
		"metrics-addr", "telegraph-author", "respond-group",
	} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("catgpt")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("CatGPT %s is running...\n", p.Version)
	fmt.Printf("Data directory: %s\n", p.Data)
	fmt.Printf("Mode: %s\n", p.Mode)
	if p.IsDev() {
		fmt.Fprintf(os.Stderr, "Development mode is enabled\nDatabase: %s\n", p.DSN)
	}
}

// isRunningAsSystemdService detects if the process is running under systemd.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
}
