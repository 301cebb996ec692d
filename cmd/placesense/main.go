package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/placesense/placesense/internal/profile"
	"github.com/placesense/placesense/server"
	"github.com/placesense/placesense/store"
	"github.com/placesense/placesense/store/db"
)

const greetingBanner = `placesense - personalized place recommendations`

var rootCmd = &cobra.Command{
	Use:   "placesense",
	Short: "An AI-personalized place recommendation service",
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:           viper.GetString("mode"),
			Addr:           viper.GetString("addr"),
			Port:           viper.GetInt("port"),
			Data:           viper.GetString("data"),
			Driver:         viper.GetString("driver"),
			DSN:            viper.GetString("dsn"),
			Version:        "0.3.0",
			AIAPIKey:       viper.GetString("ai-api-key"),
			AIBaseURL:      viper.GetString("ai-base-url"),
			AIModel:        viper.GetString("ai-model"),
			PlacesAPIKey:   viper.GetString("places-api-key"),
			PlacesBaseURL:  viper.GetString("places-base-url"),
			WeatherBaseURL: viper.GetString("weather-base-url"),
			RedisAddr:      viper.GetString("redis-addr"),
			RedisPassword:  viper.GetString("redis-password"),
			CacheTTL:       viper.GetDuration("cache-ttl"),
		}
		if err := instanceProfile.Validate(); err != nil {
			slog.Error("invalid profile", "error", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		dbDriver, err := db.NewDBDriver(instanceProfile)
		if err != nil {
			slog.Error("failed to create db driver", "error", err)
			os.Exit(1)
		}

		storeInstance := store.New(dbDriver, instanceProfile)
		s, err := server.NewServer(ctx, instanceProfile, storeInstance)
		if err != nil {
			slog.Error("failed to create server", "error", err)
			os.Exit(1)
		}

		if err := s.Start(ctx); err != nil {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}

		fmt.Printf("%s\nVersion %s, mode %s, listening on %s:%d\n",
			greetingBanner, instanceProfile.Version, instanceProfile.Mode,
			instanceProfile.Addr, instanceProfile.Port)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		shutdownCtx := context.Background()
		s.Shutdown(shutdownCtx)
	},
}

func init() {
	viper.SetDefault("mode", "demo")
	viper.SetDefault("addr", "")
	viper.SetDefault("port", 8231)
	viper.SetDefault("data", ".")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("ai-base-url", "https://api.openai.com/v1")
	viper.SetDefault("ai-model", "gpt-4o-mini")
	viper.SetDefault("cache-ttl", 24*time.Hour)

	rootCmd.PersistentFlags().String("mode", "demo", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8231, "port of server")
	rootCmd.PersistentFlags().String("data", ".", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("placesense")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("failed to execute command", "error", err)
		os.Exit(1)
	}
}
