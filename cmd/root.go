package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"db-transfer/internal/logging"
	"db-transfer/internal/schema"
	"db-transfer/internal/store"
)

var cfgFile string

var RootCmd = &cobra.Command{
	Use:   "db-transfer",
	Short: "Move whole databases between engines through a declared schema",
	Long: `
  ____  ____    _____ ____      _    _   _ ____  _____ _____ ____
 |  _ \| __ )  |_   _|  _ \    / \  | \ | / ___||  ___| ____|  _ \
 | | | |  _ \    | | | |_) |  / _ \ |  \| \___ \| |_  |  _| | |_) |
 | |_| | |_) |   | | |  _ <  / ___ \| |\  |___) |  _| | |___|  _ <
 |____/|____/    |_| |_| \_\/_/   \_\_| \_|____/|_|   |_____|_| \_\

DB TRANSFER 🦅 - Schema-checked database import, export and transfer
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup(viper.GetString("settings.log_level"), viper.GetString("settings.log_format"))
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := RootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Println("❌", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Define flags
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./db-transfer.yaml)")
	RootCmd.PersistentFlags().String("schema", "", "XMLDB schema file (overrides settings.schema_file)")
	RootCmd.PersistentFlags().String("log-level", "", "debug, info, warn or error (overrides settings.log_level)")

	viper.BindPFlag("settings.schema_file", RootCmd.PersistentFlags().Lookup("schema"))
	viper.BindPFlag("settings.log_level", RootCmd.PersistentFlags().Lookup("log-level"))

	viper.SetDefault("settings.schema_file", "install.xml")
	viper.SetDefault("settings.check_schema", true)
	viper.SetDefault("settings.default_count", 100)
	viper.SetDefault("settings.log_level", "info")
	viper.SetDefault("settings.log_format", "text")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// 1. Executable Directory (Priority 1)
		ex, err := os.Executable()
		if err == nil {
			exePath := filepath.Dir(ex)
			viper.AddConfigPath(exePath)
		}

		// 2. Current Directory (Priority 2)
		viper.AddConfigPath(".")

		viper.SetConfigName("db-transfer")
		viper.SetConfigType("yaml")
	}

	// SETTINGS_LOG_LEVEL overrides settings.log_level, and so on.
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func loadSchema() (*schema.Document, error) {
	path := viper.GetString("settings.schema_file")
	doc, err := schema.LoadFile(path)
	if err != nil {
		return nil, err
	}
	slog.Debug("schema loaded", "path", path, "tables", len(doc.Tables), "version", doc.Version)
	return doc, nil
}

// systemVersion is the version data must be compatible with. Empty means
// the schema document's version.
func systemVersion() string {
	return viper.GetString("settings.version")
}

func openStore(ctx context.Context, cfg *DBConfig) (*store.SQL, error) {
	db, err := store.Open(ctx, cfg.Driver, cfg.DSN, cfg.Schema, slog.Default())
	if err != nil {
		return nil, err
	}
	fmt.Printf("🦅 Connected to %s (%s)\n", cfg.Name, cfg.Driver)
	return db, nil
}

// openActive loads the schema and connects to the active database.
func openActive(ctx context.Context) (*schema.Document, *store.SQL, error) {
	doc, err := loadSchema()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := GetActiveDBConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return doc, db, nil
}
