package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/vibast-solutions/ms-go-gallery/app/repository"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Clear expired reset and refresh credentials",
	Long:  `Null out password reset tokens and refresh tokens whose expiry has passed. Intended to run from cron.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openDatabaseForCommands()
		if err != nil {
			return err
		}
		defer db.Close()

		userRepo := repository.NewUserRepository(db)
		cleared, err := userRepo.ClearExpiredCredentials(context.Background())
		if err != nil {
			return err
		}

		fmt.Printf("cleared expired credentials on %d user(s)\n", cleared)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func openDatabaseForCommands() (*sql.DB, error) {
	_ = godotenv.Load()

	dsn := strings.TrimSpace(os.Getenv("MYSQL_DSN"))
	if dsn == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
