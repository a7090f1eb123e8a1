package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Martin-Hayot/auctionhub/configs"
	"github.com/Martin-Hayot/auctionhub/internal/app"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// cli carries the state shared by the admin commands.
type cli struct {
	out       io.Writer
	configDir string
	debug     bool
	cfg       *configs.Config
	open      func(cfg *configs.Config) (*app.App, error)
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "auctionhub",
		Short:         "Administer the AuctionHub store, jobs and backups",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.debug {
				log.SetLevel(log.DebugLevel)
			}
			cfg, err := configs.LoadConfigFrom(c.configDir)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			c.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(c.out)

	root.PersistentFlags().StringVar(&c.configDir, "config", "./configs", "directory holding config.yaml")
	root.PersistentFlags().BoolVar(&c.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newMigrateCmd(c),
		newSeedCmd(c),
		newCleanupCmd(c),
		newBackupCmd(c),
		newJobsCmd(c),
		newLogsCmd(c),
	)
	return root
}

// withApp opens the application for the duration of fn.
func (c *cli) withApp(fn func(a *app.App) error) error {
	a, err := c.open(c.cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func main() {
	// Load .env file early so environment variables are available
	if err := godotenv.Load("./configs/.env"); err != nil {
		log.Debug("No .env file found")
	}

	c := &cli{out: os.Stdout, open: app.Open}
	if err := newRootCmd(c).ExecuteContext(context.Background()); err != nil {
		log.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
