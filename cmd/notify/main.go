package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/treehole/backend/internal/config"
	"github.com/treehole/backend/internal/database"
	"github.com/treehole/backend/internal/directory"
	"github.com/treehole/backend/internal/logger"
	"github.com/treehole/backend/internal/models"
	"github.com/treehole/backend/internal/notify"
)

// Ops tool for posting notifications directly through the fan-out service.
// It talks to the databases, not the running server, so connected websocket
// clients see these on their next fetch rather than in real time.

var (
	kindFlag      string
	bodyFlag      string
	relatedIDFlag string
	recipientFlag string
	excludeFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "notify",
	Short: "Treehole notification ops tool",
	Long: `Posts notifications through the fan-out service against the
configured databases. Intended for announcements and incident comms.`,
}

var broadcastCmd = &cobra.Command{
	Use:   "broadcast",
	Short: "Send a notification to every user (capped fan-out)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if bodyFlag == "" {
			return fmt.Errorf("--body is required")
		}
		svc, cleanup, err := buildService()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		svc.Broadcast(ctx, notify.BroadcastParams{
			Kind:               models.NotificationKind(kindFlag),
			Body:               bodyFlag,
			RelatedID:          relatedIDFlag,
			ExcludeRecipientID: excludeFlag,
		})
		fmt.Println("Broadcast submitted")
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a notification to a single recipient",
	RunE: func(cmd *cobra.Command, args []string) error {
		if recipientFlag == "" || bodyFlag == "" {
			return fmt.Errorf("--recipient and --body are required")
		}
		svc, cleanup, err := buildService()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		record := svc.Send(ctx, notify.SendParams{
			RecipientID: recipientFlag,
			Kind:        models.NotificationKind(kindFlag),
			Body:        bodyFlag,
			RelatedID:   relatedIDFlag,
		})
		if record == nil {
			fmt.Println("Not sent (duplicate within the dedup window, or rejected; see logs)")
			return nil
		}
		fmt.Printf("Sent notification %s\n", record.ID.Hex())
		return nil
	},
}

func buildService() (*notify.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Initialize(cfg.LogLevel, ""); err != nil {
		return nil, nil, err
	}

	if err := database.Initialize(cfg.DatabaseURL, cfg.Environment); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	mongoDB, err := database.ConnectMongo(ctx, cfg.MongoURL, cfg.MongoDatabase)
	if err != nil {
		_ = database.Close()
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	store := notify.NewMongoStore(mongoDB)
	dir := directory.New(database.DB)
	svc := notify.NewService(store, dir, nil)

	cleanup := func() { _ = database.Close() }
	return svc, cleanup, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&kindFlag, "kind", "system", "Notification kind")
	rootCmd.PersistentFlags().StringVar(&bodyFlag, "body", "", "Notification body text")
	rootCmd.PersistentFlags().StringVar(&relatedIDFlag, "related-id", "", "Related entity id")

	broadcastCmd.Flags().StringVar(&excludeFlag, "exclude", "", "Recipient id to exclude from fan-out")
	sendCmd.Flags().StringVar(&recipientFlag, "recipient", "", "Recipient user id")

	rootCmd.AddCommand(broadcastCmd)
	rootCmd.AddCommand(sendCmd)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
