package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bedlam520/hype-bridge/internal/conf"
	"github.com/bedlam520/hype-bridge/internal/infra/feishu"
)

func main() {
	if err := conf.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read .env: %v\n", err)
	}
	cfg, err := conf.Load()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Feishu.AppID == "" || cfg.Feishu.AppSecret == "" {
		fmt.Println("Error: FEISHU_APP_ID and FEISHU_APP_SECRET must be set")
		os.Exit(1)
	}

	if len(os.Args) < 3 {
		fmt.Println("Usage: hype-send <chat_id> <message>")
		os.Exit(1)
	}
	chatID := os.Args[1]
	message := strings.Join(os.Args[2:], " ")

	client := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret, cfg.Logger(os.Stderr))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Engine.SendTimeout+5*time.Second)
	defer cancel()
	if err := client.SendText(ctx, chatID, message); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Message sent successfully!")
}
