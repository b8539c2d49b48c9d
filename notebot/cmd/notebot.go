// Command-line REPL for talking to the note pipelines without Telegram
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"notebot/notebot/app"
	"notebot/notebot/config"
	"notebot/notebot/controllers"
	"notebot/notebot/utils/color"
	"notebot/notebot/utils/logging"
)

func main() {
	args := os.Args[1:]
	if len(args) < 1 || args[0] != "connect" {
		fmt.Println("Notebot CLI usage:")
		fmt.Println("  notebot-cli connect [user_id]   # Open a local note session")
		os.Exit(1)
	}

	var userID int64 = 1
	if len(args) >= 2 {
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fmt.Println("user_id must be a number")
			os.Exit(1)
		}
		userID = id
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	logging.InitLogger(cfg.LogDir, false)
	if os.Getenv("TERM") == "dumb" {
		color.Disable()
	}
	defer logging.Sync()

	ctx := context.Background()
	provider, err := app.New(ctx, cfg)
	if err != nil {
		logging.ErrorLogger.Error("database connection error", zap.Error(err))
		fmt.Println("database connection error:", err)
		os.Exit(1)
	}
	defer provider.Close()

	logging.AppLogger.Info("Notebot CLI session started", zap.Int64("user_id", userID))
	fmt.Printf("\n📒 Notebot connected as user %d\n\n", userID)
	fmt.Println("Type a note to save it, or:")
	fmt.Println("  /search <query>")
	fmt.Println("  /analyze")
	fmt.Println("  /list")
	fmt.Println("Type 'exit' to quit.")
	fmt.Println()

	status := func(text string) { fmt.Println("  " + color.Status(text)) }

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(color.Prompt("notebot> "))
		if !scanner.Scan() {
			break // EOF or error
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "exit" || line == "quit" {
			fmt.Println("👋 Goodbye!")
			break
		}
		if line == "" {
			continue
		}

		if err := handleLine(ctx, provider.Notes, userID, line, status); err != nil {
			logging.ErrorLogger.Error("CLI command failed", zap.Error(err))
			fmt.Println(color.Error(controllers.ErrorMessage))
		}
		fmt.Println()
	}
}

func handleLine(ctx context.Context, notes *controllers.NotesController, userID int64, line string, status controllers.StatusFunc) error {
	command, rest, _ := strings.Cut(line, " ")
	switch command {
	case "/search":
		out, err := notes.Search(ctx, userID, rest, status)
		if err != nil {
			return err
		}
		fmt.Println(color.Result(out))
	case "/analyze":
		out, err := notes.Analyze(ctx, userID, status)
		if err != nil {
			return err
		}
		fmt.Println(color.Result(out))
	case "/list":
		list, err := notes.ListNotes(ctx, userID)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No notes found.")
		}
		for _, n := range list {
			fmt.Printf("#%d %s  %s\n   %s\n", n.ID, n.CreatedAt.Format("2006-01-02 15:04"), n.Tags, n.Summary)
		}
	default:
		if strings.HasPrefix(command, "/") {
			fmt.Println(color.Warning("Unknown command: " + command))
			return nil
		}
		receipt, err := notes.AddTextNote(ctx, userID, line, status)
		if err != nil {
			return err
		}
		fmt.Println(color.Result(receipt.Message()))
	}
	return nil
}
