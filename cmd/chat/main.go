package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/peterh/liner"

	"chatconnect/internal/client"
	"chatconnect/internal/logger"
	"chatconnect/internal/view"
)

const historyPreviewLen = 100

type chatApp struct {
	client *client.Client
	conv   *view.Conversation
	line   *liner.State
}

func main() {
	serverURL := os.Getenv("CHATCONNECT_SERVER")
	if serverURL == "" {
		serverURL = "http://localhost:8000"
	}
	log := logger.New(logger.Config{Level: "warn", Pretty: true, Output: os.Stderr})

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	app := &chatApp{
		client: client.New(serverURL, log),
		conv:   &view.Conversation{},
		line:   line,
	}
	app.run()
}

func (a *chatApp) run() {
	printWelcome()
	for {
		input, err := a.line.Prompt("You: ")
		if err != nil {
			// Ctrl+C or EOF
			fmt.Println("\nGoodbye!")
			return
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		a.line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if quit := a.handleCommand(strings.TrimPrefix(input, "/")); quit {
				fmt.Println("\nGoodbye!")
				return
			}
			continue
		}
		a.processMessage(input)
	}
}

// processMessage runs one chat turn: optimistic view update, streaming
// request, finalize or roll back.
func (a *chatApp) processMessage(input string) {
	if err := a.conv.BeginTurn(input); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	fmt.Print("\nAssistant: ")
	fullResponse, err := a.client.Send(context.Background(), input, func(chunk string) {
		fmt.Print(chunk)
		_ = a.conv.AppendChunk(chunk)
	})
	if err != nil {
		_ = a.conv.FailTurn(err.Error())
		fmt.Fprintf(os.Stderr, "\nError: %v\n\n", err)
		return
	}
	_ = a.conv.CompleteTurn(fullResponse)
	fmt.Print("\n\n")
}

// handleCommand runs one slash command and reports whether the app should
// exit.
func (a *chatApp) handleCommand(command string) bool {
	ctx := context.Background()
	switch strings.ToLower(command) {
	case "quit", "exit":
		return true
	case "clear":
		if err := a.conv.Clear(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return false
		}
		if err := a.client.Clear(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return false
		}
		fmt.Println("\nConversation history cleared.")
	case "history":
		messages, length, err := a.client.History(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return false
		}
		line := strings.Repeat("=", 60)
		fmt.Println("\n" + line)
		fmt.Printf("Conversation History (%d messages):\n", length)
		fmt.Println(line)
		for i, msg := range messages {
			content := msg.Content
			if len(content) > historyPreviewLen {
				content = content[:historyPreviewLen] + "..."
			}
			fmt.Printf("\n[%d] %s: %s\n", i, strings.ToUpper(string(msg.Role)), content)
		}
		fmt.Println("\n" + line)
	case "help":
		printWelcome()
	default:
		fmt.Printf("\nUnknown command: /%s\n", command)
	}
	return false
}

func printWelcome() {
	line := strings.Repeat("=", 60)
	fmt.Println("\n" + line)
	fmt.Println("AI Chat Connector")
	fmt.Println(line)
	fmt.Println("\nCommands:")
	fmt.Println("  Type your message and press Enter to chat")
	fmt.Println("  Type '/clear' to clear conversation history")
	fmt.Println("  Type '/history' to view conversation history")
	fmt.Println("  Type '/quit' or '/exit' to exit")
	fmt.Println("  Type '/help' to show this help message")
	fmt.Println("\n" + strings.Repeat("-", 60))
}
