package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"coreon/internal/client"
	"coreon/internal/wire"
)

func main() {
	var (
		addr     = flag.String("addr", envOr("COREON_ADDR", "http://127.0.0.1:8080"), "coreond base URL")
		chatID   = flag.Int64("chat", 0, "existing chat id to continue")
		newTitle = flag.String("new", "", "create a chat with this title and talk in it")
		list     = flag.Bool("list", false, "list chats and exit")
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := client.New(client.Config{
		BaseURL: *addr,
		Logger:  zerolog.New(os.Stderr).Level(zerolog.WarnLevel),
	})

	if *list {
		chats, err := c.ListChats(ctx)
		if err != nil {
			fatalf("list chats: %v", err)
		}
		for _, ch := range chats {
			fmt.Printf("%6d  %-30s  last active %s\n", ch.ID, ch.Title, ch.LastActiveAt.Local().Format("2006-01-02 15:04"))
		}
		return
	}

	id := *chatID
	if *newTitle != "" {
		chat, err := c.CreateChat(ctx, *newTitle)
		if err != nil {
			fatalf("create chat: %v", err)
		}
		id = chat.ID
		fmt.Printf("created chat %d (%s)\n", chat.ID, chat.Title)
	}

	if id > 0 {
		msgs, err := c.ListMessages(ctx, id)
		if err != nil {
			fatalf("load history: %v", err)
		}
		for _, m := range msgs {
			fmt.Printf("[%s] %s\n", m.Role, m.Content)
		}
	} else {
		fmt.Println("volatile session: nothing will be saved")
	}

	transcript := client.NewTranscript()
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Print("> ")
			continue
		}
		if line == "/quit" || line == "/exit" {
			return
		}

		err := respond(ctx, c, id, line, transcript)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		if ctx.Err() != nil {
			return
		}
		fmt.Print("> ")
	}
}

func respond(ctx context.Context, c *client.Client, id int64, content string, t *client.Transcript) error {
	streaming := false
	onFrame := func(f wire.Frame) {
		switch f.Type {
		case wire.FrameAIChunk:
			streaming = true
			fmt.Print(f.Content)
		case wire.FrameDone:
			if streaming {
				fmt.Println()
			}
		case wire.FrameError:
			if streaming {
				fmt.Println()
			}
			fmt.Fprintf(os.Stderr, "! %s\n", f.Content)
		}
	}

	if id > 0 {
		return c.Respond(ctx, id, content, t, onFrame)
	}
	return c.RespondVolatile(ctx, content, t, onFrame)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
