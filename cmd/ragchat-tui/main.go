// ABOUTME: Interactive terminal client for the ragchat session controller.
// ABOUTME: Readline-style loop with slash commands for chats, documents and reports.

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/ragchat/internal/api"
	"github.com/2389/ragchat/internal/config"
	"github.com/2389/ragchat/internal/docs"
	"github.com/2389/ragchat/internal/export"
	"github.com/2389/ragchat/internal/session"
	"github.com/2389/ragchat/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file")
	server := flag.String("server", "", "Service URL (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
	if *server != "" {
		cfg.Server.URL = *server
	}

	logger := newLogger(cfg.Logging)

	client := api.New(cfg.Server.URL, cfg.Server.RequestTimeout, logger)
	controller := session.New(store.NewMemory(), client, session.NewBroadcaster(logger), logger)
	registry := docs.NewRegistry(client, cfg.Ingest.PollInterval, cfg.Ingest.PollTimeout, logger)

	fmt.Printf("ragchat connected to %s\n", cfg.Server.URL)
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := &app{
		cfg:        cfg,
		controller: controller,
		registry:   registry,
	}
	if err := app.run(ctx); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

type app struct {
	cfg        *config.Config
	controller *session.Controller
	registry   *docs.Registry
}

func (a *app) run(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	for {
		a.printPrompt()

		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)
		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else if err := scanner.Err(); err != nil {
				errCh <- err
			} else {
				errCh <- io.EOF
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, err := a.dispatch(ctx, input)
			if err != nil {
				color.Red("%v", err)
			}
			if quit {
				return nil
			}
			continue
		}

		a.send(ctx, input)
	}
}

func (a *app) printPrompt() {
	if conv, ok := a.controller.Active(); ok {
		fmt.Printf("[%s]> ", conv.Title)
	} else {
		fmt.Print("> ")
	}
}

// dispatch handles a slash command. The bool result reports a quit request.
func (a *app) dispatch(ctx context.Context, input string) (bool, error) {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/exit", "/q":
		return true, nil
	case "/help":
		printHelp()
	case "/new":
		conv := a.controller.StartNewChat()
		color.Green("Started %s", conv.Title)
	case "/list":
		a.listConversations()
	case "/switch":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: /switch <number|id>")
		}
		return false, a.switchConversation(args[0])
	case "/delete":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: /delete <number|id>")
		}
		return false, a.deleteConversation(args[0])
	case "/history":
		a.printHistory()
	case "/import":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: /import <conversation-id>")
		}
		conv, err := a.controller.ImportConversation(ctx, args[0])
		if err != nil {
			return false, err
		}
		color.Green("Imported %q (%d messages)", conv.Title, len(conv.Messages))
	case "/docs":
		return false, a.listDocuments(ctx)
	case "/upload":
		if len(args) == 0 {
			return false, fmt.Errorf("usage: /upload <file>...")
		}
		return false, a.uploadDocuments(ctx, args)
	case "/rmdoc":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: /rmdoc <document-id>")
		}
		if err := a.registry.Delete(ctx, args[0]); err != nil {
			return false, err
		}
		color.Green("Document deleted")
	case "/report":
		path, err := a.controller.SaveReport(ctx, a.cfg.Reports.OutputDir)
		if err != nil {
			return false, err
		}
		color.Green("Report saved to %s", path)
	case "/export":
		conv, ok := a.controller.Active()
		if !ok {
			return false, fmt.Errorf("no active conversation")
		}
		path, err := export.WriteTranscript(conv, a.cfg.Reports.OutputDir)
		if err != nil {
			return false, err
		}
		color.Green("Transcript saved to %s", path)
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", cmd)
	}
	return false, nil
}

func (a *app) send(ctx context.Context, text string) {
	thinking := color.New(color.Faint, color.Italic)
	thinking.Println("thinking...")

	if err := a.controller.SendMessage(ctx, text); err != nil {
		color.Red("%v", err)
		return
	}

	conv, ok := a.controller.Active()
	if !ok || len(conv.Messages) == 0 {
		return
	}
	reply := conv.Messages[len(conv.Messages)-1]
	fmt.Println(reply.Content)

	if len(reply.Sources) > 0 {
		dim := color.New(color.Faint)
		dim.Println("sources:")
		for _, src := range reply.Sources {
			dim.Printf("  %s (%.2f)\n", src.Source, src.Score)
		}
	}
	fmt.Println()
}

func (a *app) listConversations() {
	conversations := a.controller.Conversations()
	if len(conversations) == 0 {
		fmt.Println("No conversations yet")
		return
	}

	cyan := color.New(color.FgCyan)
	activeID := a.controller.ActiveID()
	for i, conv := range conversations {
		marker := " "
		if conv.ID == activeID {
			marker = "*"
		}
		cyan.Printf("%s %d. %s", marker, i+1, conv.Title)
		fmt.Printf("  (%d messages, updated %s)\n",
			len(conv.Messages), conv.UpdatedAt.Format("15:04:05"))
	}
}

// resolveConversation accepts a 1-based list position or a conversation id.
func (a *app) resolveConversation(arg string) (string, error) {
	conversations := a.controller.Conversations()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(conversations) {
			return "", fmt.Errorf("no conversation %d", n)
		}
		return conversations[n-1].ID, nil
	}
	for _, conv := range conversations {
		if conv.ID == arg {
			return conv.ID, nil
		}
	}
	return "", fmt.Errorf("no conversation %q", arg)
}

func (a *app) switchConversation(arg string) error {
	id, err := a.resolveConversation(arg)
	if err != nil {
		return err
	}
	a.controller.SelectConversation(id)
	return nil
}

func (a *app) deleteConversation(arg string) error {
	id, err := a.resolveConversation(arg)
	if err != nil {
		return err
	}
	a.controller.DeleteConversation(id)
	color.Green("Conversation deleted")
	return nil
}

func (a *app) printHistory() {
	conv, ok := a.controller.Active()
	if !ok {
		fmt.Println("No active conversation")
		return
	}

	cyan := color.New(color.FgCyan)
	for _, msg := range conv.Messages {
		cyan.Printf("%s: ", msg.Role)
		if msg.IsStreaming {
			fmt.Println("(pending)")
			continue
		}
		fmt.Println(msg.Content)
	}
	if banner := a.controller.LastError(); banner != "" {
		color.Yellow("! %s", banner)
	}
}

func (a *app) listDocuments(ctx context.Context) error {
	records, err := a.registry.Refresh(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No documents uploaded")
		return nil
	}

	for _, rec := range records {
		printDocument(rec)
	}
	return nil
}

func (a *app) uploadDocuments(ctx context.Context, paths []string) error {
	var uploads []api.Upload
	var names []string
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		closers = append(closers, f)
		name := filepath.Base(path)
		uploads = append(uploads, api.Upload{
			Filename:    name,
			ContentType: mime.TypeByExtension(filepath.Ext(name)),
			Reader:      f,
		})
		names = append(names, name)
	}

	if _, err := a.registry.Upload(ctx, uploads); err != nil {
		return err
	}
	color.Green("Uploaded %d file(s), waiting for processing...", len(uploads))

	records, err := a.registry.AwaitProcessing(ctx, names)
	if err == docs.ErrStillProcessing {
		color.Yellow("Still processing; check /docs later")
		err = nil
	}
	if err != nil {
		return err
	}
	for _, rec := range records {
		printDocument(rec)
	}
	return nil
}

func printDocument(rec docs.Record) {
	var status string
	switch rec.Status {
	case docs.StatusProcessed:
		status = color.GreenString(string(rec.Status))
	case docs.StatusError:
		status = color.RedString(string(rec.Status))
	default:
		status = color.YellowString(string(rec.Status))
	}
	fmt.Printf("  %s  %s", rec.Filename, status)
	if rec.ChunksCount != nil {
		fmt.Printf("  (%d chunks)", *rec.ChunksCount)
	}
	fmt.Println()
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /new              Start a new chat")
	fmt.Println("  /list             List conversations")
	fmt.Println("  /switch <n|id>    Switch active conversation")
	fmt.Println("  /delete <n|id>    Delete a conversation")
	fmt.Println("  /history          Show active conversation")
	fmt.Println("  /import <id>      Import a server-side conversation")
	fmt.Println("  /docs             List uploaded documents")
	fmt.Println("  /upload <file>..  Upload documents (PDF, DOCX, PPTX)")
	fmt.Println("  /rmdoc <id>       Delete a document")
	fmt.Println("  /report           Save a PDF report of the active chat")
	fmt.Println("  /export           Save an HTML transcript of the active chat")
	fmt.Println("  /quit             Exit")
}
