// ABOUTME: Renders a conversation as a standalone HTML transcript
// ABOUTME: Message bodies are markdown converted with goldmark; sources listed below each answer

package export

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/yuin/goldmark"

	"github.com/2389/ragchat/internal/store"
)

var transcriptTmpl = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 46rem; margin: 2rem auto; padding: 0 1rem; }
.message { margin: 1.5rem 0; }
.role { font-weight: bold; text-transform: capitalize; color: #444; }
.sources { font-size: 0.85rem; color: #666; border-left: 3px solid #ddd; padding-left: 0.75rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{len .Messages}} messages &middot; {{.CreatedAt}}</p>
{{range .Messages}}<div class="message">
<div class="role">{{.Role}}</div>
<div class="content">{{.Body}}</div>
{{if .Sources}}<div class="sources">
<strong>Sources</strong>
<ul>{{range .Sources}}<li>{{.Source}} (score {{printf "%.2f" .Score}}): {{.Content}}</li>{{end}}</ul>
</div>{{end}}
</div>
{{end}}</body>
</html>
`))

type transcriptMessage struct {
	Role    string
	Body    template.HTML
	Sources []store.Source
}

type transcriptData struct {
	Title     string
	CreatedAt string
	Messages  []transcriptMessage
}

// Transcript renders a conversation to a self-contained HTML document.
// Unresolved streaming placeholders are skipped; they carry no content yet.
func Transcript(conv *store.Conversation) ([]byte, error) {
	data := transcriptData{
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt.Format("2006-01-02 15:04"),
	}
	for _, msg := range conv.Messages {
		if msg.IsStreaming {
			continue
		}
		var body bytes.Buffer
		if err := goldmark.Convert([]byte(msg.Content), &body); err != nil {
			return nil, fmt.Errorf("converting message %s: %w", msg.ID, err)
		}
		data.Messages = append(data.Messages, transcriptMessage{
			Role:    msg.Role,
			Body:    template.HTML(body.String()),
			Sources: msg.Sources,
		})
	}

	var out bytes.Buffer
	if err := transcriptTmpl.Execute(&out, data); err != nil {
		return nil, fmt.Errorf("rendering transcript: %w", err)
	}
	return out.Bytes(), nil
}

// WriteTranscript writes the rendered transcript under dir and returns the
// written path.
func WriteTranscript(conv *store.Conversation, dir string) (string, error) {
	html, err := Transcript(conv)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("transcript_%s.html", conv.ID))
	if err := os.WriteFile(path, html, 0o644); err != nil {
		return "", fmt.Errorf("writing transcript: %w", err)
	}
	return path, nil
}
