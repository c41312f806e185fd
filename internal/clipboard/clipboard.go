// Package clipboard captures a PNG from the desktop clipboard and attaches
// it to a user turn.
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/ask/internal/conversation"
	"github.com/felixgeelhaar/ask/internal/executor"
)

// Backend is the display server whose clipboard tool is used.
type Backend string

const (
	Xorg        Backend = "xorg"
	Wayland     Backend = "wayland"
	Unsupported Backend = "unsupported"
)

var commands = map[Backend]string{
	Xorg:    "xclip -selection clipboard -t image/png -o",
	Wayland: "wl-paste",
}

var (
	ErrUnsupported = errors.New("unsupported display server: only Xorg and Wayland are supported")
	ErrEmpty       = errors.New("clipboard holds no image")
)

// Command returns the shell command reading an image for b.
func (b Backend) Command() (string, bool) {
	c, ok := commands[b]
	return c, ok
}

// Detect inspects the process list for a running display server.
func Detect(ctx context.Context, r executor.Runner) (Backend, error) {
	res, err := r.Run(ctx, "ps -A")
	if err != nil {
		return Unsupported, fmt.Errorf("failed to list processes: %w", err)
	}
	ps := strings.ToLower(res.Stdout)
	switch {
	case strings.Contains(ps, "xorg"):
		return Xorg, nil
	case strings.Contains(ps, "wayland"):
		return Wayland, nil
	}
	return Unsupported, nil
}

// Capture returns the raw PNG bytes currently on the clipboard.
func Capture(ctx context.Context, r executor.Runner, b Backend) ([]byte, error) {
	cmd, ok := b.Command()
	if !ok {
		return nil, ErrUnsupported
	}
	res, err := r.Run(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("clipboard command failed: %w", err)
	}
	if res.Stdout == "" {
		if msg := strings.TrimSpace(res.Stderr); msg != "" {
			return nil, fmt.Errorf("%w: %s", ErrEmpty, msg)
		}
		return nil, ErrEmpty
	}
	return []byte(res.Stdout), nil
}

// Attach builds a user turn holding text followed by the image.
func Attach(text string, png []byte) conversation.Content {
	return conversation.Multipart(
		conversation.TextPart(text),
		conversation.ImagePart(png, conversation.DefaultImageDetail),
	)
}

// CaptureContent detects the backend, captures the image and attaches it
// to text.
func CaptureContent(ctx context.Context, r executor.Runner, text string) (conversation.Content, error) {
	b, err := Detect(ctx, r)
	if err != nil {
		return conversation.Content{}, err
	}
	png, err := Capture(ctx, r, b)
	if err != nil {
		return conversation.Content{}, err
	}
	return Attach(text, png), nil
}
