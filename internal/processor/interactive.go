package processor

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// Messages of the interactive loop
const (
	MsgInitFailed        = "Failed to initialize translation system"
	MsgReady             = "Translation system ready!"
	MsgPrompt            = "Enter text to translate (or 'q' to quit): "
	MsgTranslationFailed = "Translation failed"
)

// RunInteractive sets the session up and translates lines read from the
// input until "q" or end of input
func (p *Processor) RunInteractive(ctx context.Context) error {
	if err := p.local.Setup(ctx); err != nil {
		fmt.Fprintln(p.out, MsgInitFailed)
		return err
	}
	fmt.Fprintln(p.out, MsgReady)

	scanner := bufio.NewScanner(p.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if ctx.Err() != nil {
			return nil
		}

		fmt.Fprint(p.out, MsgPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(p.out)
			return scanner.Err()
		}

		text := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(text, "q") {
			return nil
		}

		translated, err := p.translate(ctx, text)
		if err != nil {
			fmt.Fprintln(p.out, MsgTranslationFailed)
			continue
		}
		fmt.Fprintf(p.out, "Translation: %s\n", translated)
	}
}
