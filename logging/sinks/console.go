package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"redoubt/server/logging"
)

const (
	colorReset  = "\x1b[0m"
	colorGray   = "\x1b[90m"
	colorYellow = "\x1b[33m"
	colorRed    = "\x1b[31m"
)

// ConsoleSink renders one human-readable line per event, the format an
// operator tails while a match runs.
type ConsoleSink struct {
	logger   *log.Logger
	useColor bool
}

func NewConsoleSink(w io.Writer, cfg logging.ConsoleConfig) *ConsoleSink {
	return &ConsoleSink{
		logger:   log.New(w, "", log.LstdFlags),
		useColor: cfg.UseColor,
	}
}

func (s *ConsoleSink) Write(event logging.Event) error {
	if s.logger == nil {
		return nil
	}
	var line strings.Builder
	line.WriteString(s.severityTag(event.Severity))
	fmt.Fprintf(&line, " %s tick=%d", event.Type, event.Tick)
	if event.Category != "" {
		fmt.Fprintf(&line, " category=%s", event.Category)
	}
	if ref := describeEntity(event.Actor); ref != "" {
		fmt.Fprintf(&line, " actor=%s", ref)
	}
	if len(event.Targets) > 0 {
		refs := make([]string, 0, len(event.Targets))
		for _, target := range event.Targets {
			refs = append(refs, describeEntity(target))
		}
		fmt.Fprintf(&line, " targets=%s", strings.Join(refs, ","))
	}
	if event.Payload != nil {
		if data, err := json.Marshal(event.Payload); err == nil {
			fmt.Fprintf(&line, " payload=%s", data)
		} else {
			fmt.Fprintf(&line, " payload=%v", event.Payload)
		}
	}
	s.logger.Print(line.String())
	return nil
}

func (s *ConsoleSink) Close(context.Context) error {
	return nil
}

func (s *ConsoleSink) severityTag(sev logging.Severity) string {
	name, color := "INFO", ""
	switch sev {
	case logging.SeverityDebug:
		name, color = "DEBUG", colorGray
	case logging.SeverityWarn:
		name, color = "WARN", colorYellow
	case logging.SeverityError:
		name, color = "ERROR", colorRed
	}
	if !s.useColor || color == "" {
		return name
	}
	return color + name + colorReset
}

func describeEntity(ref logging.EntityRef) string {
	switch {
	case ref.ID == "" && ref.Kind == "":
		return ""
	case ref.ID == "":
		return string(ref.Kind)
	case ref.Kind == "":
		return ref.ID
	}
	return string(ref.Kind) + ":" + ref.ID
}
