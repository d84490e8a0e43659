package logger

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// Glyphs recognized inside log messages. Duplicated from sym so the logger
// never depends on packages that may themselves log.
var messageGlyphs = []string{"꩜", "✿", "❀", "⊔", "⨳", "⋈", "↺", "⎇"}

const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"
)

// palette is one ANSI color scheme for console output.
type palette struct {
	fg         string   // base message text
	time       string   // timestamp
	id         string   // job IDs, repo slugs, request IDs
	number     string   // counts and durations
	stage      string   // bracketed stage markers: [clone], [extract], [ingest]
	glyph      string   // subsystem glyphs
	components []string // rotated per component name for visual grouping
	yellow     string
	yellowBg   string
	red        string
	redBg      string
}

// Gruvbox Dark (warm, muted, easy on eyes)
var gruvbox = palette{
	fg:         "\x1b[38;5;223m", // soft cream (#ebdbb2)
	time:       "\x1b[38;5;108m", // muted cyan-green (#8ec07c)
	id:         "\x1b[38;5;109m", // soft blue (#83a598)
	number:     "\x1b[38;5;175m", // muted purple (#d3869b)
	stage:      "\x1b[38;5;208m", // warm orange (#fe8019)
	glyph:      "\x1b[38;5;142m", // muted green (#b8bb26)
	components: []string{"\x1b[38;5;208m", "\x1b[38;5;214m"},
	yellow:     "\x1b[38;5;214m", // soft yellow (#fabd2f)
	yellowBg:   "\x1b[48;5;58m",
	red:        "\x1b[38;5;167m", // warm red (#fb4934)
	redBg:      "\x1b[48;5;88m",
}

// Everforest Dark (natural forest greens, strong green presence)
var everforest = palette{
	fg:         "\x1b[38;5;223m", // soft beige (#d3c6aa)
	time:       "\x1b[38;5;107m", // mid green (#83c092)
	id:         "\x1b[38;5;109m", // blue-green (#7fbbb3)
	number:     "\x1b[38;5;108m", // bright green (#a7c080)
	stage:      "\x1b[38;5;208m", // autumn orange (#e69875)
	glyph:      "\x1b[38;5;108m", // bright green (#a7c080)
	components: []string{"\x1b[38;5;108m", "\x1b[38;5;65m", "\x1b[38;5;208m"},
	yellow:     "\x1b[38;5;179m", // soft yellow (#dbbc7f)
	yellowBg:   "\x1b[48;5;58m",
	red:        "\x1b[38;5;167m", // warm red (#e67e80)
	redBg:      "\x1b[48;5;52m",
}

// Current active theme (set by logger.Initialize from the environment, or by
// the config layer after it has loaded)
var currentTheme = "gruvbox"

// SetTheme configures the color scheme for log output
func SetTheme(theme string) {
	if theme == "gruvbox" || theme == "everforest" {
		currentTheme = theme
	}
}

// CurrentTheme reports the active color scheme name
func CurrentTheme() string {
	return currentTheme
}

func activePalette() palette {
	if currentTheme == "everforest" {
		return everforest
	}
	return gruvbox
}

// colorComponent hashes the component name to a stable color so each
// subsystem keeps its own hue across lines.
func colorComponent(name string) string {
	p := activePalette()
	hash := 0
	for _, c := range name {
		hash += int(c)
	}
	return p.components[hash%len(p.components)]
}

var bracketPattern = regexp.MustCompile(`\[([^\]]+)\]`)

// colorizeMessage applies context-aware colorization to a log message:
// [job:N] brackets get the ID color, other brackets are treated as stage
// markers, and subsystem glyphs are highlighted.
func colorizeMessage(msg string) string {
	p := activePalette()

	result := strings.Builder{}
	lastIndex := 0

	matches := bracketPattern.FindAllStringSubmatchIndex(msg, -1)
	for _, match := range matches {
		textBefore := msg[lastIndex:match[0]]
		if textBefore != "" {
			result.WriteString(p.fg)
			result.WriteString(colorizeGlyphs(textBefore, p.glyph))
			result.WriteString(colorReset)
		}

		content := msg[match[2]:match[3]]
		color := p.stage
		if strings.HasPrefix(content, "job:") || strings.HasPrefix(content, "req:") {
			color = p.id
		}

		result.WriteString(color)
		result.WriteString(msg[match[0]:match[1]])
		result.WriteString(colorReset)

		lastIndex = match[1]
	}

	remaining := msg[lastIndex:]
	if remaining != "" {
		result.WriteString(p.fg)
		result.WriteString(colorizeGlyphs(remaining, p.glyph))
		result.WriteString(colorReset)
	}

	return result.String()
}

// colorizeGlyphs highlights subsystem glyphs embedded in message text
func colorizeGlyphs(text, glyphColor string) string {
	for _, g := range messageGlyphs {
		if strings.Contains(text, g) {
			text = strings.ReplaceAll(text, g, glyphColor+g+colorReset)
		}
	}
	return text
}

// minimalEncoder implements a calm, compact console encoder with theme support
// Format: "13:04:35  p.worker  ꩜ [job:42] cloning repository  github.com/acme/api"
type minimalEncoder struct {
	zapcore.Encoder // embed a base encoder for field serialization
	buf             *buffer.Buffer
}

func newMinimalEncoder() *minimalEncoder {
	// Base JSON encoder handles With()-style field accumulation internally
	baseEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	return &minimalEncoder{
		Encoder: baseEncoder,
		buf:     buffer.NewPool().Get(),
	}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	return &minimalEncoder{
		Encoder: enc.Encoder.Clone(),
		buf:     buffer.NewPool().Get(),
	}
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	p := activePalette()
	final := buffer.NewPool().Get()

	// Time
	final.AppendString(p.time)
	final.AppendString(ent.Time.Format("15:04:05"))
	final.AppendString(colorReset)

	// Level: only show for WARN/ERROR with bold + background
	if ent.Level != zapcore.InfoLevel {
		final.AppendString("  ")
		final.AppendString(levelColorString(ent.Level))
	}

	// Component name (abbreviated) for visual grouping
	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(colorComponent(ent.LoggerName))
		final.AppendString(abbreviateName(ent.LoggerName))
		final.AppendString(colorReset)
	}

	// Message with bracket, stage, and glyph colorization
	final.AppendString("  ")
	final.AppendString(colorizeMessage(ent.Message))

	// Fields: extract and color the values worth showing
	if len(fields) > 0 {
		if extracted := extractFieldValues(fields); extracted != "" {
			final.AppendString("  ")
			final.AppendString(extracted)
		}
	}

	final.AppendString("\n")
	return final, nil
}

// levelColorString returns bold + colored + background for WARN/ERROR
func levelColorString(level zapcore.Level) string {
	p := activePalette()

	switch level {
	case zapcore.WarnLevel:
		return colorBold + p.yellowBg + p.yellow + "WARN" + colorReset
	case zapcore.ErrorLevel:
		return colorBold + p.redBg + p.red + "ERROR" + colorReset
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return colorBold + p.redBg + p.red + level.CapitalString() + colorReset
	default:
		return ""
	}
}

// abbreviateName shortens component names: pulse.worker -> p.worker
func abbreviateName(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 1 {
		return string(parts[0][0]) + "." + strings.Join(parts[1:], ".")
	}
	return name
}

// getFieldValue extracts the value from a zap field, handling common types
func getFieldValue(field zapcore.Field) string {
	if field.Type == zapcore.StringType {
		return field.String
	}

	switch field.Type {
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return fmt.Sprintf("%d", field.Integer)
	}

	if field.Interface != nil {
		return fmt.Sprintf("%v", field.Interface)
	}

	return ""
}

// extractFieldValues pulls just the values worth a glance from structured
// fields, with theme-aware colors.
//
// Input:  {"job_id": 42, "repo": "github.com/acme/api", "files": 310, "edges": 1204}
// Output: "42 github.com/acme/api (310 files, 1204 edges)" with colored IDs and numbers
func extractFieldValues(fields []zapcore.Field) string {
	p := activePalette()

	var values []string
	var fileCount, edgeCount string

	for _, field := range fields {
		switch field.Key {
		case FieldJobID, FieldRepo, FieldRequestID:
			if val := getFieldValue(field); val != "" {
				values = append(values, p.id+val+colorReset)
			}
		case "files":
			fileCount = getFieldValue(field)
		case "edges":
			edgeCount = getFieldValue(field)
		case "commits":
			if val := getFieldValue(field); val != "" {
				values = append(values, p.number+val+colorReset+" commits")
			}
		case "documents":
			if val := getFieldValue(field); val != "" {
				values = append(values, p.number+val+colorReset+" docs")
			}
		case FieldDurationMS:
			if val := getFieldValue(field); val != "" {
				values = append(values, p.number+val+colorReset+"ms")
			}
		}
	}

	// Special pairing for graph stats
	if fileCount != "" && edgeCount != "" {
		values = append(values, p.fg+"("+p.number+fileCount+colorReset+p.fg+" files, "+p.number+edgeCount+colorReset+p.fg+" edges)"+colorReset)
	}

	if len(values) == 0 {
		return ""
	}

	return strings.Join(values, " ")
}
