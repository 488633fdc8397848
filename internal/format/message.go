package format

import (
	"fmt"
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Message contains plain text and its message entities.
type Message struct {
	Text     string
	Entities []tgbotapi.MessageEntity
}

// UTF16Len calculates the UTF-16 length of a string.
// Telegram measures entity offsets and lengths in UTF-16 code units.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

// Builder assembles a message and records entities as text is appended, so
// user supplied text never needs escaping.
type Builder struct {
	text     strings.Builder
	offset   int
	entities []tgbotapi.MessageEntity
}

func (b *Builder) Text(s string) *Builder {
	b.text.WriteString(s)
	b.offset += UTF16Len(s)
	return b
}

func (b *Builder) Textf(format string, args ...any) *Builder {
	return b.Text(fmt.Sprintf(format, args...))
}

func (b *Builder) styled(kind, s string) *Builder {
	if s == "" {
		return b
	}
	b.entities = append(b.entities, tgbotapi.MessageEntity{
		Type:   kind,
		Offset: b.offset,
		Length: UTF16Len(s),
	})
	return b.Text(s)
}

func (b *Builder) Bold(s string) *Builder {
	return b.styled("bold", s)
}

func (b *Builder) Italic(s string) *Builder {
	return b.styled("italic", s)
}

func (b *Builder) Code(s string) *Builder {
	return b.styled("code", s)
}

// Line appends s followed by a newline.
func (b *Builder) Line(s string) *Builder {
	return b.Text(s + "\n")
}

func (b *Builder) Newline() *Builder {
	return b.Text("\n")
}

// Header appends s in bold on its own line.
func (b *Builder) Header(s string) *Builder {
	return b.Bold(s).Newline()
}

// Field appends "label: value" with the label in bold.
func (b *Builder) Field(label, value string) *Builder {
	return b.Bold(label + ":").Text(" " + value).Newline()
}

// Message returns the text with trailing space and newlines removed. Entities
// are ordered by offset.
func (b *Builder) Message() Message {
	text := strings.TrimRight(b.text.String(), " \n")
	limit := UTF16Len(text)
	entities := make([]tgbotapi.MessageEntity, 0, len(b.entities))
	for _, e := range b.entities {
		if e.Offset >= limit {
			continue
		}
		if e.Offset+e.Length > limit {
			e.Length = limit - e.Offset
		}
		entities = append(entities, e)
	}
	return Message{Text: text, Entities: entities}
}

// Plain wraps s in a Message without entities.
func Plain(s string) Message {
	return Message{Text: s}
}
