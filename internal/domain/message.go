package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// SystemAuthor is the author stamped on server-originated chat broadcasts.
const SystemAuthor = "system"

// timestampLayout matches the ISO-8601 form browsers produce with
// Date.toISOString.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ChatMessage is one entry of the chat history. It is immutable once appended.
type ChatMessage struct {
	Author    string `json:"author" validate:"required"`
	Text      string `json:"text" validate:"required"`
	Timestamp string `json:"timestamp"`
}

var (
	validate = validator.New(validator.WithRequiredStructEnabled())

	// [timestamp] author: text
	linePattern = regexp.MustCompile(`^\[(.+?)\] (.+?): (.+)$`)
)

// Validate reports an ErrValidation naming the first missing field.
func (m ChatMessage) Validate() error {
	err := validate.Struct(m)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return errors.Wrapf(ErrValidation, "%s is %s", strings.ToLower(fieldErrs[0].Field()), fieldErrs[0].Tag())
	}
	return errors.Wrap(ErrValidation, err.Error())
}

// CheckRecord reports an ErrValidation when the message would not survive a
// write to the chat record and a read back, e.g. a newline in any field or a
// missing timestamp.
func (m ChatMessage) CheckRecord() error {
	parsed, ok := ParseLine(m.FormatLine())
	if !ok || parsed != m {
		return errors.Wrapf(ErrValidation, "message does not fit the chat record: %q", m.FormatLine())
	}
	return nil
}

// Stamp renders t as a message timestamp in UTC.
func Stamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// FormatLine renders the message in the durable chat record layout.
func (m ChatMessage) FormatLine() string {
	return "[" + m.Timestamp + "] " + m.Author + ": " + m.Text
}

// ParseLine reverses FormatLine. It returns false for lines that do not
// match the layout.
func ParseLine(line string) (ChatMessage, bool) {
	line = strings.TrimRight(line, "\r")
	match := linePattern.FindStringSubmatch(line)
	if match == nil {
		return ChatMessage{}, false
	}
	return ChatMessage{Timestamp: match[1], Author: match[2], Text: match[3]}, true
}

// FormatHistory joins the formatted lines of history with newlines.
func FormatHistory(history []ChatMessage) string {
	return strings.Join(lo.Map(history, func(m ChatMessage, _ int) string {
		return m.FormatLine()
	}), "\n")
}

// ParseHistory parses a chat record. Blank lines are skipped; lines that do
// not parse are returned in dropped so the caller can log them.
func ParseHistory(data string) (history []ChatMessage, dropped []string) {
	history = make([]ChatMessage, 0)
	for _, line := range strings.Split(data, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		msg, ok := ParseLine(line)
		if !ok {
			dropped = append(dropped, line)
			continue
		}
		history = append(history, msg)
	}
	return history, dropped
}
