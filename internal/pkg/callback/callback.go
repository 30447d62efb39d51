// Package callback encodes and decodes inline button payloads.
//
// Payloads look like "<game>_<action>_<arg>_<arg>". Game and action names
// must not contain underscores; arguments may not either.
package callback

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxLen is Telegram's callback_data limit in bytes.
const MaxLen = 64

const sep = "_"

// Data is a decoded callback payload.
type Data struct {
	Game   string
	Action string
	Args   []string
}

// Encode builds callback data for a button.
func Encode(game, action string, args ...any) string {
	var b strings.Builder
	b.WriteString(game)
	b.WriteString(sep)
	b.WriteString(action)
	for _, a := range args {
		b.WriteString(sep)
		fmt.Fprint(&b, a)
	}
	return b.String()
}

// Decode parses callback data. telebot prefixes unique-less callbacks
// with "\f"; it is stripped here.
func Decode(raw string) (Data, bool) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "\f")
	parts := strings.Split(raw, sep)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Data{}, false
	}
	return Data{Game: parts[0], Action: parts[1], Args: parts[2:]}, true
}

// Arg returns the i-th argument or "".
func (d Data) Arg(i int) string {
	if i < 0 || i >= len(d.Args) {
		return ""
	}
	return d.Args[i]
}

// Int parses the i-th argument as an int.
func (d Data) Int(i int) (int, error) {
	n, err := strconv.Atoi(d.Arg(i))
	if err != nil {
		return 0, fmt.Errorf("callback %s/%s arg %d: %w", d.Game, d.Action, i, err)
	}
	return n, nil
}

// Int64 parses the i-th argument as an int64.
func (d Data) Int64(i int) (int64, error) {
	n, err := strconv.ParseInt(d.Arg(i), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("callback %s/%s arg %d: %w", d.Game, d.Action, i, err)
	}
	return n, nil
}
