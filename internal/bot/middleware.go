package bot

import (
	"sync"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"github.com/goblinua/medinispx/internal/config"
)

// privateUsers remembers who has played in a whitelisted group, so they may
// also use the bot privately (deposits, withdrawals, slots).
type privateUsers struct {
	mu  sync.RWMutex
	ids map[int64]struct{}
}

func newPrivateUsers() *privateUsers {
	return &privateUsers{ids: make(map[int64]struct{})}
}

func (p *privateUsers) allow(userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids[userID] = struct{}{}
}

func (p *privateUsers) allowed(userID int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.ids[userID]
	return ok
}

// WhitelistMiddleware drops updates from chats outside the whitelist. An
// empty whitelist allows every chat.
func WhitelistMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	seen := newPrivateUsers()
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat := c.Chat()
			sender := c.Sender()
			if chat == nil || sender == nil {
				return nil
			}

			if chat.Type == tele.ChatPrivate {
				if len(cfg.Whitelist.Chats) == 0 || seen.allowed(sender.ID) {
					return next(c)
				}
				log.Debug().Int64("user_id", sender.ID).Msg("Ignoring private chat from unknown user")
				return nil
			}

			if !cfg.IsChatAllowed(chat.ID) {
				log.Debug().Int64("chat_id", chat.ID).Msg("Ignoring update from non-whitelisted chat")
				return nil
			}
			seen.allow(sender.ID)
			return next(c)
		}
	}
}

// AdminMiddleware rejects senders missing from admin.ids.
func AdminMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return nil
			}
			if !cfg.IsAdmin(sender.ID) {
				log.Warn().
					Int64("user_id", sender.ID).
					Str("command", c.Text()).
					Msg("Non-admin attempted admin command")
				return c.Reply("❌ Permission denied: admin only.")
			}
			return next(c)
		}
	}
}

// LoggingMiddleware logs every update at debug level.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			ev := log.Debug()
			if sender := c.Sender(); sender != nil {
				ev = ev.Int64("user_id", sender.ID).Str("username", sender.Username)
			}
			if chat := c.Chat(); chat != nil {
				ev = ev.Int64("chat_id", chat.ID).Str("chat_type", string(chat.Type))
			}
			if cb := c.Callback(); cb != nil {
				ev = ev.Str("callback", cb.Data)
			}
			ev.Str("text", c.Text()).Msg("Received update")
			return next(c)
		}
	}
}

// RecoveryMiddleware turns a handler panic into a logged error.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Recovered from panic in handler")
					if c.Callback() != nil {
						err = c.Respond(&tele.CallbackResponse{Text: "❌ Internal error, please try again later.", ShowAlert: true})
						return
					}
					err = c.Reply("❌ Internal error, please try again later.")
				}
			}()
			return next(c)
		}
	}
}
