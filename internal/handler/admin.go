package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"

	"github.com/goblinua/medinispx/internal/model"
	"github.com/goblinua/medinispx/internal/pkg/money"
)

// AdminHandler handles balance adjustments by admins.
type AdminHandler struct {
	*Deps
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(d *Deps) *AdminHandler {
	return &AdminHandler{Deps: d}
}

type adminOp func(ctx context.Context, adminID, userID int64, amount decimal.Decimal) (*model.User, error)

// HandleAdminAdd handles /admin_add <user_id|@username> <amount>.
func (h *AdminHandler) HandleAdminAdd(c tele.Context) error {
	return h.apply(c, model.TxTypeAdminAdd, h.Accounts.AdminAdd)
}

// HandleAdminSub handles /admin_sub <user_id|@username> <amount>.
func (h *AdminHandler) HandleAdminSub(c tele.Context) error {
	return h.apply(c, model.TxTypeAdminSub, h.Accounts.AdminSub)
}

// HandleAdminSet handles /admin_set <user_id|@username> <balance>.
func (h *AdminHandler) HandleAdminSet(c tele.Context) error {
	return h.apply(c, model.TxTypeAdminSet, h.Accounts.AdminSet)
}

func (h *AdminHandler) apply(c tele.Context, operation string, op adminOp) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 2 {
		return c.Reply(fmt.Sprintf("❌ Usage: /%s <user_id|@username> <amount>\nExample: /%s 123456789 25", operation, operation))
	}
	targetID, err := h.resolveTarget(ctx, args[0])
	if err != nil {
		return fail(c, err)
	}
	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return fail(c, money.ErrInvalidAmount)
	}

	if err := h.Locks.Lock(ctx, targetID); err != nil {
		return fail(c, err)
	}
	defer h.Locks.Unlock(targetID)

	before := h.balance(ctx, targetID)
	user, err := op(ctx, sender.ID, targetID, amount)
	if err != nil {
		return fail(c, err)
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("target_id", targetID).
		Str("amount", amount.String()).
		Str("old_balance", before.String()).
		Str("new_balance", user.Balance.String()).
		Str("operation", operation).
		Msg("Admin operation executed")

	name := user.Username
	if name == "" {
		name = strconv.FormatInt(targetID, 10)
	} else {
		name = "@" + name
	}
	return c.Reply(fmt.Sprintf(
		"✅ Done\n\n👤 User: %s (ID: %d)\n📝 Previous balance: %s\n💰 New balance: %s",
		name, targetID, money.USD(before), money.USD(user.Balance),
	))
}

// resolveTarget accepts a numeric id or a known @username.
func (h *AdminHandler) resolveTarget(ctx context.Context, arg string) (int64, error) {
	if strings.HasPrefix(arg, "@") {
		user, err := h.Accounts.FindByUsername(ctx, strings.TrimPrefix(arg, "@"))
		if err != nil {
			return 0, err
		}
		return user.TelegramID, nil
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, ruleErr(errors.New("user id must be a number or @username"))
	}
	return id, nil
}
