package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"style-lock-studio/internal/instruction"
	"style-lock-studio/internal/session"
	"style-lock-studio/internal/telegram"
)

const callbackPrefix = "st"

var blendPresets = []int{25, 50, 80, 100}

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q == nil || q.Message == nil || q.Message.Chat == nil || q.From == nil {
		return nil
	}
	parts := strings.Split(strings.TrimSpace(q.Data), ":")
	if len(parts) < 3 || parts[0] != callbackPrefix {
		return nil
	}

	ownerID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil
	}
	if ownerID != q.From.ID {
		h.tg.AnswerCallback(q.ID, "This menu belongs to someone else.")
		return nil
	}

	chatID := q.Message.Chat.ID
	msgID := q.Message.MessageID
	action, args := parts[2], parts[3:]

	switch action {
	case "mode":
		if len(args) < 1 {
			return nil
		}
		mode, err := instruction.ParseMode(args[0])
		if err != nil {
			h.tg.AnswerCallback(q.ID, "Unknown mode")
			return nil
		}
		h.sessions.Update(ownerID, q.From.UserName, func(st *session.State) { st.Mode = mode })
		h.tg.AnswerCallback(q.ID, mode.String())
	case "blend":
		if len(args) < 1 {
			return nil
		}
		weight, err := strconv.Atoi(args[0])
		if err != nil || weight < 0 || weight > 100 {
			h.tg.AnswerCallback(q.ID, "Invalid blend weight")
			return nil
		}
		h.sessions.Update(ownerID, q.From.UserName, func(st *session.State) { st.BlendWeight = weight })
		h.tg.AnswerCallback(q.ID, fmt.Sprintf("Blend %d%%", weight))
	case "style":
		h.sessions.Update(ownerID, q.From.UserName, func(st *session.State) { st.AwaitingReference = true })
		h.tg.AnswerCallback(q.ID, "")
		return h.tg.SendText(chatID, "Send the style reference image now.")
	case "instr":
		h.tg.AnswerCallback(q.ID, "")
		return h.sendInstructionPreview(chatID, h.sessions.Snapshot(ownerID, q.From.UserName))
	case "reset":
		h.sessions.Reset(ownerID)
		h.tg.AnswerCallback(q.ID, "Reset")
	default:
		h.tg.AnswerCallback(q.ID, "")
		return nil
	}

	st := h.sessions.Snapshot(ownerID, q.From.UserName)
	return h.tg.EditTextWithKeyboard(chatID, msgID, statusText(st), settingsKeyboard(ownerID, st))
}

func settingsKeyboard(ownerID int64, st session.State) [][]telegram.Button {
	modeRow := make([]telegram.Button, 0, len(instruction.Modes()))
	for _, m := range instruction.Modes() {
		modeRow = append(modeRow, telegram.Button{
			Text: checked(m == st.Mode, m.Key()),
			Data: cb(ownerID, "mode", m.Key()),
		})
	}

	blendRow := make([]telegram.Button, 0, len(blendPresets))
	for _, w := range blendPresets {
		blendRow = append(blendRow, telegram.Button{
			Text: checked(w == st.BlendWeight, fmt.Sprintf("%d%%", w)),
			Data: cb(ownerID, "blend", strconv.Itoa(w)),
		})
	}

	return [][]telegram.Button{
		modeRow,
		blendRow,
		{
			{Text: "Style reference", Data: cb(ownerID, "style")},
			{Text: "Instruction", Data: cb(ownerID, "instr")},
		},
		{
			{Text: "Reset", Data: cb(ownerID, "reset")},
		},
	}
}

func cb(ownerID int64, parts ...string) string {
	return callbackPrefix + ":" + strconv.FormatInt(ownerID, 10) + ":" + strings.Join(parts, ":")
}

func checked(on bool, label string) string {
	if on {
		return "✅ " + label
	}
	return label
}
