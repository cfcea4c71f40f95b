package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"style-lock-studio/internal/instruction"
	"style-lock-studio/internal/session"
)

const helpText = "Style Lock Studio\n\n" +
	"Send a photo and I restyle it with your saved style reference.\n" +
	"Or send an album of two: structure first, style second.\n\n" +
	"Commands:\n" +
	"/style - upload a style reference (send a file to keep transparency)\n" +
	"/mode [plan|spatial|enhance] - pick the render mode\n" +
	"/blend <0-100> - style strength\n" +
	"/enhance texture=50 detail=50 light=50 - enhance sliders\n" +
	"/status - current settings and reference telemetry\n" +
	"/instruction - show the instruction the next render will use\n" +
	"/reset - forget everything\n\n" +
	"Captions override settings for one render, e.g. \"spatial blend=60 ar=16:9\"."

func (h *Handler) handleCommand(ctx context.Context, chatID int64, userID int64, username string, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		return h.tg.SendText(chatID, helpText)
	case "style":
		h.sessions.Update(userID, username, func(st *session.State) {
			st.AwaitingReference = true
		})
		return h.tg.SendText(chatID, "Send the style reference image now. Send it as a file to keep its transparency.")
	case "mode", "settings":
		if args != "" {
			mode, err := instruction.ParseMode(args)
			if err != nil {
				return h.tg.SendText(chatID, "Unknown mode. Use plan, spatial or enhance.")
			}
			h.sessions.Update(userID, username, func(st *session.State) { st.Mode = mode })
		}
		st := h.sessions.Snapshot(userID, username)
		_, err := h.tg.SendTextWithKeyboard(chatID, statusText(st), settingsKeyboard(userID, st))
		return err
	case "blend":
		weight, err := strconv.Atoi(strings.TrimSuffix(args, "%"))
		if err != nil || weight < 0 || weight > 100 {
			return h.tg.SendText(chatID, "Blend weight must be a whole number between 0 and 100, e.g. /blend 80")
		}
		h.sessions.Update(userID, username, func(st *session.State) { st.BlendWeight = weight })
		return h.tg.SendText(chatID, fmt.Sprintf("Blend weight set to %d%% (style capture target %d%%).", weight, instruction.StyleCaptureTarget(weight)))
	case "enhance":
		return h.handleEnhanceCommand(chatID, userID, username, args)
	case "status":
		return h.tg.SendText(chatID, statusText(h.sessions.Snapshot(userID, username)))
	case "instruction":
		return h.sendInstructionPreview(chatID, h.sessions.Snapshot(userID, username))
	case "reset":
		h.sessions.Reset(userID)
		return h.tg.SendText(chatID, "Settings and style reference cleared.")
	case "cancel":
		h.sessions.Update(userID, username, func(st *session.State) { st.AwaitingReference = false })
		return h.tg.SendText(chatID, "Cancelled.")
	default:
		return h.tg.SendText(chatID, "Unknown command. Try /help.")
	}
}

func (h *Handler) handleEnhanceCommand(chatID int64, userID int64, username string, args string) error {
	st := h.sessions.Snapshot(userID, username)
	opts := instruction.ParseArgs(args, instruction.Options{
		Mode:        instruction.ModeEnhance,
		BlendWeight: st.BlendWeight,
		Enhance:     st.Enhance,
	})
	if err := opts.Enhance.Validate(); err != nil {
		return h.tg.SendText(chatID, userMessage(err))
	}

	st = h.sessions.Update(userID, username, func(st *session.State) {
		st.Mode = instruction.ModeEnhance
		st.Enhance = opts.Enhance
	})
	return h.tg.SendText(chatID, "Enhance mode on.\n"+enhanceLine(st.Enhance))
}

func (h *Handler) sendInstructionPreview(chatID int64, st session.State) error {
	text, err := instruction.Assemble(st.Mode, st.BlendWeight, referenceFingerprint(st), &st.Enhance)
	if err != nil {
		return h.tg.SendText(chatID, userMessage(err))
	}
	return h.tg.SendText(chatID, text)
}
