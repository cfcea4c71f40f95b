package handlers

import (
	"errors"
	"fmt"
	"strings"

	"style-lock-studio/internal/fingerprint"
	"style-lock-studio/internal/gemini"
	"style-lock-studio/internal/imaging"
	"style-lock-studio/internal/instruction"
	"style-lock-studio/internal/session"
	"style-lock-studio/internal/studio"
	"style-lock-studio/internal/telegram"
)

// userMessage turns an error into something safe to show in chat.
func userMessage(err error) string {
	var apiErr *gemini.APIError
	switch {
	case errors.Is(err, fingerprint.ErrNoVisiblePixels):
		return "That image is fully transparent, so there is no style to read. Please send a different image."
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		return "I could not read that image. Send a JPEG, PNG, GIF or WebP."
	case errors.Is(err, studio.ErrMissingReference):
		return "This mode needs a style reference. Send /style first, or send an album: structure photo first, style photo second."
	case errors.Is(err, instruction.ErrBlendWeightOutOfRange):
		return "Blend weight must be between 0 and 100."
	case errors.Is(err, instruction.ErrSliderOutOfRange):
		return "Enhance sliders must be between 0 and 100."
	case errors.Is(err, telegram.ErrFileTooLarge):
		return "That file is too large."
	case errors.Is(err, gemini.ErrNoCredential):
		return "The image model is not configured."
	case errors.As(err, &apiErr):
		return fmt.Sprintf("The image model rejected the request (%s). Please try again.", apiErr.Status)
	default:
		return "Something went wrong. Please try again."
	}
}

func statusText(st session.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mode: %s\n", st.Mode)
	fmt.Fprintf(&b, "Blend: %d%% (capture target %d%%)\n", st.BlendWeight, instruction.StyleCaptureTarget(st.BlendWeight))
	b.WriteString(enhanceLine(st.Enhance))
	b.WriteString("\n")
	if fp := referenceFingerprint(st); fp != nil {
		b.WriteString("Reference: " + fp.String())
	} else if st.Reference != nil {
		b.WriteString("Reference: saved")
	} else {
		b.WriteString("Reference: none (use /style)")
	}
	if st.AwaitingReference {
		b.WriteString("\nWaiting for a style reference image.")
	}
	return b.String()
}

func enhanceLine(p instruction.EnhanceParameters) string {
	return fmt.Sprintf("Enhance: texture %d, smoothing %d, detail %d, light %d", p.Texture, p.Smoothing, p.Detail, p.Light)
}

func referenceFingerprint(st session.State) *fingerprint.StyleFingerprint {
	if st.Reference == nil {
		return nil
	}
	return st.Reference.Fingerprint
}
