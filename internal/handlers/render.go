package handlers

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"style-lock-studio/internal/instruction"
	"style-lock-studio/internal/session"
	"style-lock-studio/internal/studio"
)

type photoRef struct {
	fileID   string
	mimeType string
}

type renderJob struct {
	chatID    int64
	userID    int64
	username  string
	caption   string
	primary   photoRef
	reference *photoRef
}

func (h *Handler) storeReference(ctx context.Context, chatID int64, userID int64, username string, ref photoRef) error {
	h.tg.SendTyping(chatID)

	data, mimeType, err := h.tg.DownloadFile(ctx, ref.fileID)
	if err != nil {
		h.logger.Error("reference download failed", "user_id", userID, "err", err)
		return h.tg.SendText(chatID, userMessage(err))
	}

	analysis, err := h.studio.Analyze(ctx, studio.Image{Data: data, MimeType: mimeType})
	if err != nil {
		h.logger.Info("reference rejected", "user_id", userID, "err", err)
		return h.tg.SendText(chatID, userMessage(err))
	}

	fp := analysis.Fingerprint
	h.sessions.SetReference(userID, username, session.Reference{
		Data:        data,
		MimeType:    mimeType,
		Fingerprint: &fp,
	})

	var b strings.Builder
	b.WriteString("Style reference saved.\n")
	b.WriteString(fp.String())
	fmt.Fprintf(&b, "\nSize %dx%d (%s)", analysis.Width, analysis.Height, analysis.AspectRatio)
	if len(analysis.Palette) > 0 {
		hexes := make([]string, 0, len(analysis.Palette))
		for _, s := range analysis.Palette {
			hexes = append(hexes, "#"+s.Hex)
		}
		b.WriteString("\nPalette: " + strings.Join(hexes, " "))
	}
	if analysis.PaletteHue != nil {
		fmt.Fprintf(&b, "\nPalette hue: %d degrees", *analysis.PaletteHue)
	}
	return h.tg.SendText(chatID, b.String())
}

func (h *Handler) render(ctx context.Context, job renderJob) error {
	st := h.sessions.Snapshot(job.userID, job.username)
	opts := instruction.ParseArgs(job.caption, instruction.Options{
		Mode:        st.Mode,
		BlendWeight: st.BlendWeight,
		Enhance:     st.Enhance,
	})
	if opts.Notes != "" {
		h.logger.Debug("caption notes ignored", "user_id", job.userID, "notes", opts.Notes)
	}

	useAlbumReference := opts.Mode.NeedsReference() && job.reference != nil
	if opts.Mode.NeedsReference() && !useAlbumReference && st.Reference == nil {
		return h.tg.SendText(job.chatID, userMessage(studio.ErrMissingReference))
	}

	h.tg.SendTyping(job.chatID)

	refs := []photoRef{job.primary}
	if useAlbumReference {
		refs = append(refs, *job.reference)
	}
	images := make([]studio.Image, len(refs))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		eg.Go(func() error {
			data, mimeType, err := h.tg.DownloadFile(egCtx, ref.fileID)
			if err != nil {
				return err
			}
			images[i] = studio.Image{Data: data, MimeType: mimeType}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		h.logger.Error("photo download failed", "user_id", job.userID, "err", err)
		return h.tg.SendText(job.chatID, userMessage(err))
	}

	req := studio.Request{
		Mode:        opts.Mode,
		BlendWeight: opts.BlendWeight,
		Primary:     images[0],
		AspectRatio: opts.AspectRatio,
	}
	if opts.Mode == instruction.ModeEnhance {
		enhance := opts.Enhance
		req.Enhance = &enhance
	}
	switch {
	case useAlbumReference:
		req.Reference = &images[1]
	case opts.Mode.NeedsReference():
		req.Reference = &studio.Image{Data: st.Reference.Data, MimeType: st.Reference.MimeType}
		req.ReferenceFingerprint = st.Reference.Fingerprint
	}

	h.tg.SendUploadingPhoto(job.chatID)
	res, err := h.studio.Run(ctx, req)
	if err != nil {
		h.logger.Error("render failed", "user_id", job.userID, "mode", opts.Mode.String(), "err", err)
		return h.tg.SendText(job.chatID, userMessage(err))
	}

	return h.sendResult(job.chatID, res)
}

func (h *Handler) sendResult(chatID int64, res studio.Result) error {
	caption := resultCaption(res)
	if len(res.Images) == 0 {
		text := "The model returned no image."
		if strings.TrimSpace(res.Text) != "" {
			text += "\n\n" + res.Text
		}
		return h.tg.SendText(chatID, text)
	}

	for i, img := range res.Images {
		sendCaption := ""
		if i == 0 {
			sendCaption = caption
		}
		if err := h.tg.SendPhotoDataURL(chatID, img, sendCaption); err != nil {
			return err
		}
	}
	return nil
}

func resultCaption(res studio.Result) string {
	parts := []string{res.Mode, string(res.AspectRatio)}
	if res.Fingerprint != nil {
		parts = append(parts, "#"+res.Fingerprint.AverageColorHex)
	}
	caption := strings.Join(parts, " · ")
	if t := strings.TrimSpace(res.Text); t != "" {
		caption += "\n" + t
	}
	return caption
}
